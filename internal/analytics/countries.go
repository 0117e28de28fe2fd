package analytics

import (
	"strings"
	"sync"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storekriti/internal/sessions"
)

var countryQuery = sync.OnceValue(gountries.New)

// CountryNames turns ISO country codes into display names. Codes gountries does
// not know are shown upper-cased.
func CountryNames(rows []sessions.CountryCount) []KeyCount {
	result := make([]KeyCount, 0, len(rows))
	if len(rows) == 0 {
		return result
	}

	caser := cases.Upper(language.AmericanEnglish)
	query := countryQuery()

	for _, row := range rows {
		code := strings.TrimSpace(row.Country)
		if code == "" {
			continue
		}
		name := caser.String(code)
		if country, err := query.FindCountryByAlpha(code); err == nil {
			name = country.Name.Common
		}
		result = append(result, KeyCount{Key: name, Count: row.Count})
	}
	return result
}
