package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeadSourceLabel(t *testing.T) {
	for in, want := range map[string]string{
		"landing":        "landing",
		" Popup ":        "popup",
		"page":           "page",
		"":               "other",
		"utm_campaign_7": "other",
	} {
		assert.Equal(t, want, LeadSourceLabel(in), in)
	}
}
