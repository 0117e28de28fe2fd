// Package leads stores landing page form submissions.
package leads

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"storekriti/internal/models"
	"storekriti/internal/pkg/sanitize"
)

const (
	DefaultSource = "landing"

	DefaultPage  = 1
	DefaultLimit = 20
	MinLimit     = 10
	MaxLimit     = 100

	msgRequired        = "Name & WhatsApp are required"
	msgWhatsAppTooLong = "WhatsApp number is too long"
	msgInvalidEmail    = "Email is invalid"
	msgInvalidForm     = "Invalid form data"
)

// Lead is a single form submission. Only admins read it back.
type Lead struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Name          string    `gorm:"size:120;not null" json:"name"`
	WhatsApp      string    `gorm:"column:whatsapp;size:20;not null" json:"whatsapp"`
	Email         *string   `gorm:"size:200" json:"email"`
	BusinessType  *string   `gorm:"size:120" json:"business_type"`
	BudgetRange   *string   `gorm:"size:80" json:"budget_range"`
	StartTimeline *string   `gorm:"size:80" json:"start_timeline"`
	Motivation    *string   `gorm:"size:2000" json:"motivation"`
	Message       *string   `gorm:"size:2000" json:"message"`
	Source        string    `gorm:"size:40;not null;default:landing" json:"source"`
	IP            *string   `gorm:"size:64" json:"ip"`
	UserAgent     *string   `gorm:"size:300" json:"user_agent"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// CreateInput is the public form payload.
type CreateInput struct {
	Name          string `json:"name" validate:"required"`
	WhatsApp      string `json:"whatsapp" validate:"required,max=20"`
	Email         string `json:"email" validate:"omitempty,email"`
	BusinessType  string `json:"business_type"`
	BudgetRange   string `json:"budget_range"`
	StartTimeline string `json:"start_timeline"`
	Motivation    string `json:"motivation"`
	Message       string `json:"message"`
	Source        string `json:"source"`

	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// ValidationError carries the first failed rule as a user facing message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize trims every field in place.
func (in *CreateInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.WhatsApp = strings.TrimSpace(in.WhatsApp)
	in.Email = strings.TrimSpace(in.Email)
	in.BusinessType = strings.TrimSpace(in.BusinessType)
	in.BudgetRange = strings.TrimSpace(in.BudgetRange)
	in.StartTimeline = strings.TrimSpace(in.StartTimeline)
	in.Motivation = strings.TrimSpace(in.Motivation)
	in.Message = strings.TrimSpace(in.Message)
	in.Source = strings.TrimSpace(in.Source)
}

// Validate returns a *ValidationError describing the first problem, if any.
// Call Normalize first.
func (in *CreateInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: msgInvalidForm}
	}

	first := verrs[0]
	switch {
	case first.Tag() == "required":
		return &ValidationError{Message: msgRequired}
	case first.Field() == "WhatsApp" && first.Tag() == "max":
		return &ValidationError{Message: msgWhatsAppTooLong}
	case first.Field() == "Email":
		return &ValidationError{Message: msgInvalidEmail}
	}
	return &ValidationError{Message: msgInvalidForm}
}

// Create validates input and stores a new lead.
func Create(dbManager cartridge.DBManager, logger *slog.Logger, in CreateInput) (*Lead, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	lead := &Lead{
		ID:            uuid.NewString(),
		Name:          sanitize.String(in.Name, 120),
		WhatsApp:      in.WhatsApp,
		Email:         sanitize.Optional(in.Email, 200),
		BusinessType:  sanitize.Optional(in.BusinessType, 120),
		BudgetRange:   sanitize.Optional(in.BudgetRange, 80),
		StartTimeline: sanitize.Optional(in.StartTimeline, 80),
		Motivation:    sanitize.Optional(in.Motivation, 2000),
		Message:       sanitize.Optional(in.Message, 2000),
		Source:        sanitize.Default(in.Source, 40, DefaultSource),
		IP:            sanitize.Optional(in.IP, 64),
		UserAgent:     sanitize.Optional(in.UserAgent, 300),
		CreatedAt:     time.Now().UTC(),
	}

	err := models.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		return tx.Create(lead).Error
	})
	if err != nil {
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	return lead, nil
}

// ListParams controls the admin listing.
type ListParams struct {
	Page  int
	Limit int
	Query string
}

// Normalize applies defaults and bounds: page >= 1, limit in [MinLimit, MaxLimit].
// A missing limit is the caller's to default; zero clamps to MinLimit.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	p.Limit = min(MaxLimit, max(MinLimit, p.Limit))
	p.Query = strings.TrimSpace(p.Query)
	return p
}

// ListResult is one page of leads.
type ListResult struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Total int64  `json:"total"`
	Pages int    `json:"pages"`
	Rows  []Lead `json:"rows"`
}

// likeEscaper makes the search term match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

var searchColumns = []string{"name", "whatsapp", "email", "business_type", "motivation", "message"}

// List returns leads newest first, optionally filtered by a case-insensitive substring.
func List(db *gorm.DB, params ListParams) (ListResult, error) {
	params = params.Normalize()

	query := db.Model(&Lead{})
	if params.Query != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(params.Query)) + "%"
		clauses := make([]string, len(searchColumns))
		args := make([]any, len(searchColumns))
		for i, col := range searchColumns {
			clauses[i] = "LOWER(COALESCE(" + col + ", '')) LIKE ? ESCAPE '\\'"
			args[i] = pattern
		}
		query = query.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return ListResult{}, fmt.Errorf("count leads: %w", err)
	}

	rows := make([]Lead, 0, params.Limit)
	if err := query.Order("created_at DESC").
		Limit(params.Limit).
		Offset((params.Page - 1) * params.Limit).
		Find(&rows).Error; err != nil {
		return ListResult{}, fmt.Errorf("list leads: %w", err)
	}

	return ListResult{
		Page:  params.Page,
		Limit: params.Limit,
		Total: total,
		Pages: max(1, int(math.Ceil(float64(total)/float64(params.Limit)))),
		Rows:  rows,
	}, nil
}
