// Package membership handles the monthly memberships paid for by tutors.
package membership

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mateatletas/backend/core"
	"github.com/mateatletas/backend/core/period"
)

// Status is the lifecycle state of a Membership.
type Status string

const (
	StatusPending   Status = "Pendiente" // created, waiting for the payment confirmation
	StatusActive    Status = "Activa"
	StatusExpired   Status = "Vencida"
	StatusCancelled Status = "Cancelada"
)

// maxYear keeps stored periods in the 7 character YYYY-MM form, which also sorts chronologically.
const maxYear = 9999

var AllStatuses = []Status{StatusPending, StatusActive, StatusExpired, StatusCancelled}

func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type Membership struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Period    string    `json:"period"` // YYYY-MM
	Status    Status    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"` // last instant of Period, in the configured time zone
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// IsValidAt reports whether m grants access at t.
func (m Membership) IsValidAt(t time.Time) bool {
	return m.Status == StatusActive && !t.After(m.ExpiresAt)
}

// NewMembership contains information needed to create a new Membership.
type NewMembership struct {
	UserID string `json:"user_id" validate:"required"`
	Period string `json:"period" validate:"required,period"`
}

func (nm *NewMembership) Validate(validate *validator.Validate) error {
	nm.UserID = core.CleanString(nm.UserID)
	nm.Period = core.CleanString(nm.Period)
	if err := validate.Struct(nm); err != nil {
		return err
	}
	if _, err := parsePeriod(nm.Period); err != nil {
		if errors.Is(err, period.ErrInvalidPeriod) {
			return core.NewValidationError(err, core.FieldError{Field: "period", Error: err.Error()})
		}
		return err
	}
	return nil
}

// parsePeriod parses a period a Membership can be stored for.
func parsePeriod(s string) (period.Period, error) {
	p, err := period.Parse(s)
	if err != nil {
		return period.Period{}, err
	}
	if p.Year > maxYear {
		return period.Period{}, core.NewValidationError(ErrPeriodOutOfRange, core.FieldError{Field: "period", Error: ErrPeriodOutOfRange.Error()})
	}
	return p, nil
}

type QueryFilter struct {
	UserID string `query:"user_id"`
	Status Status `query:"status"`
	Period string `query:"period"`
}

func (qf *QueryFilter) Clean() {
	qf.UserID = core.CleanString(qf.UserID)
	qf.Period = core.CleanString(qf.Period)
	if p, err := period.Parse(qf.Period); err == nil {
		qf.Period = p.String()
	}
}

// Expiration is the response of an expiration date computation.
type Expiration struct {
	Period    string    `json:"period"`
	ExpiresAt time.Time `json:"expires_at"`
}
