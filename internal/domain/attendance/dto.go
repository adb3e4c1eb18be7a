package attendance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tecolab/ssptime-go/internal/pkg/validator"
)

// ========================================
// FETCH DTOs
// ========================================

type FetchRequest struct {
	Account string `json:"account"`
	Secret  string `json:"-"`
}

func (r *FetchRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Account) {
		errs = append(errs, validator.ValidationError{
			Field:   "account",
			Message: "account is required",
		})
	}

	if r.Secret == "" {
		errs = append(errs, validator.ValidationError{
			Field:   "secret",
			Message: "secret is required",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type FetchResult struct {
	Results  []OvertimeResult `json:"results"`
	Warnings []ParseWarning   `json:"warnings"`
	Summary  Summary          `json:"summary"`
}

// FetchOutcome is what the background worker delivers on its completion
// channel: either a result or a single terminal error, never both.
type FetchOutcome struct {
	Result FetchResult
	Err    error
}

// Summary aggregates one fetch's overtime results for any presenter.
type Summary struct {
	RecordDays             int             `json:"record_days"`
	OvertimeDays           int             `json:"overtime_days"`
	TotalOvertimeMinutes   decimal.Decimal `json:"total_overtime_minutes"`
	AverageOvertimeMinutes decimal.Decimal `json:"average_overtime_minutes"`
	MaxOvertimeMinutes     decimal.Decimal `json:"max_overtime_minutes"`
	MaxOvertimeDate        *time.Time      `json:"max_overtime_date,omitempty"`
}
