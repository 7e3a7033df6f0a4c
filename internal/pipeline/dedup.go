package pipeline

import (
	"context"
	"log/slog"
	"math"

	"github.com/opsfin/disbursewatch/pkg/models"
)

// amountTolerance absorbs rounding differences between notifications for the
// same disbursement (one currency sub-unit).
const amountTolerance = 0.01

// Store is the persistence collaborator consumed by the pipeline.
type Store interface {
	QueryByIdentifier(ctx context.Context, loanAccountNumber, bankAppID string) ([]models.Disbursement, error)
	InsertDisbursement(ctx context.Context, d *models.Disbursement) (int64, error)
}

// Deduper decides whether an accepted candidate repeats an already persisted
// disbursement. The comparison is scoped to records sharing an application
// identifier, then matched on the (amount, date-or-email-context) composite
// key, so legitimate repeat disbursements on the same loan are kept apart.
type Deduper struct {
	store  Store
	logger *slog.Logger
}

// NewDeduper creates a new deduplication engine
func NewDeduper(store Store, logger *slog.Logger) *Deduper {
	return &Deduper{store: store, logger: logger.With("component", "dedup")}
}

// IsDuplicate reports whether c matches an existing persisted record. A
// candidate without identifier or amount can never be declared duplicate.
func (d *Deduper) IsDuplicate(ctx context.Context, c *models.CandidateRecord) (bool, error) {
	if !c.HasIdentifier() {
		return false, nil
	}
	amount, err := c.Amount()
	if err != nil {
		return false, nil
	}

	existing, err := d.store.QueryByIdentifier(ctx, c.LoanAccountNumber, c.BankAppID)
	if err != nil {
		return false, err
	}

	for i := range existing {
		if exactMatch(&existing[i], amount, c.DisbursedOn, c.EmailSubject, c.EmailDate) {
			d.logger.Info("found exact duplicate",
				"loan_account_number", c.LoanAccountNumber,
				"bank_app_id", c.BankAppID,
				"amount", amount,
				"disbursed_on", c.DisbursedOn)
			return true, nil
		}
	}
	return false, nil
}

// exactMatch applies the composite key: amounts within tolerance, then equal
// non-empty disbursement dates, falling back to equal email subject+date when
// either record lacks a disbursement date.
func exactMatch(existing *models.Disbursement, amount float64, disbursedOn, emailSubject, emailDate string) bool {
	if math.Abs(existing.DisbursementAmount-amount) > amountTolerance {
		return false
	}

	if existing.DisbursedOn != "" && disbursedOn != "" && existing.DisbursedOn == disbursedOn {
		return true
	}

	if existing.EmailSubject != "" && emailSubject != "" &&
		existing.EmailDate != "" && emailDate != "" &&
		existing.EmailSubject == emailSubject &&
		existing.EmailDate == emailDate {
		return true
	}

	return false
}
