package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsfin/disbursewatch/internal/extract"
	"github.com/opsfin/disbursewatch/pkg/models"
)

// Processor routes candidates from one email through the quality filter, the
// deduplication engine, persistence and the optional side-effect chain. Every
// candidate increments exactly one of the four outcome counters, so
// new+duplicates+filtered+errors always equals total processed.
type Processor struct {
	extractor extract.Extractor
	store     Store
	deduper   *Deduper
	effects   *SideEffects // nil on the historical path
	logger    *slog.Logger
}

// NewProcessor creates a new pipeline processor. effects may be nil; the
// historical batch path runs without side-effects.
func NewProcessor(extractor extract.Extractor, store Store, effects *SideEffects, logger *slog.Logger) *Processor {
	return &Processor{
		extractor: extractor,
		store:     store,
		deduper:   NewDeduper(store, logger),
		effects:   effects,
		logger:    logger.With("component", "processor"),
	}
}

// ProcessEmail handles one acquired email end to end and returns the rows it
// persisted. Per-candidate failures are counted and recorded; they never
// abort the email, and an email failure never aborts the run.
func (p *Processor) ProcessEmail(ctx context.Context, raw models.RawEmail, forceSave bool, stats *models.RunStats) []models.Disbursement {
	stats.EmailsProcessed++

	candidates, err := p.extractor.Extract(ctx, raw)
	if err != nil {
		// Extraction failure yields zero candidates for this email
		p.logger.Error("extraction failed",
			"subject", raw.Subject, "sender", raw.Sender, "date", raw.Date, "error", err)
		stats.RecordError(fmt.Sprintf("extraction failed for %q from %s: %v", raw.Subject, raw.Sender, err))
		return nil
	}

	var persisted []models.Disbursement
	for i := range candidates {
		c := &candidates[i]
		stats.TotalProcessed++

		if !Accept(c) {
			stats.FilteredOut++
			p.logger.Info("filtered out candidate",
				"reason", RejectReason(c), "subject", raw.Subject)
			continue
		}

		isDuplicate, err := p.deduper.IsDuplicate(ctx, c)
		if err != nil {
			// Lookup failure: proceed as non-duplicate rather than dropping
			// the candidate; a lost race only produces a flagged extra row
			p.logger.Warn("duplicate check failed", "error", err)
			stats.RecordError(fmt.Sprintf("duplicate check failed: %v", err))
			isDuplicate = false
		}

		if isDuplicate && !forceSave {
			stats.DuplicatesSkipped++
			p.logger.Info("skipping duplicate disbursement",
				"loan_account_number", c.LoanAccountNumber, "bank_app_id", c.BankAppID)
			continue
		}

		rec := models.NewDisbursement(c, isDuplicate)
		if _, err := p.store.InsertDisbursement(ctx, rec); err != nil {
			stats.Errors++
			stats.RecordError(fmt.Sprintf("failed to save disbursement: %v", err))
			p.logger.Error("failed to save disbursement", "error", err)
			continue
		}

		stats.NewRecords++
		persisted = append(persisted, *rec)
		p.logger.Info("saved disbursement",
			"id", rec.ID,
			"loan_account_number", rec.LoanAccountNumber,
			"amount", rec.DisbursementAmount,
			"is_duplicate", rec.IsDuplicate)

		// Force-saved duplicates are persisted for audit but never re-notified
		if !rec.IsDuplicate {
			p.effects.Run(ctx, raw, rec)
		}
	}

	return persisted
}
