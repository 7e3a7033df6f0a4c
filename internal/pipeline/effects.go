package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opsfin/disbursewatch/pkg/models"
)

// DocumentRenderer renders a proof document for a persisted disbursement.
type DocumentRenderer interface {
	Render(ctx context.Context, raw models.RawEmail, rec *models.Disbursement) ([]byte, error)
}

// ObjectStore uploads a document and returns a retrievable URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// Notifier attaches a proof URL to the external system-of-record.
type Notifier interface {
	AttachProof(ctx context.Context, rec *models.Disbursement, url string) error
}

// Alerter announces a newly persisted disbursement to the ops channel.
type Alerter interface {
	NewDisbursement(ctx context.Context, rec *models.Disbursement) error
}

// SideEffects runs the optional post-persistence steps for the live path:
// render a proof document, upload it, attach the URL to the system-of-record,
// and alert the ops channel. Every step is independently fallible; a failure
// is logged and never rolls back the already persisted record.
type SideEffects struct {
	renderer DocumentRenderer
	store    ObjectStore
	notifier Notifier
	alerter  Alerter
	logger   *slog.Logger
}

// NewSideEffects creates the side-effect orchestrator. Any collaborator may
// be nil; its step is skipped.
func NewSideEffects(renderer DocumentRenderer, store ObjectStore, notifier Notifier, alerter Alerter, logger *slog.Logger) *SideEffects {
	return &SideEffects{
		renderer: renderer,
		store:    store,
		notifier: notifier,
		alerter:  alerter,
		logger:   logger.With("component", "effects"),
	}
}

// Run executes the side-effect chain for one newly persisted record.
func (s *SideEffects) Run(ctx context.Context, raw models.RawEmail, rec *models.Disbursement) {
	if s == nil {
		return
	}

	var proofURL string
	if s.renderer != nil && s.store != nil {
		doc, err := s.renderer.Render(ctx, raw, rec)
		if err != nil {
			s.logger.Error("failed to render proof document", "record_id", rec.ID, "error", err)
		} else {
			key := fmt.Sprintf("proof-%d.html", rec.ID)
			proofURL, err = s.store.Put(ctx, key, doc)
			if err != nil {
				s.logger.Error("failed to upload proof document", "record_id", rec.ID, "error", err)
				proofURL = ""
			}
		}
	}

	if s.notifier != nil && proofURL != "" {
		if err := s.notifier.AttachProof(ctx, rec, proofURL); err != nil {
			s.logger.Error("failed to attach proof", "record_id", rec.ID, "url", proofURL, "error", err)
		}
	}

	if s.alerter != nil {
		if err := s.alerter.NewDisbursement(ctx, rec); err != nil {
			s.logger.Error("failed to send ops alert", "record_id", rec.ID, "error", err)
		}
	}
}
