package extract

import (
	"context"

	"github.com/opsfin/disbursewatch/pkg/models"
)

// Extractor turns one raw email into zero or more disbursement candidates.
// Implementations must normalize sentinel placeholders before returning, so
// the pipeline only ever sees true absence as "".
type Extractor interface {
	Extract(ctx context.Context, raw models.RawEmail) ([]models.CandidateRecord, error)
}
