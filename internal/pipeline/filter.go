package pipeline

import (
	"fmt"
	"strings"

	"github.com/opsfin/disbursewatch/pkg/models"
)

// Stages that count as an actual disbursement having happened.
var acceptedStages = map[string]struct{}{
	"disbursed":              {},
	"disbursement":           {},
	"disbursement completed": {},
	"completed":              {},
}

// Accept reports whether a candidate meets the quality criteria for
// persistence: a disbursed stage, at least one application identifier, and a
// positive disbursement amount. Candidates are expected to be normalized, so
// sentinel placeholders have already become "".
func Accept(c *models.CandidateRecord) bool {
	if _, ok := acceptedStages[strings.ToLower(strings.TrimSpace(c.DisbursementStage))]; !ok {
		return false
	}
	if !c.HasIdentifier() {
		return false
	}
	amount, err := c.Amount()
	if err != nil || amount <= 0 {
		return false
	}
	return true
}

// RejectReason explains why a candidate fails Accept. Only meaningful for
// rejected candidates; used for triage logging, never as control flow.
func RejectReason(c *models.CandidateRecord) string {
	if _, ok := acceptedStages[strings.ToLower(strings.TrimSpace(c.DisbursementStage))]; !ok {
		return fmt.Sprintf("not disbursed (stage: %q)", c.DisbursementStage)
	}
	if !c.HasIdentifier() {
		return "no loan account number or bank application id"
	}
	amount, err := c.Amount()
	if err != nil {
		return fmt.Sprintf("unparseable disbursement amount %q", c.DisbursementAmount)
	}
	if amount <= 0 {
		return fmt.Sprintf("non-positive disbursement amount %v", amount)
	}
	return ""
}
