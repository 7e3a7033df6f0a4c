package proof

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsfin/disbursewatch/pkg/models"
)

func TestRenderProofDocument(t *testing.T) {
	r := NewRenderer()

	raw := models.RawEmail{
		ID:       "msg-1",
		Subject:  "Loan Disbursed",
		Sender:   "alerts@bank.com",
		Date:     time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		BodyHTML: "<table><tr><td>Loan A/C No:</td><td>LN-1</td></tr></table>",
	}
	rec := &models.Disbursement{
		ID:                 7,
		FirstName:          "Asha",
		LastName:           "Verma",
		LoanAccountNumber:  "LN-1",
		BankAppID:          "APP-1",
		DisbursementAmount: 500000,
		DisbursementStage:  "Disbursed",
		DisbursedOn:        "2026-08-20",
	}

	doc, err := r.Render(context.Background(), raw, rec)
	require.NoError(t, err)

	html := string(doc)
	assert.Contains(t, html, "LN-1")
	assert.Contains(t, html, "Asha Verma")
	assert.Contains(t, html, "500000.00")
	assert.Contains(t, html, "alerts@bank.com")
	// The original email markup is embedded unescaped
	assert.Contains(t, html, "<table><tr><td>Loan A/C No:</td>")
}

func TestRenderFallsBackToTextBody(t *testing.T) {
	r := NewRenderer()

	raw := models.RawEmail{
		ID:       "msg-2",
		Subject:  "Loan Disbursed",
		Sender:   "alerts@bank.com",
		Date:     time.Now(),
		BodyText: "Loan A/C No: LN-2",
	}
	doc, err := r.Render(context.Background(), raw, &models.Disbursement{LoanAccountNumber: "LN-2"})
	require.NoError(t, err)
	assert.Contains(t, string(doc), "<pre>Loan A/C No: LN-2</pre>")
}
