package proof

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/opsfin/disbursewatch/pkg/models"
)

// Renderer produces the proof-of-disbursement document that gets attached to
// the external system-of-record: the extracted fields plus the source email,
// rendered as a standalone HTML page.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer creates a proof document renderer
func NewRenderer() *Renderer {
	return &Renderer{tmpl: template.Must(template.New("proof").Parse(proofTemplate))}
}

type proofData struct {
	Record      *models.Disbursement
	Email       models.RawEmail
	EmailHTML   template.HTML
	GeneratedAt string
}

// Render renders the proof document for one persisted disbursement.
func (r *Renderer) Render(ctx context.Context, raw models.RawEmail, rec *models.Disbursement) ([]byte, error) {
	data := proofData{
		Record:      rec,
		Email:       raw,
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05 MST"),
	}
	if raw.BodyHTML != "" {
		// The original message markup is embedded as-is; the document is an
		// evidentiary copy, not a sanitized view
		data.EmailHTML = template.HTML(raw.BodyHTML)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render proof document: %w", err)
	}
	return buf.Bytes(), nil
}

const proofTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Disbursement Proof - {{.Record.LoanAccountNumber}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 24px; color: #222; }
h1 { font-size: 20px; border-bottom: 2px solid #444; padding-bottom: 8px; }
h2 { font-size: 16px; margin-top: 28px; }
table { border-collapse: collapse; width: 100%; }
td, th { border: 1px solid #ccc; padding: 6px 10px; text-align: left; font-size: 13px; }
th { background: #f2f2f2; width: 220px; }
.email-body { border: 1px solid #ccc; padding: 12px; margin-top: 8px; }
.meta { color: #666; font-size: 12px; margin-top: 24px; }
</style>
</head>
<body>
<h1>Disbursement Proof</h1>
<table>
<tr><th>Loan Account Number</th><td>{{.Record.LoanAccountNumber}}</td></tr>
<tr><th>Bank Application ID</th><td>{{.Record.BankAppID}}</td></tr>
<tr><th>Applicant</th><td>{{.Record.FirstName}} {{.Record.LastName}}</td></tr>
<tr><th>Bank</th><td>{{.Record.AppBankName}}</td></tr>
<tr><th>Disbursement Amount</th><td>{{printf "%.2f" .Record.DisbursementAmount}}</td></tr>
<tr><th>Sanction Amount</th><td>{{printf "%.2f" .Record.LoanSanctionAmount}}</td></tr>
<tr><th>Stage</th><td>{{.Record.DisbursementStage}}</td></tr>
<tr><th>Disbursed On</th><td>{{.Record.DisbursedOn}}</td></tr>
<tr><th>Sanction Date</th><td>{{.Record.SanctionDate}}</td></tr>
<tr><th>Confidence Score</th><td>{{printf "%.2f" .Record.ConfidenceScore}}</td></tr>
</table>

<h2>Source Email</h2>
<table>
<tr><th>From</th><td>{{.Email.Sender}}</td></tr>
<tr><th>Subject</th><td>{{.Email.Subject}}</td></tr>
<tr><th>Date</th><td>{{.Email.Date.Format "2006-01-02 15:04:05"}}</td></tr>
</table>
<div class="email-body">
{{if .EmailHTML}}{{.EmailHTML}}{{else}}<pre>{{.Email.BodyText}}</pre>{{end}}
</div>

<p class="meta">Generated at {{.GeneratedAt}} from email {{.Email.ID}}</p>
</body>
</html>
`
