package extract

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/opsfin/disbursewatch/internal/parser"
	"github.com/opsfin/disbursewatch/pkg/models"
)

// PatternExtractor extracts disbursement fields from bank notification
// emails using labeled-field patterns. It is the deterministic default
// extractor; a model-backed extractor can replace it behind the same
// interface.
type PatternExtractor struct {
	html     *parser.HTMLParser
	patterns []*fieldPattern
}

type fieldPattern struct {
	field  string
	core   bool // counts toward the confidence score
	regex  *regexp.Regexp
	assign func(*models.CandidateRecord, string)
}

// NewPatternExtractor creates a new pattern extractor
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{
		html: parser.NewHTMLParser(),
		patterns: []*fieldPattern{
			{
				field: "loan_account_number",
				core:  true,
				regex: regexp.MustCompile(`(?i)loan\s*a(?:/c|cc(?:oun)?t)?\.?\s*(?:no|number|#)\.?\s*[:\-|]?\s*([A-Za-z0-9/\-]{4,})`),
				assign: func(c *models.CandidateRecord, v string) {
					c.LoanAccountNumber = v
				},
			},
			{
				field: "bank_app_id",
				core:  true,
				regex: regexp.MustCompile(`(?i)(?:bank\s*)?application\s*(?:id|no|number|ref)\.?\s*[:\-|]?\s*([A-Za-z0-9/\-]{3,})`),
				assign: func(c *models.CandidateRecord, v string) {
					c.BankAppID = v
				},
			},
			{
				field: "basic_app_id",
				regex: regexp.MustCompile(`(?i)basic\s*app(?:lication)?\s*id\s*[:\-|]?\s*([A-Za-z0-9/\-]{3,})`),
				assign: func(c *models.CandidateRecord, v string) {
					c.BasicAppID = v
				},
			},
			{
				field: "disbursement_amount",
				core:  true,
				regex: regexp.MustCompile(`(?i)disburs(?:ed|ement|al)\s*amount\s*[:\-|]?\s*(?:INR|Rs\.?|₹)?\s*([\d,]+(?:\.\d+)?)`),
				assign: func(c *models.CandidateRecord, v string) {
					c.DisbursementAmount = v
				},
			},
			{
				field: "loan_sanction_amount",
				regex: regexp.MustCompile(`(?i)(?:loan\s*)?sanction(?:ed)?\s*amount\s*[:\-|]?\s*(?:INR|Rs\.?|₹)?\s*([\d,]+(?:\.\d+)?)`),
				assign: func(c *models.CandidateRecord, v string) {
					c.LoanSanctionAmount = v
				},
			},
			{
				field: "disbursed_on",
				core:  true,
				regex: regexp.MustCompile(`(?i)disburs(?:ed|ement)\s*(?:on|date)\s*[:\-|]?\s*(\d{1,4}[-/]\w{1,3}[-/]\d{2,4})`),
				assign: func(c *models.CandidateRecord, v string) {
					c.DisbursedOn = v
				},
			},
			{
				field: "sanction_date",
				regex: regexp.MustCompile(`(?i)sanction\s*(?:on|date)\s*[:\-|]?\s*(\d{1,4}[-/]\w{1,3}[-/]\d{2,4})`),
				assign: func(c *models.CandidateRecord, v string) {
					c.SanctionDate = v
				},
			},
			{
				field: "primary_borrower_mobile",
				regex: regexp.MustCompile(`(?i)(?:borrower\s*)?mobile\s*(?:no|number)?\.?\s*[:\-|]?\s*(\+?\d{10,13})`),
				assign: func(c *models.CandidateRecord, v string) {
					c.PrimaryBorrowerMobile = v
				},
			},
			{
				field: "applicant_name",
				regex: regexp.MustCompile(`(?i)(?:applicant|customer|borrower)\s*name\s*[:\-|]?\s*([A-Za-z][A-Za-z .]{1,60})`),
				assign: func(c *models.CandidateRecord, v string) {
					parts := strings.Fields(v)
					if len(parts) > 0 {
						c.FirstName = parts[0]
					}
					if len(parts) > 1 {
						c.LastName = strings.Join(parts[1:], " ")
					}
				},
			},
			{
				field: "app_bank_name",
				regex: regexp.MustCompile(`(?i)bank\s*name\s*[:\-|]?\s*([A-Za-z][A-Za-z &.]{1,60})`),
				assign: func(c *models.CandidateRecord, v string) {
					c.AppBankName = v
				},
			},
		},
	}
}

var stageRegex = regexp.MustCompile(`(?i)\b(disbursement\s+completed|disbursed|disbursement|pending)\b`)

// Extract pulls disbursement fields out of one email. An email that matches
// no core field yields no candidates.
func (e *PatternExtractor) Extract(_ context.Context, raw models.RawEmail) ([]models.CandidateRecord, error) {
	text := raw.BodyText
	if raw.BodyHTML != "" {
		parsed, err := e.html.Parse(raw.BodyHTML)
		if err == nil && parsed != "" {
			text = parsed
		}
	}
	if text == "" && raw.Subject == "" {
		return nil, nil
	}

	candidate := models.CandidateRecord{
		EmailSubject:  raw.Subject,
		EmailSender:   raw.Sender,
		EmailDate:     raw.Date.Format(time.RFC3339),
		SourceEmailID: raw.ID,
	}

	var matchedCore, totalCore int
	for _, p := range e.patterns {
		if p.core {
			totalCore++
		}
		m := p.regex.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		p.assign(&candidate, strings.TrimSpace(m[1]))
		if p.core {
			matchedCore++
		}
	}

	// Stage appears in body or subject; subject wins when the body is silent
	if m := stageRegex.FindString(text); m != "" {
		candidate.DisbursementStage = canonicalStage(m)
	} else if m := stageRegex.FindString(raw.Subject); m != "" {
		candidate.DisbursementStage = canonicalStage(m)
	}

	if matchedCore == 0 {
		return nil, nil
	}

	candidate.ConfidenceScore = float64(matchedCore) / float64(totalCore)
	candidate.Normalize()

	return []models.CandidateRecord{candidate}, nil
}

func canonicalStage(s string) string {
	switch strings.ToLower(strings.Join(strings.Fields(s), " ")) {
	case "disbursed":
		return "Disbursed"
	case "disbursement completed":
		return "Disbursement Completed"
	case "disbursement":
		return "Disbursement"
	case "pending":
		return "Pending"
	}
	return s
}
