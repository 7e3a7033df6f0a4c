package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Sentinel strings that extraction emits when a field is absent. They are
// converted to the empty string once, at the extraction boundary; everything
// downstream only ever checks for "".
var sentinelValues = map[string]struct{}{
	"":          {},
	"not found": {},
	"na":        {},
	"n/a":       {},
	"none":      {},
	"null":      {},
}

// NormalizeField trims a field value and maps sentinel placeholders to "".
func NormalizeField(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := sentinelValues[strings.ToLower(s)]; ok {
		return ""
	}
	return s
}

// ParseAmount parses a currency amount as extracted from an email,
// tolerating thousands separators and surrounding whitespace.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// CandidateRecord is one extracted disbursement candidate from a single email.
// Immutable after Normalize; consumed by the quality filter and the
// deduplication engine.
type CandidateRecord struct {
	FirstName             string
	LastName              string
	LoanAccountNumber     string
	BankAppID             string
	BasicAppID            string
	AppBankName           string
	DisbursementAmount    string // as extracted, may contain separators
	LoanSanctionAmount    string
	DisbursementStage     string // Disbursed | Pending | ...
	DisbursementStatus    string // free-form verification tag
	SanctionDate          string
	DisbursedOn           string
	PrimaryBorrowerMobile string

	// source email context
	EmailSubject  string
	EmailSender   string
	EmailDate     string
	SourceEmailID string

	ConfidenceScore float64
}

// Normalize converts sentinel placeholders to true absence. Extraction calls
// this exactly once before handing the candidate to the pipeline.
func (c *CandidateRecord) Normalize() {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.LoanAccountNumber = NormalizeField(c.LoanAccountNumber)
	c.BankAppID = NormalizeField(c.BankAppID)
	c.BasicAppID = NormalizeField(c.BasicAppID)
	c.AppBankName = NormalizeField(c.AppBankName)
	c.DisbursementAmount = NormalizeField(c.DisbursementAmount)
	c.LoanSanctionAmount = NormalizeField(c.LoanSanctionAmount)
	c.DisbursementStage = strings.TrimSpace(c.DisbursementStage)
	c.DisbursementStatus = strings.TrimSpace(c.DisbursementStatus)
	c.SanctionDate = NormalizeField(c.SanctionDate)
	c.DisbursedOn = NormalizeField(c.DisbursedOn)
	c.PrimaryBorrowerMobile = NormalizeField(c.PrimaryBorrowerMobile)
}

// HasIdentifier reports whether the candidate carries at least one usable
// application identifier.
func (c *CandidateRecord) HasIdentifier() bool {
	return c.LoanAccountNumber != "" || c.BankAppID != ""
}

// Amount returns the parsed disbursement amount.
func (c *CandidateRecord) Amount() (float64, error) {
	return ParseAmount(c.DisbursementAmount)
}
