package models

import "time"

// Disbursement is a persisted disbursement record. Rows are insert-only: a
// later occurrence of the "same" disbursement becomes a new row flagged as
// duplicate, never an update, so the full audit history is preserved.
type Disbursement struct {
	ID                    int64     `db:"id"`
	FirstName             string    `db:"first_name"`
	LastName              string    `db:"last_name"`
	LoanAccountNumber     string    `db:"loan_account_number"`
	BankAppID             string    `db:"bank_app_id"`
	BasicAppID            string    `db:"basic_app_id"`
	AppBankName           string    `db:"app_bank_name"`
	DisbursementAmount    float64   `db:"disbursement_amount"`
	LoanSanctionAmount    float64   `db:"loan_sanction_amount"`
	DisbursementStage     string    `db:"disbursement_stage"`
	DisbursementStatus    string    `db:"disbursement_status"`
	SanctionDate          string    `db:"sanction_date"`
	DisbursedOn           string    `db:"disbursed_on"`
	PrimaryBorrowerMobile string    `db:"primary_borrower_mobile"`
	EmailSubject          string    `db:"email_subject"`
	EmailSender           string    `db:"email_sender"`
	EmailDate             string    `db:"email_date"`
	SourceEmailID         string    `db:"source_email_id"`
	ConfidenceScore       float64   `db:"confidence_score"`
	ExtractionMethod      string    `db:"extraction_method"`
	IsDuplicate           bool      `db:"is_duplicate"`
	ProcessedAt           time.Time `db:"processed_at"`
	CreatedBy             string    `db:"created_by"`
	CreatedAt             time.Time `db:"created_at"`
}

// NewDisbursement builds a persisted row from an accepted candidate. The
// amount must already have passed the quality filter, so parse errors are
// not expected here; a zero amount would indicate a filter bug upstream.
func NewDisbursement(c *CandidateRecord, isDuplicate bool) *Disbursement {
	amount, _ := c.Amount()
	sanction, _ := ParseAmount(c.LoanSanctionAmount)

	status := c.DisbursementStatus
	if status == "" {
		status = "VerifiedByExtraction"
	}

	return &Disbursement{
		FirstName:             c.FirstName,
		LastName:              c.LastName,
		LoanAccountNumber:     c.LoanAccountNumber,
		BankAppID:             c.BankAppID,
		BasicAppID:            c.BasicAppID,
		AppBankName:           c.AppBankName,
		DisbursementAmount:    amount,
		LoanSanctionAmount:    sanction,
		DisbursementStage:     c.DisbursementStage,
		DisbursementStatus:    status,
		SanctionDate:          c.SanctionDate,
		DisbursedOn:           c.DisbursedOn,
		PrimaryBorrowerMobile: c.PrimaryBorrowerMobile,
		EmailSubject:          c.EmailSubject,
		EmailSender:           c.EmailSender,
		EmailDate:             c.EmailDate,
		SourceEmailID:         c.SourceEmailID,
		ConfidenceScore:       c.ConfidenceScore,
		ExtractionMethod:      "pattern",
		IsDuplicate:           isDuplicate,
		ProcessedAt:           time.Now(),
		CreatedBy:             "system",
	}
}
