package database

import (
	"context"
	"fmt"
	"time"

	"github.com/opsfin/disbursewatch/pkg/models"
)

// InsertDisbursement inserts a new disbursement row. Rows are never updated;
// duplicates arrive as new rows flagged is_duplicate.
func (db *DB) InsertDisbursement(ctx context.Context, d *models.Disbursement) (int64, error) {
	query := `
		INSERT INTO disbursements (
			first_name, last_name, loan_account_number, bank_app_id, basic_app_id,
			app_bank_name, disbursement_amount, loan_sanction_amount,
			disbursement_stage, disbursement_status, sanction_date, disbursed_on,
			primary_borrower_mobile, email_subject, email_sender, email_date,
			source_email_id, confidence_score, extraction_method, is_duplicate,
			processed_at, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		d.FirstName,
		d.LastName,
		d.LoanAccountNumber,
		d.BankAppID,
		d.BasicAppID,
		d.AppBankName,
		d.DisbursementAmount,
		d.LoanSanctionAmount,
		d.DisbursementStage,
		d.DisbursementStatus,
		d.SanctionDate,
		d.DisbursedOn,
		d.PrimaryBorrowerMobile,
		d.EmailSubject,
		d.EmailSender,
		d.EmailDate,
		d.SourceEmailID,
		d.ConfidenceScore,
		d.ExtractionMethod,
		d.IsDuplicate,
		d.ProcessedAt,
		d.CreatedBy,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert disbursement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	d.ID = id
	d.CreatedAt = now
	return id, nil
}

// QueryByIdentifier returns persisted disbursements sharing either application
// identifier. Empty identifiers never match; passing two empty identifiers
// returns no rows.
func (db *DB) QueryByIdentifier(ctx context.Context, loanAccountNumber, bankAppID string) ([]models.Disbursement, error) {
	var (
		query string
		args  []any
	)

	switch {
	case loanAccountNumber != "" && bankAppID != "":
		query = `SELECT * FROM disbursements WHERE loan_account_number = ? OR bank_app_id = ?`
		args = []any{loanAccountNumber, bankAppID}
	case loanAccountNumber != "":
		query = `SELECT * FROM disbursements WHERE loan_account_number = ?`
		args = []any{loanAccountNumber}
	case bankAppID != "":
		query = `SELECT * FROM disbursements WHERE bank_app_id = ?`
		args = []any{bankAppID}
	default:
		return nil, nil
	}

	var records []models.Disbursement
	if err := db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query disbursements: %w", err)
	}
	return records, nil
}

// RecentDisbursements returns the most recently processed rows.
func (db *DB) RecentDisbursements(ctx context.Context, limit, offset int) ([]models.Disbursement, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []models.Disbursement
	query := `SELECT * FROM disbursements ORDER BY processed_at DESC LIMIT ? OFFSET ?`
	if err := db.SelectContext(ctx, &records, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list disbursements: %w", err)
	}
	return records, nil
}

// DisbursementTotals is the aggregate view used by the stats endpoint.
type DisbursementTotals struct {
	TotalRecords   int     `db:"total_records" json:"total_records"`
	UniqueRecords  int     `db:"unique_records" json:"unique_records"`
	DuplicateRows  int     `db:"duplicate_rows" json:"duplicate_rows"`
	TotalAmount    float64 `db:"total_amount" json:"total_amount"`
	AverageAmount  float64 `db:"average_amount" json:"average_amount"`
	ProcessedToday int     `db:"processed_today" json:"processed_today"`
}

// DisbursementStats computes aggregate statistics over persisted records.
func (db *DB) DisbursementStats(ctx context.Context) (*DisbursementTotals, error) {
	var totals DisbursementTotals
	query := `
		SELECT
			COUNT(*) AS total_records,
			COALESCE(SUM(CASE WHEN is_duplicate THEN 0 ELSE 1 END), 0) AS unique_records,
			COALESCE(SUM(CASE WHEN is_duplicate THEN 1 ELSE 0 END), 0) AS duplicate_rows,
			COALESCE(SUM(CASE WHEN is_duplicate THEN 0 ELSE disbursement_amount END), 0) AS total_amount,
			COALESCE(AVG(CASE WHEN is_duplicate THEN NULL ELSE disbursement_amount END), 0) AS average_amount,
			COALESCE(SUM(CASE WHEN date(processed_at) = date('now') THEN 1 ELSE 0 END), 0) AS processed_today
		FROM disbursements
	`
	if err := db.GetContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("failed to compute disbursement stats: %w", err)
	}
	return &totals, nil
}
