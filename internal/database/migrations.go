package database

const schema = `
CREATE TABLE IF NOT EXISTS disbursements (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    loan_account_number TEXT NOT NULL DEFAULT '',
    bank_app_id TEXT NOT NULL DEFAULT '',
    basic_app_id TEXT NOT NULL DEFAULT '',
    app_bank_name TEXT NOT NULL DEFAULT '',
    disbursement_amount REAL NOT NULL DEFAULT 0,
    loan_sanction_amount REAL NOT NULL DEFAULT 0,
    disbursement_stage TEXT NOT NULL DEFAULT '',
    disbursement_status TEXT NOT NULL DEFAULT '',
    sanction_date TEXT NOT NULL DEFAULT '',
    disbursed_on TEXT NOT NULL DEFAULT '',
    primary_borrower_mobile TEXT NOT NULL DEFAULT '',
    email_subject TEXT NOT NULL DEFAULT '',
    email_sender TEXT NOT NULL DEFAULT '',
    email_date TEXT NOT NULL DEFAULT '',
    source_email_id TEXT NOT NULL DEFAULT '',
    confidence_score REAL NOT NULL DEFAULT 0,
    extraction_method TEXT NOT NULL DEFAULT 'pattern',
    is_duplicate BOOLEAN NOT NULL DEFAULT false,
    processed_at DATETIME NOT NULL,
    created_by TEXT NOT NULL DEFAULT 'system',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_disbursements_loan_account ON disbursements(loan_account_number);
CREATE INDEX IF NOT EXISTS idx_disbursements_bank_app ON disbursements(bank_app_id);
CREATE INDEX IF NOT EXISTS idx_disbursements_processed_at ON disbursements(processed_at);
CREATE INDEX IF NOT EXISTS idx_disbursements_source_email ON disbursements(source_email_id);
`
