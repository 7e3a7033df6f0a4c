package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/opsfin/disbursewatch/pkg/models"
)

// Config for the system-of-record client
type Config struct {
	BaseURL string // e.g., https://api.example.com
	UserID  string
	APIKey  string
}

// Client talks to the loan system-of-record. Every request is signed; the
// server rejects requests with stale timestamps or reused nonces.
type Client struct {
	baseURL    string
	userID     string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new system-of-record client
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		userID:  cfg.UserID,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured returns true if the system-of-record integration is configured
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.userID != "" && c.apiKey != ""
}

type attachProofRequest struct {
	LoanAccountNumber string `json:"loan_account_number,omitempty"`
	BankAppID         string `json:"bank_app_id,omitempty"`
	DocumentURL       string `json:"document_url"`
	DocumentType      string `json:"document_type"`
}

// AttachProof attaches an uploaded proof document URL to the disbursement's
// loan record.
func (c *Client) AttachProof(ctx context.Context, rec *models.Disbursement, url string) error {
	if !c.IsConfigured() {
		return fmt.Errorf("notifier not configured")
	}

	req := attachProofRequest{
		LoanAccountNumber: rec.LoanAccountNumber,
		BankAppID:         rec.BankAppID,
		DocumentURL:       url,
		DocumentType:      "disbursement_proof",
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/api/loans/documents"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := uuid.NewString()

	signature, err := signRequest(c.apiKey, c.userID, timestamp, endpoint, "POST", nonce, body)
	if err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("UserId", c.userID)
	httpReq.Header.Set("CurrentTimestamp", timestamp)
	httpReq.Header.Set("Nonce", nonce)
	httpReq.Header.Set("Authorization", "Signature "+signature)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error: %s (status %d)", string(respBody), resp.StatusCode)
	}
	return nil
}
