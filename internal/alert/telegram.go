package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/opsfin/disbursewatch/pkg/models"
)

// TelegramAlerter announces newly persisted disbursements to the ops chat.
type TelegramAlerter struct {
	bot    *bot.Bot
	chatID int64
}

// NewTelegramAlerter creates a new Telegram alerter
func NewTelegramAlerter(token string, chatID int64) (*TelegramAlerter, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramAlerter{bot: b, chatID: chatID}, nil
}

// NewDisbursement sends a formatted alert for one persisted record.
func (a *TelegramAlerter) NewDisbursement(ctx context.Context, rec *models.Disbursement) error {
	_, err := a.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    a.chatID,
		Text:      formatDisbursement(rec),
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	return nil
}

// formatDisbursement formats a disbursement alert for Telegram
func formatDisbursement(rec *models.Disbursement) string {
	var sb strings.Builder

	sb.WriteString("<b>New disbursement</b>\n\n")

	name := strings.TrimSpace(rec.FirstName + " " + rec.LastName)
	if name != "" {
		sb.WriteString(fmt.Sprintf("<b>Applicant:</b> %s\n", escapeHTML(name)))
	}
	if rec.LoanAccountNumber != "" {
		sb.WriteString(fmt.Sprintf("<b>Loan account:</b> <code>%s</code>\n", escapeHTML(rec.LoanAccountNumber)))
	}
	if rec.BankAppID != "" {
		sb.WriteString(fmt.Sprintf("<b>Bank app id:</b> <code>%s</code>\n", escapeHTML(rec.BankAppID)))
	}
	if rec.AppBankName != "" {
		sb.WriteString(fmt.Sprintf("<b>Bank:</b> %s\n", escapeHTML(rec.AppBankName)))
	}
	sb.WriteString(fmt.Sprintf("<b>Amount:</b> %.2f\n", rec.DisbursementAmount))
	if rec.DisbursedOn != "" {
		sb.WriteString(fmt.Sprintf("<b>Disbursed on:</b> %s\n", escapeHTML(rec.DisbursedOn)))
	}
	if rec.IsDuplicate {
		sb.WriteString("\nFlagged as duplicate (force-saved)\n")
	}

	return sb.String()
}

// escapeHTML escapes HTML special characters for Telegram
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
