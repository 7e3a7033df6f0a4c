package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"github.com/opsfin/disbursewatch/pkg/models"
)

// ClientConfig configuration for the IMAP client
type ClientConfig struct {
	User        string
	Password    string
	Server      string // host:port
	DialTimeout time.Duration
}

// Client is an IMAP client for the monitored mailbox. Fetch establishes the
// connection on demand and reconnects after failures.
type Client struct {
	config    ClientConfig
	client    *client.Client
	logger    *slog.Logger
	mu        sync.Mutex
	connected bool
}

// NewClient creates a new IMAP client
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	return &Client{
		config: cfg,
		logger: logger.With("component", "imap", "user", cfg.User),
	}
}

// Connect connects and logs in to the IMAP server
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	if c.connected {
		return nil
	}

	c.logger.Info("connecting to IMAP server", "server", c.config.Server)

	timeout := c.config.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", c.config.Server, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create IMAP client: %w", err)
	}

	if err := imapClient.Login(c.config.User, c.config.Password); err != nil {
		imapClient.Logout()
		return fmt.Errorf("failed to login: %w", err)
	}

	c.client = imapClient
	c.connected = true
	c.logger.Info("connected to IMAP server")

	return nil
}

// Fetch returns all messages in folder received within [since, until). The
// IMAP SINCE/BEFORE search has day granularity, so the result is re-filtered
// against the precise window by the caller.
func (c *Client) Fetch(ctx context.Context, folder string, since, until time.Time) ([]models.RawEmail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(); err != nil {
		return nil, err
	}

	if _, err := c.client.Select(folder, true); err != nil {
		c.dropConnection()
		return nil, fmt.Errorf("failed to select folder %q: %w", folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since.Truncate(24 * time.Hour)
	if until.Before(time.Now().Truncate(24 * time.Hour)) {
		criteria.Before = until
	}

	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		c.dropConnection()
		return nil, fmt.Errorf("failed to search folder %q: %w", folder, err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 100)
	done := make(chan error, 1)
	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	var emails []models.RawEmail
	for msg := range messages {
		raw, err := c.parseMessage(msg, folder, section)
		if err != nil {
			c.logger.Warn("failed to parse message", "uid", msg.Uid, "error", err)
			continue
		}
		// Precise window check on top of the day-granular IMAP search
		if !raw.Date.IsZero() && (raw.Date.Before(since) || !raw.Date.Before(until)) {
			continue
		}
		emails = append(emails, *raw)
	}

	if err := <-done; err != nil {
		c.dropConnection()
		return emails, fmt.Errorf("failed to fetch: %w", err)
	}

	return emails, nil
}

// parseMessage parses an IMAP message into a RawEmail
func (c *Client) parseMessage(msg *imap.Message, folder string, section *imap.BodySectionName) (*models.RawEmail, error) {
	raw := &models.RawEmail{
		UID:    msg.Uid,
		Folder: folder,
	}

	if msg.Envelope != nil {
		raw.Subject = msg.Envelope.Subject
		raw.Date = msg.Envelope.Date
		raw.ID = msg.Envelope.MessageId

		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			raw.Sender = from.Address()
			raw.SenderName = from.PersonalName
		}
	}
	if raw.ID == "" {
		raw.ID = fmt.Sprintf("%s:%d", folder, msg.Uid)
	}

	bodyReader := msg.GetBody(section)
	if bodyReader != nil {
		mr, err := mail.CreateReader(bodyReader)
		if err != nil {
			c.logger.Warn("failed to create mail reader", "error", err)
			return raw, nil
		}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				c.logger.Warn("failed to read part", "error", err)
				break
			}

			h, ok := part.Header.(*mail.InlineHeader)
			if !ok {
				continue
			}
			ct, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}

			if strings.HasPrefix(ct, "text/html") {
				raw.BodyHTML = string(body)
			} else if strings.HasPrefix(ct, "text/plain") {
				raw.BodyText = string(body)
			}
		}
	}

	return raw, nil
}

func (c *Client) dropConnection() {
	c.connected = false
	if c.client != nil {
		c.client.Logout()
		c.client = nil
	}
}

// Close logs out and closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropConnection()
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
