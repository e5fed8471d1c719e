package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"casemail-go/internal/config"
)

// GmailTransport delivers mail through the Gmail API on behalf of a single
// account, authenticated with an OAuth2 refresh token.
type GmailTransport struct {
	service   *gmail.Service
	userEmail string
}

// NewGmailTransport creates a Gmail API transport from configuration.
func NewGmailTransport(cfg *config.GmailConfig) (*GmailTransport, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}
	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &GmailTransport{
		service:   service,
		userEmail: cfg.UserEmail,
	}, nil
}

// Send delivers one message via the Gmail API.
func (t *GmailTransport) Send(ctx context.Context, msg Message) error {
	raw := buildMIME(msg)
	encoded := base64.URLEncoding.EncodeToString([]byte(raw))

	_, err := t.service.Users.Messages.Send(t.userEmail, &gmail.Message{Raw: encoded}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to send mail via Gmail API: %w", err)
	}
	return nil
}

// buildMIME assembles the raw RFC 2822 message for the Gmail API.
func buildMIME(msg Message) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("From: %s\r\n", msg.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTML != "" {
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	} else {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	}
	b.WriteString("Content-Transfer-Encoding: 7bit\r\n")
	b.WriteString("\r\n")

	if msg.HTML != "" {
		b.WriteString(msg.HTML)
	} else {
		b.WriteString(msg.Text)
	}

	return b.String()
}

// TestConnection verifies the Gmail API credentials by fetching the profile.
func (t *GmailTransport) TestConnection(ctx context.Context) error {
	_, err := t.service.Users.GetProfile(t.userEmail).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to test Gmail API connection: %w", err)
	}
	return nil
}

// Close closes the transport (no-op for the Gmail API)
func (t *GmailTransport) Close() error {
	return nil
}
