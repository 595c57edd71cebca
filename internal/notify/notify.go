// Package notify sends SMS and email through the shop's HTTP gateways.
// Sends never fail the caller's operation on their own; every send returns
// a Result and the caller decides what a failure means.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mauricegift/jewell-haven-sub000/internal/config"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

var ErrNotConfigured = errors.New("gateway not configured")

// Result is the outcome of one send.
type Result struct {
	Channel Channel `json:"channel"`
	To      string  `json:"to"`
	Sent    bool    `json:"sent"`
	Error   string  `json:"error,omitempty"`
}

func failed(ch Channel, to string, err error) Result {
	return Result{Channel: ch, To: to, Error: err.Error()}
}

// gateway is the JSON-over-HTTPS transport both providers share.
type gateway struct {
	url    string
	apiKey string
	http   *http.Client
}

func (g *gateway) post(ctx context.Context, payload any) error {
	if g.url == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

type SMSClient struct {
	gw       gateway
	senderID string
}

func NewSMSClient(cfg config.SMSConfig, timeout time.Duration) *SMSClient {
	return &SMSClient{
		gw:       gateway{url: cfg.BaseURL, apiKey: cfg.APIKey, http: &http.Client{Timeout: timeout}},
		senderID: cfg.SenderID,
	}
}

func (c *SMSClient) Send(ctx context.Context, to, message string) Result {
	err := c.gw.post(ctx, map[string]string{
		"to":       to,
		"message":  message,
		"senderId": c.senderID,
	})
	if err != nil {
		return failed(ChannelSMS, to, err)
	}
	return Result{Channel: ChannelSMS, To: to, Sent: true}
}

type EmailClient struct {
	gw   gateway
	from string
}

func NewEmailClient(cfg config.EmailConfig, timeout time.Duration) *EmailClient {
	return &EmailClient{
		gw:   gateway{url: cfg.BaseURL, apiKey: cfg.APIKey, http: &http.Client{Timeout: timeout}},
		from: cfg.From,
	}
}

func (c *EmailClient) Send(ctx context.Context, to, subject, html string) Result {
	err := c.gw.post(ctx, map[string]string{
		"from":    c.from,
		"to":      to,
		"subject": subject,
		"html":    html,
	})
	if err != nil {
		return failed(ChannelEmail, to, err)
	}
	return Result{Channel: ChannelEmail, To: to, Sent: true}
}

// SMSSender and EmailSender let tests swap the HTTP clients out.
type SMSSender interface {
	Send(ctx context.Context, to, message string) Result
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) Result
}

// Notifier composes the messages the shop sends and logs every outcome.
type Notifier struct {
	sms       SMSSender
	email     EmailSender
	templates *TemplateCache
	log       *slog.Logger
}

func NewNotifier(sms SMSSender, email EmailSender, templates *TemplateCache) *Notifier {
	return &Notifier{
		sms:       sms,
		email:     email,
		templates: templates,
		log:       slog.With("component", "notify"),
	}
}

// New wires the HTTP gateways from configuration.
func New(cfg *config.Config) (*Notifier, error) {
	templates, err := DefaultTemplates()
	if err != nil {
		return nil, err
	}
	timeout := 15 * time.Second
	return NewNotifier(
		NewSMSClient(cfg.SMS, timeout),
		NewEmailClient(cfg.Email, timeout),
		templates,
	), nil
}

func (n *Notifier) sendSMS(ctx context.Context, to, message string) Result {
	if to == "" {
		return failed(ChannelSMS, to, errors.New("no phone number"))
	}
	res := n.sms.Send(ctx, to, message)
	n.logResult(res)
	return res
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, tmpl string, data any) Result {
	if to == "" {
		return failed(ChannelEmail, to, errors.New("no email address"))
	}
	html, err := n.templates.Render(tmpl, data)
	if err != nil {
		res := failed(ChannelEmail, to, err)
		n.logResult(res)
		return res
	}
	res := n.email.Send(ctx, to, subject, html)
	n.logResult(res)
	return res
}

func (n *Notifier) logResult(res Result) {
	if res.Sent {
		n.log.Info("Notification sent", "channel", res.Channel, "to", res.To)
		return
	}
	n.log.Warn("Notification failed", "channel", res.Channel, "to", res.To, "error", res.Error)
}
