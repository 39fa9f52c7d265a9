package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Message is one outbound email
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Provider delivers a message and returns the provider's message id
type Provider interface {
	Send(ctx context.Context, msg Message) (messageID string, err error)
}

// TemplateStore loads stored templates by event
type TemplateStore interface {
	GetTemplate(ctx context.Context, event string) (*entity.EmailTemplate, error)
}

// LogStore records dispatch attempts
type LogStore interface {
	InsertLog(ctx context.Context, log *entity.EmailLog) error
	UpdateLog(ctx context.Context, log *entity.EmailLog) error
}

// Cap on concurrent provider calls during fan-out
const maxConcurrentSends = 4

// Sender renders templates and delivers them through the provider. Every
// attempt is recorded in email_logs regardless of outcome.
type Sender struct {
	provider  Provider
	templates TemplateStore
	logs      LogStore
	logger    *zap.Logger
}

// NewSender creates a new sender
func NewSender(provider Provider, templates TemplateStore, logs LogStore, logger *zap.Logger) *Sender {
	return &Sender{
		provider:  provider,
		templates: templates,
		logs:      logs,
		logger:    logger,
	}
}

// Send renders the event's template with fields and delivers it to recipient
func (s *Sender) Send(ctx context.Context, event, recipient string, fields map[string]string) error {
	tpl, err := s.templates.GetTemplate(ctx, event)
	if err != nil {
		return err
	}
	if tpl == nil {
		return fmt.Errorf("no template for event %q", event)
	}

	rendered, err := RenderTemplate(tpl, fields)
	if err != nil {
		return err
	}

	log := &entity.EmailLog{
		Event:     event,
		Recipient: recipient,
		Subject:   rendered.Subject,
		HTMLBody:  rendered.HTMLBody,
		TextBody:  rendered.TextBody,
		Status:    entity.EmailStatusPending,
	}
	if err := s.logs.InsertLog(ctx, log); err != nil {
		return err
	}

	return s.Deliver(ctx, log)
}

// Deliver sends an already-rendered message and records the outcome on its
// log row. Used both for first sends and worker retries.
func (s *Sender) Deliver(ctx context.Context, log *entity.EmailLog) error {
	log.Attempts++

	messageID, sendErr := s.provider.Send(ctx, Message{
		To:       log.Recipient,
		Subject:  log.Subject,
		HTMLBody: log.HTMLBody,
		TextBody: log.TextBody,
	})

	if sendErr != nil {
		log.Status = entity.EmailStatusFailed
		log.ErrorDetail = sendErr.Error()
		s.logger.Error("Email delivery failed",
			zap.String("event", log.Event),
			zap.String("recipient", log.Recipient),
			zap.Int("attempts", log.Attempts),
			zap.Error(sendErr))
	} else {
		log.Status = entity.EmailStatusSent
		log.ProviderMessageID = messageID
		log.ErrorDetail = ""
		s.logger.Info("Email sent",
			zap.String("event", log.Event),
			zap.String("recipient", log.Recipient),
			zap.String("message_id", messageID))
	}

	if err := s.logs.UpdateLog(ctx, log); err != nil {
		s.logger.Error("Failed to record email outcome",
			zap.Int64("log_id", log.ID),
			zap.Error(err))
	}

	if sendErr != nil {
		return fmt.Errorf("failed to send email: %w", sendErr)
	}
	return nil
}

// SendMany fans one event out to several recipients with bounded concurrency.
// Per-recipient failures are collected, not short-circuited: one recipient's
// failure must not cancel a sibling's in-flight send, so the group does not
// derive a shared cancellable context.
func (s *Sender) SendMany(ctx context.Context, event string, recipients []string, fields map[string]string) error {
	var g errgroup.Group
	g.SetLimit(maxConcurrentSends)

	for _, recipient := range recipients {
		recipient := recipient
		g.Go(func() error {
			return s.Send(ctx, event, recipient, fields)
		})
	}

	return g.Wait()
}

// HTTPProvider posts messages to a transactional email provider's REST API
type HTTPProvider struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPProvider creates a provider client for the given API endpoint
func NewHTTPProvider(endpoint, apiKey, from string, logger *zap.Logger) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     from,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

type providerRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}

type providerResponse struct {
	ID string `json:"id"`
}

// Send posts one message to the provider
func (p *HTTPProvider) Send(ctx context.Context, msg Message) (string, error) {
	payload, err := json.Marshal(providerRequest{
		From:    p.from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTMLBody,
		Text:    msg.TextBody,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("email provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("Email provider rejected message",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return "", fmt.Errorf("email provider returned status %d", resp.StatusCode)
	}

	var parsed providerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		// Delivery succeeded; a missing id is not worth failing over.
		p.logger.Debug("Could not parse provider response", zap.Error(err))
	}

	return parsed.ID, nil
}

// Verify interface compliance
var _ Provider = (*HTTPProvider)(nil)
