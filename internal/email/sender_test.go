package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldserve/workorder/internal/domain/entity"
)

type fakeProvider struct {
	mu        sync.Mutex
	sent      []Message
	messageID string
	err       error
}

func (f *fakeProvider) Send(_ context.Context, msg Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return f.messageID, nil
}

type fakeTemplateStore struct {
	templates map[string]*entity.EmailTemplate
}

func (f *fakeTemplateStore) GetTemplate(_ context.Context, event string) (*entity.EmailTemplate, error) {
	return f.templates[event], nil
}

type fakeLogStore struct {
	mu       sync.Mutex
	inserted []*entity.EmailLog
	updated  []*entity.EmailLog
}

func (f *fakeLogStore) InsertLog(_ context.Context, log *entity.EmailLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	log.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, log)
	return nil
}

func (f *fakeLogStore) UpdateLog(_ context.Context, log *entity.EmailLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, log)
	return nil
}

func assignedTemplate() *entity.EmailTemplate {
	return &entity.EmailTemplate{
		Event:    "work_order_assigned",
		Subject:  "Assigned: {{work_order_number}}",
		HTMLBody: "<p>{{work_order_title}}</p>",
		TextBody: "{{work_order_title}}",
	}
}

func TestSender_Send_Success(t *testing.T) {
	provider := &fakeProvider{messageID: "msg-123"}
	logs := &fakeLogStore{}
	sender := NewSender(provider, &fakeTemplateStore{templates: map[string]*entity.EmailTemplate{
		"work_order_assigned": assignedTemplate(),
	}}, logs, zap.NewNop())

	err := sender.Send(context.Background(), "work_order_assigned", "tech@example.com", map[string]string{
		"work_order_number": "WO-2026-00001",
		"work_order_title":  "Replace compressor",
	})
	require.NoError(t, err)

	require.Len(t, provider.sent, 1)
	assert.Equal(t, "tech@example.com", provider.sent[0].To)
	assert.Equal(t, "Assigned: WO-2026-00001", provider.sent[0].Subject)

	require.Len(t, logs.inserted, 1)
	log := logs.inserted[0]
	assert.Equal(t, entity.EmailStatusSent, log.Status)
	assert.Equal(t, "msg-123", log.ProviderMessageID)
	assert.Equal(t, 1, log.Attempts)
	assert.Equal(t, "<p>Replace compressor</p>", log.HTMLBody)
	require.Len(t, logs.updated, 1)
}

func TestSender_Send_NoTemplate(t *testing.T) {
	sender := NewSender(&fakeProvider{}, &fakeTemplateStore{}, &fakeLogStore{}, zap.NewNop())

	err := sender.Send(context.Background(), "unknown_event", "a@example.com", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no template for event")
}

func TestSender_Send_ProviderFailureIsLogged(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited")}
	logs := &fakeLogStore{}
	sender := NewSender(provider, &fakeTemplateStore{templates: map[string]*entity.EmailTemplate{
		"work_order_assigned": assignedTemplate(),
	}}, logs, zap.NewNop())

	err := sender.Send(context.Background(), "work_order_assigned", "tech@example.com", nil)
	require.Error(t, err)

	// The attempt is still recorded so the retry worker can pick it up
	require.Len(t, logs.inserted, 1)
	log := logs.inserted[0]
	assert.Equal(t, entity.EmailStatusFailed, log.Status)
	assert.Equal(t, "rate limited", log.ErrorDetail)
	assert.Equal(t, 1, log.Attempts)
}

func TestSender_Deliver_RetryIncrementsAttempts(t *testing.T) {
	provider := &fakeProvider{err: errors.New("timeout")}
	logs := &fakeLogStore{}
	sender := NewSender(provider, &fakeTemplateStore{}, logs, zap.NewNop())

	log := &entity.EmailLog{
		ID:        5,
		Event:     "work_order_assigned",
		Recipient: "tech@example.com",
		Subject:   "Assigned",
		HTMLBody:  "<p>body</p>",
		Status:    entity.EmailStatusFailed,
		Attempts:  1,
	}

	require.Error(t, sender.Deliver(context.Background(), log))
	assert.Equal(t, 2, log.Attempts)

	// Provider recovers on the next sweep
	provider.err = nil
	provider.messageID = "msg-456"
	require.NoError(t, sender.Deliver(context.Background(), log))
	assert.Equal(t, 3, log.Attempts)
	assert.Equal(t, entity.EmailStatusSent, log.Status)
	assert.Equal(t, "msg-456", log.ProviderMessageID)
	assert.Empty(t, log.ErrorDetail)
}

// providerFunc adapts a function to the Provider interface
type providerFunc func(ctx context.Context, msg Message) (string, error)

func (f providerFunc) Send(ctx context.Context, msg Message) (string, error) {
	return f(ctx, msg)
}

func TestSender_SendMany_AllRecipients(t *testing.T) {
	provider := &fakeProvider{messageID: "msg"}
	logs := &fakeLogStore{}
	sender := NewSender(provider, &fakeTemplateStore{templates: map[string]*entity.EmailTemplate{
		"work_order_assigned": assignedTemplate(),
	}}, logs, zap.NewNop())

	recipients := []string{"a@example.com", "b@example.com", "c@example.com"}
	err := sender.SendMany(context.Background(), "work_order_assigned", recipients, nil)
	require.NoError(t, err)

	assert.Len(t, provider.sent, 3)
	assert.Len(t, logs.inserted, 3)
}

// One recipient's failure must not cancel a sibling's in-flight send: the
// sibling delivers with a live context and the failure only surfaces in the
// collected result.
func TestSender_SendMany_FailureDoesNotCancelSiblings(t *testing.T) {
	slowStarted := make(chan struct{})
	badFailed := make(chan struct{})

	var mu sync.Mutex
	var delivered []string
	var slowCtxErr error

	provider := providerFunc(func(ctx context.Context, msg Message) (string, error) {
		switch msg.To {
		case "slow@example.com":
			close(slowStarted)
			<-badFailed // stay in flight until the sibling has failed
			mu.Lock()
			slowCtxErr = ctx.Err()
			delivered = append(delivered, msg.To)
			mu.Unlock()
			return "msg-slow", nil
		case "bad@example.com":
			<-slowStarted
			defer close(badFailed)
			return "", errors.New("mailbox unavailable")
		default:
			mu.Lock()
			delivered = append(delivered, msg.To)
			mu.Unlock()
			return "msg-ok", nil
		}
	})

	logs := &fakeLogStore{}
	sender := NewSender(provider, &fakeTemplateStore{templates: map[string]*entity.EmailTemplate{
		"work_order_assigned": assignedTemplate(),
	}}, logs, zap.NewNop())

	recipients := []string{"slow@example.com", "bad@example.com", "ok@example.com"}
	err := sender.SendMany(context.Background(), "work_order_assigned", recipients, nil)
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.NoError(t, slowCtxErr, "in-flight send saw a cancelled context after a sibling failure")
	assert.ElementsMatch(t, []string{"slow@example.com", "ok@example.com"}, delivered)

	// Every recipient got a log row; only the failing one is marked failed
	require.Len(t, logs.inserted, 3)
	failed := 0
	for _, log := range logs.inserted {
		if log.Status == entity.EmailStatusFailed {
			failed++
			assert.Equal(t, "bad@example.com", log.Recipient)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestHTTPProvider_Send(t *testing.T) {
	var got providerRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"prov-789"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "secret-key", "noreply@fieldserve.example", zap.NewNop())

	id, err := p.Send(context.Background(), Message{
		To:       "tech@example.com",
		Subject:  "Assigned",
		HTMLBody: "<p>body</p>",
		TextBody: "body",
	})
	require.NoError(t, err)

	assert.Equal(t, "prov-789", id)
	assert.Equal(t, "Bearer secret-key", auth)
	assert.Equal(t, "noreply@fieldserve.example", got.From)
	assert.Equal(t, "tech@example.com", got.To)
	assert.Equal(t, "<p>body</p>", got.HTML)
}

func TestHTTPProvider_Send_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "secret-key", "noreply@fieldserve.example", zap.NewNop())

	_, err := p.Send(context.Background(), Message{To: "tech@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestHTTPProvider_Send_UnparseableResponseStillSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "secret-key", "noreply@fieldserve.example", zap.NewNop())

	id, err := p.Send(context.Background(), Message{To: "tech@example.com"})
	require.NoError(t, err)
	assert.Empty(t, id)
}
