package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/channels"
)

// stubInput is a minimal input channel whose blueprint records whether
// its webhook route ran.
type stubInput struct {
	name   string
	hits   int
	buffer *channels.CollectingOutputChannel
}

func (s *stubInput) Name() string { return s.name }

func (s *stubInput) Blueprint(onNewMessage channels.NewMessageHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", func(w http.ResponseWriter, r *http.Request) {
		s.hits++
		msg := channels.NewUserMessage(channels.UserMessageParams{
			Text:   "ping",
			Output: s.buffer,
		})
		_ = onNewMessage(r.Context(), msg.SenderID, msg)
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *stubInput) Metadata(r *http.Request) map[string]any { return nil }
func (s *stubInput) OutputChannel() channels.OutputChannel   { return s.buffer }

func TestHealthEndpoint(t *testing.T) {
	handler := New(&Config{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestMetricsEndpointMounted(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("metrics here"))
	})
	handler := New(&Config{MetricsHandler: metricsHandler})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "metrics here", w.Body.String())
}

func TestInputChannelMountedUnderWebhooks(t *testing.T) {
	input := &stubInput{name: "stub", buffer: channels.NewCollectingOutputChannel()}
	var handled []string
	handler := New(&Config{
		Input: input,
		OnNewMessage: func(ctx context.Context, senderID string, msg *channels.UserMessage) error {
			handled = append(handled, msg.Text)
			return nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stub/webhook", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, input.hits)
	assert.Equal(t, []string{"ping"}, handled)
}

func TestNilInputStillServesHealth(t *testing.T) {
	handler := New(&Config{Input: nil})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stub/webhook", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
