package botframework

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/channels"
	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/observability/metrics"
	"github.com/phongdao-saigontechnology/miku-bot-gateway/pkg/logging"
)

// Channel delivers bot replies to a Bot Framework conversation. One
// instance is bound to a single conversation; the token cache behind it
// is shared process-wide.
type Channel struct {
	conversation ConversationAccount
	bot          any
	apiBase      string
	tokens       *TokenProvider
	httpClient   *http.Client
	logger       *logging.Logger
	metrics      *metrics.ChannelMetrics
}

// ChannelConfig configures an outbound channel for one conversation.
type ChannelConfig struct {
	Conversation ConversationAccount
	// Bot is the reply sender identity, echoed from the inbound
	// activity's recipient field.
	Bot        any
	ServiceURL string
	Tokens     *TokenProvider
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.ChannelMetrics
}

// NewChannel creates an outbound channel. The service URL is normalized
// to end with a slash before the v3 API base is derived from it.
func NewChannel(cfg ChannelConfig) *Channel {
	serviceURL := cfg.ServiceURL
	if !strings.HasSuffix(serviceURL, "/") {
		serviceURL += "/"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Channel{
		conversation: cfg.Conversation,
		bot:          cfg.Bot,
		apiBase:      serviceURL + "v3/",
		tokens:       cfg.Tokens,
		httpClient:   httpClient,
		logger:       logger,
		metrics:      cfg.Metrics,
	}
}

// Name identifies the channel variant.
func (c *Channel) Name() string {
	return "botframework"
}

// PrepareMessage builds the canonical activity envelope and overlays
// the partial message on top of it; partial keys win on conflict.
func (c *Channel) PrepareMessage(recipientID string, partial map[string]any) map[string]any {
	data := map[string]any{
		"type":        "message",
		"recipient":   map[string]any{"id": recipientID},
		"from":        c.bot,
		"channelData": map[string]any{"notification": map[string]any{"alert": "true"}},
		"text":        "",
	}
	for k, v := range partial {
		data[k] = v
	}
	return data
}

// send POSTs one activity to the conversation. Delivery failures are
// logged and swallowed: the platform cannot usefully retry on this
// channel's behalf, so the inbound webhook must still ack.
func (c *Channel) send(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("botframework: marshal activity: %w", err)
	}

	uri := fmt.Sprintf("%sconversations/%s/activities", c.apiBase, c.conversation.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("botframework: create request: %w", err)
	}

	headers := c.tokens.AuthHeaders(ctx)
	if headers == nil {
		// Token exchange failed; send best-effort without auth. The
		// provider already logged the failure.
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveOutbound("error")
		c.logger.Error("botframework: error sending message", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		c.metrics.ObserveOutbound("error")
		c.logger.Error("botframework: error sending message",
			"status", resp.StatusCode,
			"response", string(respBody),
		)
		return nil
	}

	c.metrics.ObserveOutbound("ok")
	return nil
}

// SendTextMessage sends one activity per blank-line-separated
// paragraph, strictly in order.
func (c *Channel) SendTextMessage(ctx context.Context, recipientID, text string) error {
	for _, part := range channels.SplitParagraphs(text) {
		msg := c.PrepareMessage(recipientID, map[string]any{"text": part})
		if err := c.send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// SendImageURL sends the image as a hero card attachment.
func (c *Channel) SendImageURL(ctx context.Context, recipientID, image string) error {
	hero := map[string]any{
		"contentType": heroCardContentType,
		"content":     map[string]any{"images": []map[string]any{{"url": image}}},
	}
	msg := c.PrepareMessage(recipientID, map[string]any{"attachments": []any{hero}})
	return c.send(ctx, msg)
}

// SendAttachment has no channel-native representation; it falls back to
// the text rendering.
func (c *Channel) SendAttachment(ctx context.Context, recipientID, attachment string) error {
	return channels.SendAttachmentAsText(ctx, c, recipientID, attachment)
}

// SendTextWithButtons sends a hero card with the text as subtitle.
func (c *Channel) SendTextWithButtons(ctx context.Context, recipientID, text string, buttons []channels.Button) error {
	hero := map[string]any{
		"contentType": heroCardContentType,
		"content":     map[string]any{"subtitle": text, "buttons": buttons},
	}
	msg := c.PrepareMessage(recipientID, map[string]any{"attachments": []any{hero}})
	return c.send(ctx, msg)
}

// SendElements sends one prepared activity per structured element.
func (c *Channel) SendElements(ctx context.Context, recipientID string, elements []map[string]any) error {
	for _, e := range elements {
		if err := c.send(ctx, c.PrepareMessage(recipientID, e)); err != nil {
			return err
		}
	}
	return nil
}

// SendCustomJSON fills in the envelope fields the caller left out and
// sends the payload as-is otherwise. Caller-supplied values are never
// overwritten.
func (c *Channel) SendCustomJSON(ctx context.Context, recipientID string, payload map[string]any) error {
	msg := make(map[string]any, len(payload)+5)
	for k, v := range payload {
		msg[k] = v
	}

	setDefault(msg, "type", "message")
	recipient := childMap(msg, "recipient")
	setDefault(recipient, "id", recipientID)
	setDefault(msg, "from", c.bot)
	channelData := childMap(msg, "channelData")
	notification := childMap(channelData, "notification")
	setDefault(notification, "alert", "true")
	setDefault(msg, "text", "")

	return c.send(ctx, msg)
}

func setDefault(m map[string]any, key string, value any) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

// childMap returns m[key] as a map, creating it when absent. A value of
// another type is left alone and an unattached map is returned so the
// caller's defaults don't clobber it.
func childMap(m map[string]any, key string) map[string]any {
	if existing, ok := m[key]; ok {
		if child, ok := existing.(map[string]any); ok {
			return child
		}
		return map[string]any{}
	}
	child := map[string]any{}
	m[key] = child
	return child
}
