package channels

import (
	"context"
	"sync"
)

// CollectedMessage is one delivered unit recorded by the collecting
// channel. Only the fields that were actually sent are set.
type CollectedMessage struct {
	RecipientID string         `json:"recipient_id"`
	Text        string         `json:"text,omitempty"`
	Image       string         `json:"image,omitempty"`
	Buttons     []Button       `json:"buttons,omitempty"`
	Attachment  string         `json:"attachment,omitempty"`
	Custom      map[string]any `json:"custom,omitempty"`
}

// CollectingOutputChannel records delivered messages in an ordered,
// append-only list instead of sending them anywhere. It is the default
// output channel for headless use and tests.
type CollectingOutputChannel struct {
	mu       sync.Mutex
	messages []CollectedMessage
}

// NewCollectingOutputChannel creates an empty collecting channel.
func NewCollectingOutputChannel() *CollectingOutputChannel {
	return &CollectingOutputChannel{}
}

// Name identifies the channel variant.
func (c *CollectingOutputChannel) Name() string {
	return "collector"
}

func (c *CollectingOutputChannel) persist(msg CollectedMessage) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
}

// SendTextMessage records one message per blank-line-separated paragraph.
func (c *CollectingOutputChannel) SendTextMessage(ctx context.Context, recipientID, text string) error {
	for _, part := range SplitParagraphs(text) {
		c.persist(CollectedMessage{RecipientID: recipientID, Text: part})
	}
	return nil
}

// SendImageURL records an image message.
func (c *CollectingOutputChannel) SendImageURL(ctx context.Context, recipientID, image string) error {
	c.persist(CollectedMessage{RecipientID: recipientID, Image: image})
	return nil
}

// SendAttachment records an attachment message.
func (c *CollectingOutputChannel) SendAttachment(ctx context.Context, recipientID, attachment string) error {
	c.persist(CollectedMessage{RecipientID: recipientID, Attachment: attachment})
	return nil
}

// SendTextWithButtons records text and buttons as a single message.
func (c *CollectingOutputChannel) SendTextWithButtons(ctx context.Context, recipientID, text string, buttons []Button) error {
	c.persist(CollectedMessage{RecipientID: recipientID, Text: text, Buttons: buttons})
	return nil
}

// SendCustomJSON records a custom payload.
func (c *CollectingOutputChannel) SendCustomJSON(ctx context.Context, recipientID string, payload map[string]any) error {
	c.persist(CollectedMessage{RecipientID: recipientID, Custom: payload})
	return nil
}

// Messages returns a copy of everything recorded so far, in order.
func (c *CollectingOutputChannel) Messages() []CollectedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CollectedMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// LatestOutput returns the most recently recorded message, or nil when
// nothing has been sent.
func (c *CollectingOutputChannel) LatestOutput() *CollectedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return nil
	}
	msg := c.messages[len(c.messages)-1]
	return &msg
}
