// Package channels defines the input/output channel contracts that
// decouple message transport from message processing. An InputChannel
// receives user messages from a bot platform and hands them to a
// handler; an OutputChannel delivers bot replies back to the user.
package channels

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrUnsupportedMessageType is returned by output channels that cannot
// deliver a given message type and have no safe text fallback.
var ErrUnsupportedMessageType = errors.New("channels: message type not supported by this channel")

// Button is a single quick-reply or card button.
type Button struct {
	Title   string `json:"title"`
	Type    string `json:"type,omitempty"`
	Value   string `json:"value,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// OutputChannel delivers bot responses to the user. Implementations
// must support plain text; the other methods can fall back to the
// Send*AsText helpers below or return ErrUnsupportedMessageType.
type OutputChannel interface {
	// Name identifies the channel variant.
	Name() string
	// SendTextMessage delivers a plain text message. Multi-paragraph
	// text (blank-line separated) is delivered as one unit per
	// paragraph, in order.
	SendTextMessage(ctx context.Context, recipientID, text string) error
	// SendImageURL delivers an image by URL.
	SendImageURL(ctx context.Context, recipientID, image string) error
	// SendAttachment delivers an opaque attachment reference.
	SendAttachment(ctx context.Context, recipientID, attachment string) error
	// SendTextWithButtons delivers text accompanied by buttons.
	SendTextWithButtons(ctx context.Context, recipientID, text string, buttons []Button) error
	// SendCustomJSON delivers a channel-specific payload.
	SendCustomJSON(ctx context.Context, recipientID string, payload map[string]any) error
}

// NewMessageHandler is invoked once per accepted inbound message.
type NewMessageHandler func(ctx context.Context, senderID string, msg *UserMessage) error

// InputChannel receives user messages from a bot platform.
type InputChannel interface {
	// Name identifies the channel variant.
	Name() string
	// Blueprint returns the HTTP surface of the channel, wired to the
	// given message handler. The returned handler is mounted by the
	// dispatcher under the channel's path prefix.
	Blueprint(onNewMessage NewMessageHandler) http.Handler
	// Metadata extracts transport-specific metadata from a request.
	// May return nil.
	Metadata(r *http.Request) map[string]any
	// OutputChannel returns a proactive output channel when the
	// transport supports one without an inbound message. May return nil.
	OutputChannel() OutputChannel
}

// Response is a structured bot reply. Any combination of fields may be
// set; SendResponse delivers each one.
type Response struct {
	Text       string         `json:"text,omitempty"`
	Image      string         `json:"image,omitempty"`
	Attachment string         `json:"attachment,omitempty"`
	Buttons    []Button       `json:"buttons,omitempty"`
	Custom     map[string]any `json:"custom,omitempty"`
}

// SendResponse dispatches a structured reply through the channel. The
// dispatch order is fixed: text, custom, image, attachment. A reply can
// carry more than one kind of content and all of them are delivered.
// Text with buttons goes out as a single button message.
func SendResponse(ctx context.Context, ch OutputChannel, recipientID string, resp *Response) error {
	if resp == nil {
		return nil
	}

	if resp.Text != "" {
		if len(resp.Buttons) > 0 {
			if err := ch.SendTextWithButtons(ctx, recipientID, resp.Text, resp.Buttons); err != nil {
				return err
			}
		} else if err := ch.SendTextMessage(ctx, recipientID, resp.Text); err != nil {
			return err
		}
	}

	if resp.Custom != nil {
		if err := ch.SendCustomJSON(ctx, recipientID, resp.Custom); err != nil {
			return err
		}
	}

	if resp.Image != "" {
		if err := ch.SendImageURL(ctx, recipientID, resp.Image); err != nil {
			return err
		}
	}

	if resp.Attachment != "" {
		if err := ch.SendAttachment(ctx, recipientID, resp.Attachment); err != nil {
			return err
		}
	}

	return nil
}

// SendImageAsText is the default image fallback for text-only channels.
func SendImageAsText(ctx context.Context, ch OutputChannel, recipientID, image string) error {
	return ch.SendTextMessage(ctx, recipientID, "Image: "+image)
}

// SendAttachmentAsText is the default attachment fallback for text-only channels.
func SendAttachmentAsText(ctx context.Context, ch OutputChannel, recipientID, attachment string) error {
	return ch.SendTextMessage(ctx, recipientID, "Attachment: "+attachment)
}

// SendCustomJSONAsText serializes a custom payload and delivers it as text.
func SendCustomJSONAsText(ctx context.Context, ch OutputChannel, recipientID string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return ch.SendTextMessage(ctx, recipientID, string(data))
}

// SplitParagraphs trims the text and splits it on literal blank-line
// boundaries. Downstream consumers rely on one delivery unit per
// paragraph, in order.
func SplitParagraphs(text string) []string {
	parts := strings.Split(strings.TrimSpace(text), "\n\n")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}
