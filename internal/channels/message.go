package channels

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultSenderID is the sentinel sender identity used when the
// transport supplies none. Carried over from the original channel
// implementation; see DESIGN.md before changing it.
const DefaultSenderID = "default"

// UserMessageParams are the raw inputs for a UserMessage. Every field
// is optional; NewUserMessage fills in the defaults.
type UserMessageParams struct {
	Text         string
	Output       OutputChannel
	SenderID     string
	InputChannel string
	MessageID    string
	Metadata     map[string]any
}

// UserMessage represents one inbound user message together with the
// output channel its replies must go through. The channel binding is
// fixed at construction time.
type UserMessage struct {
	Text         string
	MessageID    string
	SenderID     string
	InputChannel string
	Metadata     map[string]any

	output OutputChannel
}

// NewUserMessage builds a message envelope. Text is trimmed, a message
// id is generated when the transport did not supply one, the sender id
// falls back to DefaultSenderID, and a missing output channel defaults
// to a fresh CollectingOutputChannel.
func NewUserMessage(p UserMessageParams) *UserMessage {
	msg := &UserMessage{
		Text:         strings.TrimSpace(p.Text),
		MessageID:    p.MessageID,
		SenderID:     p.SenderID,
		InputChannel: p.InputChannel,
		Metadata:     p.Metadata,
		output:       p.Output,
	}
	if msg.MessageID == "" {
		msg.MessageID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if msg.SenderID == "" {
		msg.SenderID = DefaultSenderID
	}
	if msg.output == nil {
		msg.output = NewCollectingOutputChannel()
	}
	return msg
}

// Output returns the output channel bound to this message.
func (m *UserMessage) Output() OutputChannel {
	return m.output
}
