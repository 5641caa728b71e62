package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/channels"
	"github.com/phongdao-saigontechnology/miku-bot-gateway/pkg/logging"
)

// Agent produces the bot's reply for a session given its history. The
// final entry of history is the message being answered.
type Agent interface {
	Respond(ctx context.Context, sessionID string, history []Message) (string, error)
}

// Responder glues an input channel's message stream to the agent:
// it records the user turn, asks the agent for a reply, sends the
// reply through the message's output channel, and records it.
type Responder struct {
	agent   Agent
	history HistoryStore
	logger  *logging.Logger
}

func NewResponder(agent Agent, history HistoryStore, logger *logging.Logger) *Responder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Responder{agent: agent, history: history, logger: logger}
}

// HandleMessage is the channels.NewMessageHandler bound to the webhook
// routes.
func (r *Responder) HandleMessage(ctx context.Context, senderID string, msg *channels.UserMessage) error {
	if err := r.history.Append(ctx, senderID, Message{
		Role:      RoleUser,
		Text:      msg.Text,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("conversation: record user turn: %w", err)
	}

	history, err := r.history.List(ctx, senderID)
	if err != nil {
		return fmt.Errorf("conversation: load session history: %w", err)
	}

	reply, err := r.agent.Respond(ctx, senderID, history)
	if err != nil {
		return fmt.Errorf("conversation: agent response: %w", err)
	}
	if reply == "" {
		r.logger.Info("conversation: agent returned empty reply", "sender_id", senderID)
		return nil
	}

	if err := channels.SendResponse(ctx, msg.Output(), senderID, &channels.Response{Text: reply}); err != nil {
		return fmt.Errorf("conversation: deliver reply: %w", err)
	}

	if err := r.history.Append(ctx, senderID, Message{
		Role:      RoleAssistant,
		Text:      reply,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		r.logger.Error("conversation: could not record assistant turn", "sender_id", senderID, "error", err)
	}
	return nil
}
