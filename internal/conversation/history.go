// Package conversation routes inbound user messages to the agent and
// keeps per-session chat history.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a session's history.
type Message struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryStore persists ordered session history.
type HistoryStore interface {
	Append(ctx context.Context, sessionID string, msg Message) error
	List(ctx context.Context, sessionID string) ([]Message, error)
}

// MemoryHistoryStore is an in-process HistoryStore for development and
// single-instance deployments.
type MemoryHistoryStore struct {
	mu       sync.Mutex
	sessions map[string][]Message
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{sessions: map[string][]Message{}}
}

func (s *MemoryHistoryStore) Append(ctx context.Context, sessionID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
	return nil
}

func (s *MemoryHistoryStore) List(ctx context.Context, sessionID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.sessions[sessionID]
	out := make([]Message, len(history))
	copy(out, history)
	return out, nil
}

const historyTTL = 24 * time.Hour

// RedisHistoryStore keeps session history in redis so multiple gateway
// instances share one view of a conversation.
type RedisHistoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisHistoryStore(client *redis.Client, tracer trace.Tracer) *RedisHistoryStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("miku.internal.conversation.history")
	}
	return &RedisHistoryStore{redis: client, tracer: tracer}
}

func (s *RedisHistoryStore) Append(ctx context.Context, sessionID string, msg Message) error {
	ctx, span := s.tracer.Start(ctx, "conversation.append_history")
	defer span.End()

	history, err := s.load(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	history = append(history, msg)

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sessionID), data, historyTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

func (s *RedisHistoryStore) List(ctx context.Context, sessionID string) ([]Message, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	history, err := s.load(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return history, nil
}

func (s *RedisHistoryStore) load(ctx context.Context, sessionID string) ([]Message, error) {
	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("conversation: failed to load history: %w", err)
	}

	var history []Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	return history, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}
