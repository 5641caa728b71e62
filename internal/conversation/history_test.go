package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryHistoryStore(t *testing.T) {
	store := NewMemoryHistoryStore()
	ctx := context.Background()

	history, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Fatalf("fresh session history = %v", history)
	}

	if err := store.Append(ctx, "s1", Message{Role: RoleUser, Text: "hi"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, "s1", Message{Role: RoleAssistant, Text: "hello"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, "s2", Message{Role: RoleUser, Text: "other session"}); err != nil {
		t.Fatal(err)
	}

	history, err = store.List(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Text != "hi" || history[1].Text != "hello" {
		t.Fatalf("history = %v", history)
	}

	// Mutating the returned slice must not affect the store.
	history[0].Text = "mutated"
	again, _ := store.List(ctx, "s1")
	if again[0].Text != "hi" {
		t.Error("List must return a copy")
	}
}

func TestRedisHistoryStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisHistoryStore(client, nil)
	ctx := context.Background()

	history, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Fatalf("fresh session history = %v", history)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := store.Append(ctx, "s1", Message{Role: RoleUser, Text: "hi", Timestamp: now}); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, "s1", Message{Role: RoleAssistant, Text: "hello", Timestamp: now}); err != nil {
		t.Fatal(err)
	}

	history, err = store.List(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].Role != RoleUser || history[0].Text != "hi" {
		t.Errorf("first turn = %+v", history[0])
	}
	if history[1].Role != RoleAssistant || history[1].Text != "hello" {
		t.Errorf("second turn = %+v", history[1])
	}

	if mr.TTL("session:s1") <= 0 {
		t.Error("session key has no expiry")
	}
}

func TestRedisHistoryStoreIsolatesSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisHistoryStore(client, nil)
	ctx := context.Background()

	if err := store.Append(ctx, "a", Message{Role: RoleUser, Text: "for a"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, "b", Message{Role: RoleUser, Text: "for b"}); err != nil {
		t.Fatal(err)
	}

	historyA, _ := store.List(ctx, "a")
	historyB, _ := store.List(ctx, "b")
	if len(historyA) != 1 || historyA[0].Text != "for a" {
		t.Errorf("session a = %v", historyA)
	}
	if len(historyB) != 1 || historyB[0].Text != "for b" {
		t.Errorf("session b = %v", historyB)
	}
}
