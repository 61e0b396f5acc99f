package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"paidchat/internal/domain"
	"paidchat/internal/storage"
)

func TestUserStore_Upsert(t *testing.T) {
	store := NewUserStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, &domain.User{ID: "0xabc", Username: "first", CreatedAt: 1}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, &domain.User{ID: "0xabc", Username: "second", CreatedAt: 2}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Username != "second" {
		t.Errorf("Username mismatch: got %s, want second", got.Username)
	}
	if got.CreatedAt != 1 {
		t.Errorf("CreatedAt must be kept on update, got %d", got.CreatedAt)
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Upsert(ctx, &domain.User{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAgentStore_InsertListCopy(t *testing.T) {
	store := NewAgentStore()
	ctx := context.Background()

	b := &domain.Agent{ID: "b", Name: "Beta", CreatedAt: 2, RestrictedPhrases: []string{"x"}}
	a := &domain.Agent{ID: "a", Name: "Alpha", CreatedAt: 1, RestrictedPhrases: []string{"open sesame"}}
	for _, ag := range []*domain.Agent{b, a} {
		if err := store.Insert(ctx, ag); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if err := store.Insert(ctx, a); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", list)
	}

	list[0].RestrictedPhrases[0] = "mutated"
	got, _ := store.GetByID(ctx, "a")
	if got.RestrictedPhrases[0] != "open sesame" {
		t.Error("store must return copies")
	}
}

func TestMessageStore_OrderAndUsernames(t *testing.T) {
	users := NewUserStore()
	store := NewMessageStore(users)
	ctx := context.Background()

	users.Upsert(ctx, &domain.User{ID: "0xabc", Username: "alice"})
	users.Upsert(ctx, &domain.User{ID: domain.BotUserID, Username: domain.BotUsername})

	msgs := []*domain.StoredMessage{
		{ID: "m1", AgentID: "default", UserID: "0xabc", Content: "hi"},
		{ID: "m2", AgentID: "default", UserID: domain.BotUserID, Content: "hello", IsBot: true},
		{ID: "m3", AgentID: "other", UserID: "0xabc", Content: "elsewhere"},
	}
	for _, m := range msgs {
		if err := store.Insert(ctx, m); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := store.Insert(ctx, msgs[0]); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetByAgent(ctx, "default")
	if err != nil {
		t.Fatalf("GetByAgent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].ID != "m1" || got[1].ID != "m2" {
		t.Errorf("unexpected order %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].Username != "alice" || got[1].Username != domain.BotUsername {
		t.Errorf("usernames not resolved: %s, %s", got[0].Username, got[1].Username)
	}
	if got[1].Role() != domain.RoleAssistant {
		t.Errorf("expected assistant role, got %s", got[1].Role())
	}
}

func TestCostStore_GetOrCreateConcurrent(t *testing.T) {
	store := NewCostStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.GetOrCreate(ctx, "default", 1); err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if err := store.Set(ctx, "default", 1.2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	m, err := store.GetOrCreate(ctx, "default", 1)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if m != 1.2 {
		t.Errorf("expected 1.2, got %v", m)
	}

	if err := store.Set(ctx, "default", 0); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExchangeStore(t *testing.T) {
	store := NewExchangeStore()
	ctx := context.Background()

	for _, e := range []*domain.Exchange{
		{ExchangeID: "e2", AgentID: "default", CreatedAt: 20},
		{ExchangeID: "e1", AgentID: "default", CreatedAt: 10},
		{ExchangeID: "e3", AgentID: "other", CreatedAt: 5},
	} {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := store.Insert(ctx, &domain.Exchange{ExchangeID: "e1"}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetByAgent(ctx, "default")
	if err != nil {
		t.Fatalf("GetByAgent failed: %v", err)
	}
	if len(got) != 2 || got[0].ExchangeID != "e1" {
		t.Errorf("unexpected exchanges %+v", got)
	}
}
