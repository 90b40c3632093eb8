package memory

import (
	"context"
	"sync"
	"testing"

	"edurumble-service/internal/domain"
)

func TestUserStoreDebitNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore()
	user, err := store.CreateUser(ctx, domain.User{Username: "alice", Email: "alice@example.com", Credits: 30})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.DebitCredits(ctx, user.ID, 10); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("expected exactly 3 debits to succeed, got %d", succeeded)
	}
	got, _ := store.GetUser(ctx, user.ID)
	if got.Credits != 0 {
		t.Fatalf("expected balance 0, got %d", got.Credits)
	}
}

func TestUserStoreRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore()
	if _, err := store.CreateUser(ctx, domain.User{Username: "alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateUser(ctx, domain.User{Username: "bob", Email: "ALICE@example.com"}); err != domain.ErrConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}
