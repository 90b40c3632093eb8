package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"edurumble-service/internal/domain"
)

func TestQuizCacheCaches(t *testing.T) {
	store := &countingStore{QuizStore: NewQuizStore()}
	quiz, err := store.InsertQuiz(context.Background(), sampleQuiz())
	if err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
	cache := NewQuizCache(store, time.Minute)

	if _, err := cache.GetQuiz(context.Background(), quiz.ID); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if store.gets != 1 {
		t.Fatalf("expected store read once, got %d", store.gets)
	}

	if _, err := cache.GetQuiz(context.Background(), quiz.ID); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if store.gets != 1 {
		t.Fatalf("expected cache hit, store reads %d", store.gets)
	}
}

func TestQuizCacheInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{QuizStore: NewQuizStore()}
	quiz, _ := store.InsertQuiz(ctx, sampleQuiz())
	cache := NewQuizCache(store, time.Minute)

	if _, err := cache.GetQuiz(ctx, quiz.ID); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if _, err := cache.MarkLive(ctx, quiz.ID, time.Now()); err != nil {
		t.Fatalf("mark live: %v", err)
	}

	got, err := cache.GetQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get quiz after write: %v", err)
	}
	if !got.IsLive {
		t.Fatalf("expected fresh copy with isLive=true")
	}
	if store.gets != 2 {
		t.Fatalf("expected reload after invalidation, store reads %d", store.gets)
	}
}

func TestQuizCacheDoesNotCacheMisses(t *testing.T) {
	store := &countingStore{QuizStore: NewQuizStore()}
	cache := NewQuizCache(store, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.GetQuiz(context.Background(), "missing"); err != domain.ErrQuizNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if store.gets != 2 {
		t.Fatalf("expected both misses to reach the store, got %d", store.gets)
	}
}

func TestQuizCacheDropsReadsRacingAWrite(t *testing.T) {
	ctx := context.Background()
	base := NewQuizStore()
	quiz, _ := base.InsertQuiz(ctx, sampleQuiz())
	if _, err := base.MarkLive(ctx, quiz.ID, time.Now()); err != nil {
		t.Fatalf("mark live: %v", err)
	}
	store := newGatedStore(base)
	cache := NewQuizCache(store, time.Minute)

	done := make(chan domain.Quiz)
	go func() {
		got, _ := cache.GetQuiz(ctx, quiz.ID)
		done <- got
	}()
	<-store.loaded
	if _, _, err := cache.MarkEnded(ctx, quiz.ID, time.Now()); err != nil {
		t.Fatalf("mark ended: %v", err)
	}
	close(store.release)
	if stale := <-done; !stale.IsLive {
		t.Fatalf("racing read should have loaded the live copy")
	}

	got, err := cache.GetQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if got.IsLive || got.State() != domain.StateEnded {
		t.Fatalf("cache kept a stale copy: isLive=%v state=%s", got.IsLive, got.State())
	}
}

func TestQuizCacheZeroTTLDisablesCaching(t *testing.T) {
	store := &countingStore{QuizStore: NewQuizStore()}
	quiz, _ := store.InsertQuiz(context.Background(), sampleQuiz())
	cache := NewQuizCache(store, 0)

	for i := 0; i < 2; i++ {
		if _, err := cache.GetQuiz(context.Background(), quiz.ID); err != nil {
			t.Fatalf("get quiz: %v", err)
		}
	}
	if store.gets != 2 {
		t.Fatalf("expected every read to reach the store, got %d", store.gets)
	}
}

// gatedStore holds its first GetQuiz after loading until release is closed.
type gatedStore struct {
	*QuizStore
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func newGatedStore(base *QuizStore) *gatedStore {
	return &gatedStore{QuizStore: base, loaded: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedStore) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.QuizStore.GetQuiz(ctx, quizID)
	s.once.Do(func() {
		close(s.loaded)
		<-s.release
	})
	return quiz, err
}

type countingStore struct {
	*QuizStore
	gets int
}

func (s *countingStore) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	s.gets++
	return s.QuizStore.GetQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Title:       "Arithmetic",
		Description: "Basic sums",
		CreatedBy:   "u1",
		Questions: []domain.Question{
			{
				Question: "What is 2 + 2?",
				Options:  []string{"3", "4", "5", "6"},
				Answer:   "4",
			},
			{
				Question: "What is 3 + 3?",
				Options:  []string{"5", "6", "7", "8"},
				Answer:   "6",
			},
		},
		CreatedAt: time.Now(),
	}
}
