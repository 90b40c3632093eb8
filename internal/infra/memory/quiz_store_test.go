package memory

import (
	"context"
	"testing"
	"time"

	"edurumble-service/internal/domain"
)

func TestQuizStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewQuizStore()

	quiz, err := store.InsertQuiz(ctx, sampleQuiz())
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if quiz.ID == "" || quiz.Questions[0].ID == "" {
		t.Fatalf("expected ids to be assigned, got %+v", quiz)
	}
	if quiz.State() != domain.StateDraft {
		t.Fatalf("expected draft, got %s", quiz.State())
	}

	if _, err := store.AppendParticipant(ctx, quiz.ID, domain.Participant{Key: "name:a", Name: "A"}); err != domain.ErrQuizNotLive {
		t.Fatalf("expected not live, got %v", err)
	}

	live, err := store.MarkLive(ctx, quiz.ID, time.Now())
	if err != nil || !live.IsLive {
		t.Fatalf("mark live = (%v, %v)", live.IsLive, err)
	}

	if _, err := store.AppendParticipant(ctx, quiz.ID, domain.Participant{Key: "name:a", Name: "A", Score: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendParticipant(ctx, quiz.ID, domain.Participant{Key: "name:a", Name: "a"}); err != domain.ErrAlreadySubmitted {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	ended, changed, err := store.MarkEnded(ctx, quiz.ID, time.Now())
	if err != nil || !changed || ended.State() != domain.StateEnded {
		t.Fatalf("mark ended = (%s, %v, %v)", ended.State(), changed, err)
	}
	if _, changed, err := store.MarkEnded(ctx, quiz.ID, time.Now()); err != nil || changed {
		t.Fatalf("second end = (%v, %v), want (false, nil)", changed, err)
	}
	if _, err := store.MarkLive(ctx, quiz.ID, time.Now()); err != domain.ErrInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, _, err := store.MarkEnded(ctx, "missing", time.Now()); err != domain.ErrQuizNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQuizStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewQuizStore()
	quiz, _ := store.InsertQuiz(ctx, sampleQuiz())

	quiz.Questions[0].Options[0] = "mutated"
	got, err := store.GetQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Questions[0].Options[0] != "3" {
		t.Fatalf("store leaked internal state: %v", got.Questions[0].Options)
	}
}
