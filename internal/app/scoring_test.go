package app_test

import (
	"testing"
	"time"

	"edurumble-service/internal/app"
	"edurumble-service/internal/domain"
)

func TestBuildLeaderboardOrdering(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	quiz := domain.Quiz{
		ID:        "q1",
		IsLive:    true,
		Questions: make([]domain.Question, 3),
		Participants: []domain.Participant{
			{Name: "slow", Score: 2, TimeTaken: 9000},
			{Name: "top", Score: 3, TimeTaken: 12000},
			{Name: "fast", Score: 2, TimeTaken: 4000},
			{Name: "alpha", Score: 2, TimeTaken: 4000},
		},
	}

	lb := app.BuildLeaderboard(quiz, now)
	want := []string{"top", "alpha", "fast", "slow"}
	for i, name := range want {
		if lb.Entries[i].Name != name || lb.Entries[i].Rank != i+1 {
			t.Fatalf("position %d: expected %s, got %+v", i, name, lb.Entries[i])
		}
	}
	if lb.Entries[1].Percentage != 66.67 {
		t.Fatalf("expected 66.67%%, got %v", lb.Entries[1].Percentage)
	}
	if lb.State != domain.StateLive || lb.QuestionCount != 3 || !lb.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected leaderboard header: %+v", lb)
	}
}

func TestBuildLeaderboardEmpty(t *testing.T) {
	lb := app.BuildLeaderboard(domain.Quiz{ID: "q1"}, time.Now())
	if lb.ParticipantCount != 0 || len(lb.Entries) != 0 || lb.State != domain.StateDraft {
		t.Fatalf("unexpected empty leaderboard: %+v", lb)
	}
}
