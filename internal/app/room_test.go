package app

import (
	"testing"

	"edurumble-service/internal/domain"
)

func TestRoomBroadcastAndClose(t *testing.T) {
	room := NewRoom()
	room.seed(domain.Leaderboard{QuizID: "quiz-1", ParticipantCount: 0})

	first, cancelFirst := room.subscribe()
	second, cancelSecond := room.subscribe()
	defer cancelSecond()
	if lb := <-first; lb.ParticipantCount != 0 {
		t.Fatalf("expected seeded snapshot, got %+v", lb)
	}
	<-second

	cancelFirst()
	cancelFirst()
	if _, ok := <-first; ok {
		t.Fatalf("expected cancelled channel closed")
	}

	room.publish(domain.Leaderboard{QuizID: "quiz-1", ParticipantCount: 1})
	if lb := <-second; lb.ParticipantCount != 1 {
		t.Fatalf("expected published snapshot, got %+v", lb)
	}

	room.close(domain.Leaderboard{QuizID: "quiz-1", State: domain.StateEnded, ParticipantCount: 1})
	lb, ok := <-second
	if !ok || lb.State != domain.StateEnded {
		t.Fatalf("expected final snapshot, got %+v ok=%v", lb, ok)
	}
	if _, ok := <-second; ok {
		t.Fatalf("expected channel closed")
	}

	late, _ := room.subscribe()
	if lb, ok := <-late; !ok || lb.State != domain.StateEnded {
		t.Fatalf("late subscriber should get the final snapshot")
	}
	if _, ok := <-late; ok {
		t.Fatalf("late channel should be closed")
	}
}

func TestRoomDropsStaleSnapshotsForSlowSubscribers(t *testing.T) {
	room := NewRoom()
	ch, cancel := room.subscribe()
	defer cancel()

	for i := 0; i < 20; i++ {
		room.publish(domain.Leaderboard{QuizID: "quiz-2", ParticipantCount: i})
	}
	var last domain.Leaderboard
	for len(ch) > 0 {
		last = <-ch
	}
	if last.ParticipantCount != 19 {
		t.Fatalf("expected newest snapshot retained, got %d", last.ParticipantCount)
	}
}
