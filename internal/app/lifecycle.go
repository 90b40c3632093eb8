package app

import (
	"context"
	"strings"
	"time"

	"edurumble-service/internal/domain"
	log "github.com/sirupsen/logrus"
)

// LifecycleService moves quizzes between draft, live and ended.
type LifecycleService struct {
	quizzes QuizStore
	rooms   RoomRepository
	events  EventPublisher
	now     func() time.Time
}

func NewLifecycleService(quizzes QuizStore, rooms RoomRepository, events EventPublisher) *LifecycleService {
	if events == nil {
		events = nopPublisher{}
	}
	return &LifecycleService{quizzes: quizzes, rooms: rooms, events: events, now: time.Now}
}

// Get returns the full quiz, answers included.
func (s *LifecycleService) Get(ctx context.Context, quizID string) (domain.Quiz, error) {
	if strings.TrimSpace(quizID) == "" {
		return domain.Quiz{}, domain.NewValidationError("id is required")
	}
	return s.quizzes.GetQuiz(ctx, quizID)
}

// PlayView returns a live quiz without answers.
func (s *LifecycleService) PlayView(ctx context.Context, quizID string) (domain.PlayView, error) {
	quiz, err := s.Get(ctx, quizID)
	if err != nil {
		return domain.PlayView{}, err
	}
	if !quiz.IsLive {
		return domain.PlayView{}, domain.ErrQuizNotLive
	}
	return domain.NewPlayView(quiz), nil
}

// ListMine returns the caller's quizzes, newest first.
func (s *LifecycleService) ListMine(ctx context.Context, caller *domain.Identity) ([]domain.Quiz, error) {
	if caller == nil || caller.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.quizzes.ListQuizzesByCreator(ctx, caller.ID)
}

// MakeLive opens a draft quiz for submissions. Live quizzes stay live; ended ones cannot reopen.
func (s *LifecycleService) MakeLive(ctx context.Context, caller *domain.Identity, quizID string) (domain.Quiz, error) {
	quiz, err := s.authorize(ctx, caller, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	switch quiz.State() {
	case domain.StateLive:
		return quiz, nil
	case domain.StateEnded:
		return domain.Quiz{}, domain.ErrInvalidTransition
	}

	quiz, err = s.quizzes.MarkLive(ctx, quizID, s.now())
	if err != nil {
		return domain.Quiz{}, err
	}
	room := s.rooms.GetOrCreate(quizID)
	room.seed(BuildLeaderboard(quiz, s.now()))

	log.WithFields(log.Fields{"quiz_id": quizID, "user_id": caller.ID}).Info("quiz is live")
	s.publish(ctx, domain.EventQuizLive, quiz, nil)
	return quiz, nil
}

// End closes a live quiz and records the winner. Ending a quiz that is not live succeeds without writing.
// No session is required; an unknown id is ErrQuizNotFound.
func (s *LifecycleService) End(ctx context.Context, quizID string) (domain.Quiz, error) {
	if _, err := s.Get(ctx, quizID); err != nil {
		return domain.Quiz{}, err
	}

	quiz, changed, err := s.quizzes.MarkEnded(ctx, quizID, s.now())
	if err != nil {
		return domain.Quiz{}, err
	}
	if !changed {
		return quiz, nil
	}

	// no participant can be appended once isLive is false, so the leaderboard is final
	lb := BuildLeaderboard(quiz, s.now())
	if winner := leaderOf(lb); winner != nil {
		if err := s.quizzes.SetWinner(ctx, quizID, winner); err != nil {
			return domain.Quiz{}, err
		}
		quiz.Winner = winner
		lb.Winner = winner
	}

	if room, ok := s.rooms.Get(quizID); ok {
		room.close(lb)
		s.rooms.Delete(quizID)
	}

	log.WithFields(log.Fields{"quiz_id": quizID, "participants": lb.ParticipantCount}).Info("quiz ended")
	s.publish(ctx, domain.EventQuizEnded, quiz, map[string]any{"participants": lb.ParticipantCount, "winner": quiz.Winner})
	return quiz, nil
}

// authorize resolves the quiz before looking at the caller, so unknown ids are always ErrQuizNotFound.
func (s *LifecycleService) authorize(ctx context.Context, caller *domain.Identity, quizID string) (domain.Quiz, error) {
	quiz, err := s.Get(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if caller == nil || caller.ID == "" {
		return domain.Quiz{}, domain.ErrUnauthorized
	}
	if quiz.CreatedBy != caller.ID {
		return domain.Quiz{}, domain.ErrForbidden
	}
	return quiz, nil
}

func (s *LifecycleService) publish(ctx context.Context, eventType string, quiz domain.Quiz, payload map[string]any) {
	if err := s.events.Publish(ctx, domain.Event{
		Type:       eventType,
		QuizID:     quiz.ID,
		UserID:     quiz.CreatedBy,
		Payload:    payload,
		OccurredAt: s.now(),
	}); err != nil {
		log.WithError(err).WithField("quiz_id", quiz.ID).Warnf("publish %s", eventType)
	}
}
