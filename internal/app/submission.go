package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"edurumble-service/internal/domain"
	"edurumble-service/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// SubmissionService records participant submissions and serves derived results.
type SubmissionService struct {
	quizzes QuizStore
	rooms   RoomRepository
	events  EventPublisher
	now     func() time.Time
}

func NewSubmissionService(quizzes QuizStore, rooms RoomRepository, events EventPublisher) *SubmissionService {
	if events == nil {
		events = nopPublisher{}
	}
	return &SubmissionService{quizzes: quizzes, rooms: rooms, events: events, now: time.Now}
}

// SubmitResult is the recorded participant and the leaderboard after the append.
type SubmitResult struct {
	Participant domain.Participant
	Leaderboard domain.Leaderboard
}

var submissionMessages = map[string]string{
	"QuizID.required": "quizId is required",
	"Name.required":   "name is required",
	"TimeTaken.gte":   "timeTaken must not be negative",
	"TimeTaken.lte":   "timeTaken must not exceed 24h",
}

// Submit scores the answers of one participant and appends them to a live quiz.
func (s *SubmissionService) Submit(ctx context.Context, sub domain.Submission) (SubmitResult, error) {
	sub.QuizID = strings.TrimSpace(sub.QuizID)
	sub.Name = strings.TrimSpace(sub.Name)
	if err := validateStruct(sub, submissionMessages); err != nil {
		return SubmitResult{}, err
	}
	name := sub.Name

	quiz, err := s.quizzes.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !quiz.IsLive {
		return SubmitResult{}, domain.ErrQuizNotLive
	}
	if len(sub.Answers) > len(quiz.Questions) {
		return SubmitResult{}, domain.NewValidationError(fmt.Sprintf("expected at most %d answers, got %d", len(quiz.Questions), len(sub.Answers)))
	}

	participant := domain.Participant{
		Key:         sub.ParticipantKey(),
		Name:        name,
		Score:       scoreAnswers(quiz, sub.Answers),
		TimeTaken:   sub.TimeTaken.Milliseconds(),
		SubmittedAt: s.now(),
	}

	quiz, err = s.quizzes.AppendParticipant(ctx, sub.QuizID, participant)
	if err != nil {
		return SubmitResult{}, err
	}
	metrics.Submissions.Inc()

	lb := BuildLeaderboard(quiz, s.now())
	if room, ok := s.rooms.Get(quiz.ID); ok {
		room.publish(lb)
	}

	log.WithFields(log.Fields{"quiz_id": quiz.ID, "participant": name, "score": participant.Score}).Info("submission recorded")
	if err := s.events.Publish(ctx, domain.Event{
		Type:       domain.EventQuizSubmitted,
		QuizID:     quiz.ID,
		UserID:     quiz.CreatedBy,
		Payload:    map[string]any{"name": name, "score": participant.Score, "timeTaken": participant.TimeTaken},
		OccurredAt: s.now(),
	}); err != nil {
		log.WithError(err).WithField("quiz_id", quiz.ID).Warn("publish quiz.submitted")
	}
	return SubmitResult{Participant: participant, Leaderboard: lb}, nil
}

// Results returns the derived leaderboard of any quiz.
func (s *SubmissionService) Results(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	if strings.TrimSpace(quizID) == "" {
		return domain.Leaderboard{}, domain.NewValidationError("id is required")
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return BuildLeaderboard(quiz, s.now()), nil
}

// Subscribe returns a channel of leaderboard updates for a live quiz.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *SubmissionService) Subscribe(ctx context.Context, quizID string) (<-chan domain.Leaderboard, func(), error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	if !quiz.IsLive {
		return nil, nil, domain.ErrQuizNotLive
	}
	room := s.rooms.GetOrCreate(quizID)
	room.seed(BuildLeaderboard(quiz, s.now()))
	ch, cancel := room.subscribe()

	// End may have removed the room between the read above and GetOrCreate.
	current, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if !current.IsLive {
		room.close(BuildLeaderboard(current, s.now()))
		s.rooms.Delete(quizID)
	}
	return ch, cancel, nil
}
