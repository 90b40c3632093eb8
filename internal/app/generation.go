package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"edurumble-service/internal/domain"
	"edurumble-service/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// GenerateRequest is the input of a quiz generation.
type GenerateRequest struct {
	Topic         string `validate:"required"`
	Difficulty    string
	QuestionCount int `validate:"omitempty,oneof=5 10 15 20"`
}

var generateMessages = map[string]string{
	"Topic.required":      "Missing topic",
	"QuestionCount.oneof": "numQuestions must be one of 5, 10, 15, 20",
}

// GenerateResult is a persisted draft quiz and the caller's remaining balance.
type GenerateResult struct {
	Quiz    domain.Quiz
	Credits int
}

// GenerationService turns a topic into a validated, persisted draft quiz.
type GenerationService struct {
	quizzes QuizStore
	users   UserStore
	ledger  CreditLedger
	oracle  Oracle
	events  EventPublisher
	now     func() time.Time
}

func NewGenerationService(quizzes QuizStore, users UserStore, ledger CreditLedger, oracle Oracle, events EventPublisher) *GenerationService {
	if events == nil {
		events = nopPublisher{}
	}
	return &GenerationService{
		quizzes: quizzes,
		users:   users,
		ledger:  ledger,
		oracle:  oracle,
		events:  events,
		now:     time.Now,
	}
}

// Generate charges the caller, asks the oracle for a quiz and stores it as a draft.
// Any failure after the charge refunds it; no quiz is written unless the output validates.
func (s *GenerationService) Generate(ctx context.Context, caller *domain.Identity, req GenerateRequest) (GenerateResult, error) {
	if caller == nil || caller.ID == "" {
		return GenerateResult{}, domain.ErrUnauthorized
	}

	req.Topic = strings.TrimSpace(req.Topic)
	if err := validateStruct(req, generateMessages); err != nil {
		return GenerateResult{}, err
	}
	topic := req.Topic
	difficulty, err := domain.ParseDifficulty(req.Difficulty)
	if err != nil {
		return GenerateResult{}, err
	}
	count := req.QuestionCount
	if count == 0 {
		count = domain.DefaultQuestionCount
	}
	cost, err := domain.CreditCost(count)
	if err != nil {
		return GenerateResult{}, err
	}

	logger := log.WithFields(log.Fields{"user_id": caller.ID, "topic": topic, "questions": count})

	remaining, err := s.users.DebitCredits(ctx, caller.ID, cost)
	if err != nil {
		metrics.GenerationOutcome(outcomeOf(err))
		return GenerateResult{}, fmt.Errorf("debit credits: %w", err)
	}
	s.record(ctx, domain.CreditEntry{UserID: caller.ID, Amount: -cost, Reason: domain.CreditReasonGeneration})

	quiz, err := s.generate(ctx, caller.ID, topic, difficulty, count)
	if err != nil {
		metrics.GenerationOutcome(outcomeOf(err))
		logger.WithError(err).Warn("quiz generation failed, refunding credits")
		if _, refundErr := s.users.RefundCredits(ctx, caller.ID, cost); refundErr != nil {
			logger.WithError(refundErr).Error("refund credits")
		} else {
			s.record(ctx, domain.CreditEntry{UserID: caller.ID, Amount: cost, Reason: domain.CreditReasonRefund})
		}
		return GenerateResult{}, err
	}

	metrics.GenerationOutcome("success")
	logger.WithField("quiz_id", quiz.ID).Info("quiz generated")
	if err := s.events.Publish(ctx, domain.Event{
		Type:       domain.EventQuizCreated,
		QuizID:     quiz.ID,
		UserID:     caller.ID,
		Payload:    map[string]any{"topic": topic, "difficulty": string(difficulty), "questions": count, "cost": cost},
		OccurredAt: s.now(),
	}); err != nil {
		logger.WithError(err).Warn("publish quiz.created")
	}
	return GenerateResult{Quiz: quiz, Credits: remaining}, nil
}

func (s *GenerationService) generate(ctx context.Context, userID, topic string, difficulty domain.Difficulty, count int) (domain.Quiz, error) {
	text, err := s.oracle.Complete(ctx, BuildPrompt(topic, difficulty, count))
	if err != nil {
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) {
			return domain.Quiz{}, err
		}
		return domain.Quiz{}, &domain.UpstreamError{Err: err}
	}

	generated, err := ParseGenerated(text, count)
	if err != nil {
		return domain.Quiz{}, err
	}

	now := s.now()
	quiz, err := s.quizzes.InsertQuiz(ctx, domain.Quiz{
		Title:        generated.Title,
		Description:  generated.Description,
		Topic:        topic,
		Difficulty:   difficulty,
		Questions:    generated.questions(),
		CreatedBy:    userID,
		IsLive:       false,
		Participants: []domain.Participant{},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}
	return quiz, nil
}

func (s *GenerationService) record(ctx context.Context, entry domain.CreditEntry) {
	if s.ledger == nil {
		return
	}
	entry.CreatedAt = s.now()
	if err := s.ledger.Record(ctx, entry); err != nil {
		log.WithError(err).WithField("user_id", entry.UserID).Warn("record credit entry")
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, domain.ErrValidation):
		return "invalid_output"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream_error"
	default:
		return "internal_error"
	}
}
