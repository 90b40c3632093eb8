package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"edurumble-service/internal/domain"
	"github.com/google/uuid"
)

// QuizStore is an in-memory implementation of app.QuizStore.
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizStore() *QuizStore {
	return &QuizStore{quizzes: make(map[string]domain.Quiz)}
}

func (s *QuizStore) InsertQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	quiz = cloneQuiz(quiz)
	quiz.ID = uuid.NewString()
	for i := range quiz.Questions {
		quiz.Questions[i].ID = uuid.NewString()
	}
	if quiz.Participants == nil {
		quiz.Participants = []domain.Participant{}
	}

	s.mu.Lock()
	s.quizzes[quiz.ID] = quiz
	s.mu.Unlock()
	return cloneQuiz(quiz), nil
}

func (s *QuizStore) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (s *QuizStore) ListQuizzesByCreator(_ context.Context, userID string) ([]domain.Quiz, error) {
	s.mu.RLock()
	out := make([]domain.Quiz, 0)
	for _, quiz := range s.quizzes {
		if quiz.CreatedBy == userID {
			out = append(out, cloneQuiz(quiz))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *QuizStore) MarkLive(_ context.Context, quizID string, at time.Time) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if quiz.EndedAt != nil {
		return domain.Quiz{}, domain.ErrInvalidTransition
	}
	if !quiz.IsLive {
		quiz.IsLive = true
		if quiz.LiveAt == nil {
			quiz.LiveAt = &at
		}
		quiz.UpdatedAt = at
		s.quizzes[quizID] = quiz
	}
	return cloneQuiz(quiz), nil
}

func (s *QuizStore) MarkEnded(_ context.Context, quizID string, at time.Time) (domain.Quiz, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, false, domain.ErrQuizNotFound
	}
	if !quiz.IsLive {
		return cloneQuiz(quiz), false, nil
	}
	quiz.IsLive = false
	quiz.EndedAt = &at
	quiz.UpdatedAt = at
	s.quizzes[quizID] = quiz
	return cloneQuiz(quiz), true, nil
}

func (s *QuizStore) SetWinner(_ context.Context, quizID string, winner *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if winner != nil {
		w := *winner
		winner = &w
	}
	quiz.Winner = winner
	s.quizzes[quizID] = quiz
	return nil
}

func (s *QuizStore) AppendParticipant(_ context.Context, quizID string, p domain.Participant) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if !quiz.IsLive {
		return domain.Quiz{}, domain.ErrQuizNotLive
	}
	if quiz.HasParticipant(p.Key) {
		return domain.Quiz{}, domain.ErrAlreadySubmitted
	}
	participants := make([]domain.Participant, len(quiz.Participants), len(quiz.Participants)+1)
	copy(participants, quiz.Participants)
	quiz.Participants = append(participants, p)
	quiz.UpdatedAt = p.SubmittedAt
	s.quizzes[quizID] = quiz
	return cloneQuiz(quiz), nil
}

func cloneQuiz(q domain.Quiz) domain.Quiz {
	out := q
	out.Questions = make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]string(nil), question.Options...)
		out.Questions[i] = question
	}
	if q.Participants != nil {
		out.Participants = make([]domain.Participant, len(q.Participants))
		copy(out.Participants, q.Participants)
	}
	if q.Winner != nil {
		w := *q.Winner
		out.Winner = &w
	}
	return out
}
