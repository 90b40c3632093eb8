package app

import (
	"context"
	"time"

	"edurumble-service/internal/domain"
)

// QuizStore persists quiz documents (MongoDB, in-memory, or a cache in front of either).
type QuizStore interface {
	InsertQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzesByCreator(ctx context.Context, userID string) ([]domain.Quiz, error)
	// MarkLive sets isLive=true unless the quiz has ended.
	MarkLive(ctx context.Context, quizID string, at time.Time) (domain.Quiz, error)
	// MarkEnded flips a live quiz to ended; changed is false when it was not live.
	MarkEnded(ctx context.Context, quizID string, at time.Time) (quiz domain.Quiz, changed bool, err error)
	SetWinner(ctx context.Context, quizID string, winner *string) error
	// AppendParticipant pushes p only while the quiz is live and p.Key is unseen.
	AppendParticipant(ctx context.Context, quizID string, p domain.Participant) (domain.Quiz, error)
}

// UserStore persists accounts and credit balances.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	MarkVerified(ctx context.Context, userID string) error
	// TakeVerifyAttempt counts one verification attempt; ok is false once limit attempts were used.
	TakeVerifyAttempt(ctx context.Context, userID string, limit int) (ok bool, err error)
	// ResetVerification replaces the password and code of an unverified account.
	ResetVerification(ctx context.Context, userID, passwordHash, code string, expiry time.Time) (domain.User, error)
	// DebitCredits atomically subtracts amount if the balance covers it.
	DebitCredits(ctx context.Context, userID string, amount int) (remaining int, err error)
	RefundCredits(ctx context.Context, userID string, amount int) (remaining int, err error)
}

// CreditLedger records every balance change for auditing.
type CreditLedger interface {
	Record(ctx context.Context, entry domain.CreditEntry) error
	History(ctx context.Context, userID string, limit int) ([]domain.CreditEntry, error)
}

// Oracle is the external text-generation service.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// EventPublisher forwards domain events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// RoomRepository tracks live rooms (in-memory, Redis-marked, etc).
type RoomRepository interface {
	GetOrCreate(quizID string) *Room
	Get(quizID string) (*Room, bool)
	Delete(quizID string)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(user domain.User) (token string, expiresAt time.Time, err error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) error { return nil }
