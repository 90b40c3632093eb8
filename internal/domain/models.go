package domain

import (
	"strconv"
	"strings"
	"time"
)

// Difficulty is the requested difficulty of a generated quiz.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty normalizes raw input; empty input defaults to easy.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(raw))); d {
	case "":
		return DifficultyEasy, nil
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	default:
		return "", NewValidationError("difficulty must be one of easy, medium, hard")
	}
}

// DefaultQuestionCount is used when a create request omits numQuestions.
const DefaultQuestionCount = 5

// OptionsPerQuestion is fixed for every generated question.
const OptionsPerQuestion = 4

var creditCosts = map[int]int{
	5:  10,
	10: 15,
	15: 20,
	20: 25,
}

// CreditCost returns the credits charged for generating questionCount questions.
func CreditCost(questionCount int) (int, error) {
	cost, ok := creditCosts[questionCount]
	if !ok {
		return 0, NewValidationError("numQuestions must be one of 5, 10, 15, 20")
	}
	return cost, nil
}

// QuizState is derived from the liveness flag and the end timestamp.
type QuizState string

const (
	StateDraft QuizState = "draft"
	StateLive  QuizState = "live"
	StateEnded QuizState = "ended"
)

// Question is a multiple choice question; Answer is one of Options.
type Question struct {
	ID       string   `json:"_id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// Participant is one recorded submission for a quiz.
type Participant struct {
	Key         string    `json:"-"`
	Name        string    `json:"name"`
	Score       int       `json:"score"`
	TimeTaken   int64     `json:"timeTaken"` // milliseconds
	SubmittedAt time.Time `json:"submittedAt"`
}

// Quiz is the persisted quiz document.
type Quiz struct {
	ID           string        `json:"_id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Topic        string        `json:"topic"`
	Difficulty   Difficulty    `json:"difficulty"`
	Questions    []Question    `json:"questions"`
	CreatedBy    string        `json:"createdBy"`
	IsLive       bool          `json:"isLive"`
	Participants []Participant `json:"participants"`
	Winner       *string       `json:"winner"`
	LiveAt       *time.Time    `json:"liveAt,omitempty"`
	EndedAt      *time.Time    `json:"endedAt,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// State reports the lifecycle state of the quiz.
func (q Quiz) State() QuizState {
	switch {
	case q.IsLive:
		return StateLive
	case q.EndedAt != nil:
		return StateEnded
	default:
		return StateDraft
	}
}

// HasParticipant reports whether a participant with key already submitted.
func (q Quiz) HasParticipant(key string) bool {
	for _, p := range q.Participants {
		if p.Key == key {
			return true
		}
	}
	return false
}

// PublicQuestion hides the answer from participants.
type PublicQuestion struct {
	ID       string   `json:"_id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// PlayView is the participant-facing projection of a live quiz.
type PlayView struct {
	ID          string           `json:"_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Questions   []PublicQuestion `json:"questions"`
	IsLive      bool             `json:"isLive"`
}

// NewPlayView strips answers and participant data.
func NewPlayView(q Quiz) PlayView {
	questions := make([]PublicQuestion, 0, len(q.Questions))
	for _, question := range q.Questions {
		questions = append(questions, PublicQuestion{
			ID:       question.ID,
			Question: question.Question,
			Options:  question.Options,
		})
	}
	return PlayView{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		Questions:   questions,
		IsLive:      q.IsLive,
	}
}

// Submission is a participant's answer set for a live quiz.
type Submission struct {
	QuizID        string `validate:"required"`
	ParticipantID string
	Name          string `validate:"required"`
	Answers       []string
	TimeTaken     time.Duration `validate:"gte=0,lte=24h"`
}

// MaxTimeTaken bounds a participant's elapsed time.
const MaxTimeTaken = 24 * time.Hour

// TimeTakenFromMillis converts a wire timeTaken, rejecting values outside [0, MaxTimeTaken].
func TimeTakenFromMillis(ms int64) (time.Duration, error) {
	if ms < 0 || ms > MaxTimeTaken.Milliseconds() {
		return 0, NewValidationError("timeTaken must be between 0 and " + strconv.FormatInt(MaxTimeTaken.Milliseconds(), 10) + " ms")
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ParticipantKey identifies a participant for at-most-once recording.
func (s Submission) ParticipantKey() string {
	if id := strings.TrimSpace(s.ParticipantID); id != "" {
		return "id:" + id
	}
	return "name:" + strings.ToLower(strings.TrimSpace(s.Name))
}

// LeaderboardEntry is a ranked view of one participant.
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	Name       string  `json:"name"`
	Score      int     `json:"score"`
	Percentage float64 `json:"percentage"`
	TimeTaken  int64   `json:"timeTaken"`
}

// Leaderboard is the derived scoreboard of a quiz.
type Leaderboard struct {
	QuizID           string             `json:"quizId"`
	State            QuizState          `json:"state"`
	QuestionCount    int                `json:"questionCount"`
	ParticipantCount int                `json:"participantCount"`
	Entries          []LeaderboardEntry `json:"entries"`
	Winner           *string            `json:"winner"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// User is an account able to generate quizzes.
type User struct {
	ID               string    `json:"_id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	Fullname         string    `json:"fullname"`
	PasswordHash     string    `json:"-"`
	Credits          int       `json:"credits"`
	VerifyCode       string    `json:"-"`
	IsVerified       bool      `json:"isVerified"`
	VerifyCodeExpiry time.Time `json:"-"`
	VerifyAttempts   int       `json:"-"`
	AttemptedQuizzes []string  `json:"attemptedQuizzes"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Identity is the typed content of a session token.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Credits  int    `json:"credits"`
}

// CreditEntry is one row of the credit ledger.
type CreditEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	QuizID    string    `json:"quizId,omitempty"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	CreditReasonGeneration = "quiz_generation"
	CreditReasonRefund     = "generation_refund"
)

// Event is published to the message broker on state changes.
type Event struct {
	Type       string         `json:"type"`
	QuizID     string         `json:"quizId,omitempty"`
	UserID     string         `json:"userId,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

const (
	EventUserRegistered = "user.registered"
	EventQuizCreated    = "quiz.created"
	EventQuizLive       = "quiz.live"
	EventQuizEnded      = "quiz.ended"
	EventQuizSubmitted  = "quiz.submitted"
)
