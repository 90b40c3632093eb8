package app_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"edurumble-service/internal/app"
	"edurumble-service/internal/domain"
	"edurumble-service/internal/infra/memory"
)

// fakeOracle returns a well-formed quiz of count questions unless text or err is set.
type fakeOracle struct {
	mu      sync.Mutex
	count   int
	text    string
	err     error
	prompts []string
}

func (o *fakeOracle) Complete(_ context.Context, prompt string) (string, error) {
	o.mu.Lock()
	o.prompts = append(o.prompts, prompt)
	o.mu.Unlock()
	if o.err != nil {
		return "", o.err
	}
	if o.text != "" {
		return o.text, nil
	}
	return quizJSON(o.count), nil
}

func quizJSON(count int) string {
	qs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		qs = append(qs, fmt.Sprintf(`{"question":"Q%d?","options":["a%d","b%d","c%d","d%d"],"answer":"b%d"}`, i, i, i, i, i, i))
	}
	return `Here you go: {"title":"Generated","description":"A quiz","questions":[` + strings.Join(qs, ",") + `]} Enjoy!`
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// countingQuizStore counts inserts on top of the in-memory store.
type countingQuizStore struct {
	*memory.QuizStore
	mu      sync.Mutex
	inserts int
}

func (s *countingQuizStore) InsertQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	s.inserts++
	s.mu.Unlock()
	return s.QuizStore.InsertQuiz(ctx, quiz)
}

type fixture struct {
	quizzes     *countingQuizStore
	users       *memory.UserStore
	ledger      *memory.Ledger
	rooms       *memory.RoomStore
	oracle      *fakeOracle
	events      *recordingPublisher
	generation  *app.GenerationService
	lifecycle   *app.LifecycleService
	submissions *app.SubmissionService
}

func newFixture() *fixture {
	f := &fixture{
		quizzes: &countingQuizStore{QuizStore: memory.NewQuizStore()},
		users:   memory.NewUserStore(),
		ledger:  memory.NewLedger(),
		rooms:   memory.NewRoomStore(),
		oracle:  &fakeOracle{count: domain.DefaultQuestionCount},
		events:  &recordingPublisher{},
	}
	cached := memory.NewQuizCache(f.quizzes, time.Minute)
	f.generation = app.NewGenerationService(cached, f.users, f.ledger, f.oracle, f.events)
	f.lifecycle = app.NewLifecycleService(cached, f.rooms, f.events)
	f.submissions = app.NewSubmissionService(cached, f.rooms, f.events)
	return f
}

func (f *fixture) user(t *testing.T, username string, credits int) *domain.Identity {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), domain.User{
		Username:   username,
		Email:      username + "@example.com",
		Credits:    credits,
		IsVerified: true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &domain.Identity{ID: u.ID, Username: u.Username, Credits: u.Credits}
}

func (f *fixture) credits(t *testing.T, id *domain.Identity) int {
	t.Helper()
	u, err := f.users.GetUser(context.Background(), id.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	return u.Credits
}

// liveQuiz generates a quiz for owner and makes it live.
func (f *fixture) liveQuiz(t *testing.T, owner *domain.Identity) domain.Quiz {
	t.Helper()
	ctx := context.Background()
	res, err := f.generation.Generate(ctx, owner, app.GenerateRequest{Topic: "go"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	quiz, err := f.lifecycle.MakeLive(ctx, owner, res.Quiz.ID)
	if err != nil {
		t.Fatalf("make live: %v", err)
	}
	return quiz
}

func submission(quizID, name string, correct int, took time.Duration) domain.Submission {
	answers := make([]string, domain.DefaultQuestionCount)
	for i := range answers {
		if i < correct {
			answers[i] = fmt.Sprintf("b%d", i)
		} else {
			answers[i] = fmt.Sprintf("a%d", i)
		}
	}
	return domain.Submission{QuizID: quizID, Name: name, Answers: answers, TimeTaken: took}
}
