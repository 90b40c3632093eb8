package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"edurumble-service/internal/app"
	"edurumble-service/internal/infra/memory"
	"edurumble-service/internal/session"
	"github.com/gin-gonic/gin"
)

// stubOracle answers every prompt with a quiz of count questions.
type stubOracle struct {
	count int
	err   error
}

func (o stubOracle) Complete(context.Context, string) (string, error) {
	if o.err != nil {
		return "", o.err
	}
	var qs []string
	for i := 0; i < o.count; i++ {
		qs = append(qs, fmt.Sprintf(`{"question":"What is %d+%d?","options":["%d","%d","%d","%d"],"answer":"%d"}`,
			i, i, 2*i, 2*i+1, 2*i+2, 2*i+3, 2*i))
	}
	return "Sure! ```json\n" + `{"title":"Arithmetic","description":"Sums","questions":[` + strings.Join(qs, ",") + "]}\n```", nil
}

type testServer struct {
	router   *gin.Engine
	users    *memory.UserStore
	quizzes  *memory.QuizStore
	sessions *session.Manager
}

func newTestServer(t *testing.T, oracle app.Oracle) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	quizzes := memory.NewQuizStore()
	users := memory.NewUserStore()
	ledger := memory.NewLedger()
	rooms := memory.NewRoomStore()
	sessions, err := session.NewManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	cached := memory.NewQuizCache(quizzes, time.Minute)
	generation := app.NewGenerationService(cached, users, ledger, oracle, nil)
	lifecycle := app.NewLifecycleService(cached, rooms, nil)
	submissions := app.NewSubmissionService(cached, rooms, nil)
	auth := app.NewAuthService(users, ledger, sessions, nil, 30)

	router := NewRouter(RouterConfig{
		Quizzes: NewQuizHandler(generation, lifecycle, submissions),
		Auth:    NewAuthHandler(auth),
		Live:    NewWSHandler(submissions),
		Tokens:  sessions,
	})
	return &testServer{router: router, users: users, quizzes: quizzes, sessions: sessions}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec.Code, out
}

// register signs up, verifies and logs in a user, returning its token.
func (s *testServer) register(t *testing.T, username string) string {
	t.Helper()
	email := username + "@example.com"
	code, _ := s.do(t, http.MethodPost, "/api/auth/sign-up", "", map[string]any{
		"username": username, "email": email, "fullname": "Test " + username, "password": "hunter22",
	})
	if code != http.StatusCreated {
		t.Fatalf("sign-up %s: status %d", username, code)
	}
	user, err := s.users.GetUserByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("lookup user: %v", err)
	}
	if code, _ := s.do(t, http.MethodPost, "/api/auth/verify", "", map[string]any{"username": username, "code": user.VerifyCode}); code != http.StatusOK {
		t.Fatalf("verify %s: status %d", username, code)
	}
	code, body := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": email, "password": "hunter22"})
	if code != http.StatusOK {
		t.Fatalf("login %s: status %d", username, code)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login %s: empty token", username)
	}
	return token
}

func (s *testServer) createQuiz(t *testing.T, token string) map[string]any {
	t.Helper()
	code, body := s.do(t, http.MethodPost, "/api/quiz/create", token, map[string]any{"topic": "math", "difficulty": "easy", "numQuestions": 5})
	if code != http.StatusCreated {
		t.Fatalf("create quiz: status %d body %v", code, body)
	}
	quiz, _ := body["quiz"].(map[string]any)
	return quiz
}

func newCookieRequest(t *testing.T, path, token string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	return req
}

func serve(s *testServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}
