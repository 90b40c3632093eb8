package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketLiveRoomFlow(t *testing.T) {
	s := newTestServer(t, stubOracle{count: 5})
	token := s.register(t, "ada")
	quizID := s.createQuiz(t, token)["_id"].(string)
	if code, _ := s.do(t, http.MethodPost, "/api/quiz/make-live", token, map[string]any{"id": quizID}); code != http.StatusOK {
		t.Fatalf("make-live: status %d", code)
	}

	server := httptest.NewServer(s.router)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/api/quiz/live?quizId=" + quizID + "&name=Alice"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Current leaderboard first.
	_, payload := readNext(conn, t, "leaderboard")
	if payload["participantCount"].(float64) != 0 {
		t.Fatalf("expected empty leaderboard, got %v", payload)
	}

	submit := map[string]any{
		"type": "submit",
		"payload": map[string]any{
			"answers":   []string{"0", "2", "4", "6", "8"},
			"timeTaken": 5000,
		},
	}
	if err := conn.WriteJSON(submit); err != nil {
		t.Fatalf("write submit: %v", err)
	}

	submittedSeen := false
	leaderboardSeen := false
	for i := 0; i < 2; i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "submitted":
			submittedSeen = true
			if score := payload["participant"].(map[string]any)["score"].(float64); score != 5 {
				t.Fatalf("expected score 5, got %v", score)
			}
		case "leaderboard":
			leaderboardSeen = true
		}
	}
	if !submittedSeen || !leaderboardSeen {
		t.Fatalf("expected submitted and leaderboard, got submitted=%v leaderboard=%v", submittedSeen, leaderboardSeen)
	}

	// A second submission by the same name is rejected.
	if err := conn.WriteJSON(submit); err != nil {
		t.Fatalf("write submit: %v", err)
	}
	readNext(conn, t, "error")

	if code, _ := s.do(t, http.MethodPost, "/api/quiz/end", token, map[string]any{"quizId": quizID}); code != http.StatusOK {
		t.Fatalf("end: status %d", code)
	}
	_, final := readNext(conn, t, "leaderboard")
	if final["state"] != "ended" || final["winner"] != "Alice" {
		t.Fatalf("unexpected final leaderboard: %v", final)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close after quiz end, got %v", err)
	}
}

func TestWebSocketRejectsDraftQuiz(t *testing.T) {
	s := newTestServer(t, stubOracle{count: 5})
	token := s.register(t, "ada")
	quizID := s.createQuiz(t, token)["_id"].(string)

	server := httptest.NewServer(s.router)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/api/quiz/live?quizId=" + quizID + "&name=Alice"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, payload := readNext(conn, t, "error")
	if payload["message"] != "Quiz is not live" {
		t.Fatalf("unexpected error payload: %v", payload)
	}
}

func TestWebSocketRequiresQuery(t *testing.T) {
	s := newTestServer(t, stubOracle{count: 5})
	server := httptest.NewServer(s.router)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/api/quiz/live?quizId=abc"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial failure without name")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 response, got %v", resp)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
