package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"edurumble-service/internal/app"
	"edurumble-service/internal/domain"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// WSHandler streams a live quiz's leaderboard and accepts submissions over a websocket.
type WSHandler struct {
	submissions *app.SubmissionService
	upgrader    websocket.Upgrader
}

func NewWSHandler(submissions *app.SubmissionService) *WSHandler {
	return &WSHandler{
		submissions: submissions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	ParticipantID string   `json:"participantId"`
	Answers       []string `json:"answers"`
	TimeTaken     int64    `json:"timeTaken"`
}

type submittedPayload struct {
	Participant domain.Participant `json:"participant"`
	Results     domain.Leaderboard `json:"results"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// closeFrame tells the writer to send a websocket close and stop.
const closeFrame = "close"

func errorFrame(err error) outboundMessage[any] {
	_, _, message := statusOf(err)
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}

// ServeWS upgrades the request and joins the caller to the quiz's live room.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := strings.TrimSpace(r.URL.Query().Get("quizId"))
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if quizID == "" || name == "" {
		http.Error(w, "missing quizId or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel, err := h.submissions.Subscribe(r.Context(), quizID)
	if err != nil {
		_ = conn.WriteJSON(errorFrame(err))
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	// single writer; gorilla connections allow one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if msg.Type == closeFrame {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "quiz ended"),
					time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).WithField("quiz_id", quizID).Debug("ws write failed")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					// room closed after the final leaderboard
					select {
					case send <- outboundMessage[any]{Type: closeFrame}:
					case <-closeSignals:
					case <-writerDone:
					}
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid submit payload"}})
				continue
			}
			took, err := domain.TimeTakenFromMillis(payload.TimeTaken)
			if err != nil {
				push(errorFrame(err))
				continue
			}
			res, err := h.submissions.Submit(r.Context(), domain.Submission{
				QuizID:        quizID,
				ParticipantID: payload.ParticipantID,
				Name:          name,
				Answers:       payload.Answers,
				TimeTaken:     took,
			})
			if err != nil {
				push(errorFrame(err))
				continue
			}
			push(outboundMessage[any]{Type: "submitted", Payload: submittedPayload{Participant: res.Participant, Results: res.Leaderboard}})
		default:
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
