package http

import (
	"net/http"

	"edurumble-service/internal/app"
	"edurumble-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type QuizHandler struct {
	generation  *app.GenerationService
	lifecycle   *app.LifecycleService
	submissions *app.SubmissionService
}

func NewQuizHandler(generation *app.GenerationService, lifecycle *app.LifecycleService, submissions *app.SubmissionService) *QuizHandler {
	return &QuizHandler{generation: generation, lifecycle: lifecycle, submissions: submissions}
}

type createQuizRequest struct {
	Topic        string `json:"topic"`
	Difficulty   string `json:"difficulty"`
	NumQuestions int    `json:"numQuestions"`
}

type idRequest struct {
	ID string `json:"id" binding:"required"`
}

type endQuizRequest struct {
	QuizID string `json:"quizId" binding:"required"`
}

type submitRequest struct {
	QuizID        string   `json:"quizId" binding:"required"`
	ParticipantID string   `json:"participantId"`
	Name          string   `json:"name" binding:"required"`
	Answers       []string `json:"answers"`
	TimeTaken     int64    `json:"timeTaken" binding:"gte=0"`
}

func (r submitRequest) submission() (domain.Submission, error) {
	took, err := domain.TimeTakenFromMillis(r.TimeTaken)
	if err != nil {
		return domain.Submission{}, err
	}
	return domain.Submission{
		QuizID:        r.QuizID,
		ParticipantID: r.ParticipantID,
		Name:          r.Name,
		Answers:       r.Answers,
		TimeTaken:     took,
	}, nil
}

func (h *QuizHandler) Create(c *gin.Context) {
	var req createQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.generation.Generate(c.Request.Context(), callerFrom(c), app.GenerateRequest{
		Topic:         req.Topic,
		Difficulty:    req.Difficulty,
		QuestionCount: req.NumQuestions,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "quiz": res.Quiz, "credits": res.Credits})
}

func (h *QuizHandler) End(c *gin.Context) {
	var req endQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	quiz, err := h.lifecycle.End(c.Request.Context(), req.QuizID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Quiz ended", "quiz": quiz})
}

func (h *QuizHandler) MakeLive(c *gin.Context) {
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	quiz, err := h.lifecycle.MakeLive(c.Request.Context(), callerFrom(c), req.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Quiz is live", "quiz": quiz})
}

func (h *QuizHandler) Get(c *gin.Context) {
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	quiz, err := h.lifecycle.Get(c.Request.Context(), req.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "quiz": quiz})
}

func (h *QuizHandler) Play(c *gin.Context) {
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	view, err := h.lifecycle.PlayView(c.Request.Context(), req.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "quiz": view})
}

func (h *QuizHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sub, err := req.submission()
	if err != nil {
		writeError(c, err)
		return
	}
	res, err := h.submissions.Submit(c.Request.Context(), sub)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "participant": res.Participant, "results": res.Leaderboard})
}

func (h *QuizHandler) Results(c *gin.Context) {
	var req idRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lb, err := h.submissions.Results(c.Request.Context(), req.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": lb})
}

func (h *QuizHandler) Mine(c *gin.Context) {
	quizzes, err := h.lifecycle.ListMine(c.Request.Context(), callerFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "quizzes": quizzes})
}
