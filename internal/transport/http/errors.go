package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"edurumble-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Success bool     `json:"success"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// statusOf maps a service error to its HTTP status, error code and client-facing message.
// Statuses stay within 400, 401, 404 and 500; the code tells the kinds apart.
func statusOf(err error) (int, string, string) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "validation_error", validation.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "Unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusUnauthorized, "forbidden", "Forbidden"
	case errors.Is(err, domain.ErrQuizNotFound):
		return http.StatusNotFound, "not_found", "Quiz not found"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "not_found", "User not found"
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusBadRequest, "insufficient_credits", "Insufficient credits"
	case errors.Is(err, domain.ErrQuizNotLive):
		return http.StatusBadRequest, "quiz_not_live", "Quiz is not live"
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return http.StatusBadRequest, "already_submitted", "Participant already submitted"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusBadRequest, "invalid_transition", "Quiz has ended and cannot be made live again"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusBadRequest, "conflict", "User already exists"
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusInternalServerError, "upstream_error", "Quiz generation service failed"
	default:
		return http.StatusInternalServerError, "internal_error", "Internal server error"
	}
}

func writeError(c *gin.Context, err error) {
	status, code, message := statusOf(err)
	resp := errorResponse{Success: false, Code: code, Message: message}

	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		resp.Errors = validation.Problems
		if len(validation.Problems) == 1 {
			resp.Message = validation.Problems[0]
		} else {
			resp.Message = "Validation failed"
		}
	case status == http.StatusUnauthorized:
		// services may prefix the sentinel with a user-facing reason
		if reason := strings.TrimSuffix(err.Error(), ": "+domain.ErrUnauthorized.Error()); reason != err.Error() {
			resp.Message = reason
		} else if reason := strings.TrimSuffix(err.Error(), ": "+domain.ErrForbidden.Error()); reason != err.Error() {
			resp.Message = reason
		}
	case status >= http.StatusInternalServerError:
		log.WithError(err).WithFields(log.Fields{"method": c.Request.Method, "path": c.FullPath()}).Error("request failed")
	}
	c.AbortWithStatusJSON(status, resp)
}

// badRequest reports a body that failed to bind. Binding rule failures become a
// domain.ValidationError named by JSON field.
func badRequest(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		problems := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			if fe.Tag() == "required" {
				problems = append(problems, fe.Field()+" is required")
				continue
			}
			problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		writeError(c, domain.NewValidationError(problems...))
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Success: false,
		Code:    "validation_error",
		Message: "Invalid request body",
		Errors:  []string{err.Error()},
	})
}
