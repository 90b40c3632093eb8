package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"edurumble-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

// BuildPrompt renders the instruction sent to the oracle. Output is deterministic for equal inputs.
func BuildPrompt(topic string, difficulty domain.Difficulty, questionCount int) string {
	var b strings.Builder
	b.WriteString("You are an AI quiz generator. Given a topic, generate a quiz in valid JSON format like this:\n\n")
	b.WriteString(`{
  "title": "Quiz Title",
  "description": "Brief description",
  "questions": [
    {
      "question": "What is ...?",
      "options": ["A", "B", "C", "D"],
      "answer": "Correct Option"
    }
  ]
}`)
	b.WriteString("\n\nRules:\n")
	fmt.Fprintf(&b, "- Generate exactly %d questions.\n", questionCount)
	fmt.Fprintf(&b, "- Each question must have %d distinct options.\n", domain.OptionsPerQuestion)
	b.WriteString("- Answers must match one of the options exactly.\n")
	fmt.Fprintf(&b, "- Questions must suit a %s difficulty level.\n", difficulty)
	b.WriteString("- Return JSON only.\n\n")
	fmt.Fprintf(&b, "Topic: %s\nDifficulty: %s\n", topic, difficulty)
	return b.String()
}

// ExtractJSON returns the span from the first '{' to the last '}' of free text.
func ExtractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", domain.NewValidationError("oracle response contains no JSON object")
	}
	return text[start : end+1], nil
}

type generatedQuestion struct {
	Question string   `json:"question" validate:"required"`
	Options  []string `json:"options" validate:"len=4,unique,dive,required"`
	Answer   string   `json:"answer" validate:"required"`
}

type generatedQuiz struct {
	Title       string              `json:"title" validate:"required"`
	Description string              `json:"description" validate:"required"`
	Questions   []generatedQuestion `json:"questions" validate:"required,dive"`
}

func answerInOptions(sl validator.StructLevel) {
	q := sl.Current().Interface().(generatedQuestion)
	for _, option := range q.Options {
		if option == q.Answer {
			return
		}
	}
	sl.ReportError(q.Answer, "answer", "Answer", "in_options", "")
}

// ParseGenerated extracts, decodes and strictly validates oracle output.
func ParseGenerated(text string, questionCount int) (generatedQuiz, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return generatedQuiz{}, err
	}

	var out generatedQuiz
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return generatedQuiz{}, domain.NewValidationError("oracle response is not valid JSON: " + err.Error())
	}
	out.normalize()

	problems, err := fieldProblems(validate.Struct(out), nil)
	if err != nil {
		return generatedQuiz{}, fmt.Errorf("validate generated quiz: %w", err)
	}
	if len(out.Questions) != questionCount {
		problems = append(problems, fmt.Sprintf("expected %d questions, got %d", questionCount, len(out.Questions)))
	}
	if len(problems) > 0 {
		return generatedQuiz{}, domain.NewValidationError(problems...)
	}
	return out, nil
}

func (g *generatedQuiz) normalize() {
	g.Title = strings.TrimSpace(g.Title)
	g.Description = strings.TrimSpace(g.Description)
	for i := range g.Questions {
		q := &g.Questions[i]
		q.Question = strings.TrimSpace(q.Question)
		q.Answer = strings.TrimSpace(q.Answer)
		for j := range q.Options {
			q.Options[j] = strings.TrimSpace(q.Options[j])
		}
	}
}

func (g generatedQuiz) questions() []domain.Question {
	out := make([]domain.Question, 0, len(g.Questions))
	for _, q := range g.Questions {
		options := make([]string, len(q.Options))
		copy(options, q.Options)
		out = append(out, domain.Question{
			Question: q.Question,
			Options:  options,
			Answer:   q.Answer,
		})
	}
	return out
}
