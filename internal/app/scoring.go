package app

import (
	"math"
	"sort"
	"strings"
	"time"

	"edurumble-service/internal/domain"
)

// scoreAnswers counts answers matching the question answers by position.
func scoreAnswers(quiz domain.Quiz, answers []string) int {
	score := 0
	for i, question := range quiz.Questions {
		if i >= len(answers) {
			break
		}
		if strings.TrimSpace(answers[i]) == question.Answer {
			score++
		}
	}
	return score
}

// BuildLeaderboard derives the ranked scoreboard from the participant list.
func BuildLeaderboard(quiz domain.Quiz, now time.Time) domain.Leaderboard {
	total := len(quiz.Questions)
	entries := make([]domain.LeaderboardEntry, 0, len(quiz.Participants))
	for _, p := range quiz.Participants {
		entries = append(entries, domain.LeaderboardEntry{
			Name:       p.Name,
			Score:      p.Score,
			Percentage: percentage(p.Score, total),
			TimeTaken:  p.TimeTaken,
		})
	}

	// score desc, then fastest finisher, then name
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].TimeTaken != entries[j].TimeTaken {
			return entries[i].TimeTaken < entries[j].TimeTaken
		}
		return entries[i].Name < entries[j].Name
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return domain.Leaderboard{
		QuizID:           quiz.ID,
		State:            quiz.State(),
		QuestionCount:    total,
		ParticipantCount: len(entries),
		Entries:          entries,
		Winner:           quiz.Winner,
		UpdatedAt:        now,
	}
}

// leaderOf returns the name at the top of the leaderboard, nil when empty.
func leaderOf(lb domain.Leaderboard) *string {
	if len(lb.Entries) == 0 {
		return nil
	}
	name := lb.Entries[0].Name
	return &name
}

func percentage(score, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(score)/float64(total)*10000) / 100
}
