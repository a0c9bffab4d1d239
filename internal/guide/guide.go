package guide

import (
	"fmt"
	"strings"

	"github.com/csheth/loopmind/internal/feed"
)

// Step represents one actionable recommendation for working through a feed.
type Step struct {
	Title       string
	Description string
}

// Metadata carries just enough context for personalizing the study steps.
type Metadata struct {
	Title     string
	Depth     feed.Depth
	CardCount int
}

// Build returns a short study checklist tailored to one topic.
func Build(meta Metadata) []Step {
	displayTitle := strings.TrimSpace(meta.Title)
	if displayTitle == "" {
		displayTitle = "this topic"
	}

	steps := []Step{
		{
			Title:       "First scroll",
			Description: fmt.Sprintf("Go through all %s once without stopping. Let the hooks and images give you the shape of %s before you try to retain anything.", cardCountLabel(meta.CardCount), displayTitle),
		},
		{
			Title:       "Quiz yourself honestly",
			Description: "On the second pass, answer every quiz before revealing the explanation, and say each flashcard's back out loud before flipping. Guessing counts; peeking doesn't.",
		},
		{
			Title:       "Mark what stuck",
			Description: "Mark a card learnt only when you could explain it to someone else. The progress bar is for retention, not completion.",
		},
	}

	switch meta.Depth {
	case feed.DepthAdvanced:
		steps = append(steps, Step{
			Title:       "Challenge the material",
			Description: "Advanced feeds simplify aggressively. For each takeaway, note one condition under which it would be wrong or incomplete.",
		})
	case feed.DepthIntermediate:
		steps = append(steps, Step{
			Title:       "Connect the cards",
			Description: "Pick two cards that seem unrelated and write one sentence linking them. Connections are what move a topic from familiar to understood.",
		})
	default:
		steps = append(steps, Step{
			Title:       "Come back tomorrow",
			Description: fmt.Sprintf("Revisit %s after a night's sleep and re-answer only the quizzes you missed. Spacing beats repetition.", displayTitle),
		})
	}

	return steps
}

func cardCountLabel(count int) string {
	if count <= 0 {
		return "the cards"
	}
	return fmt.Sprintf("%d cards", count)
}
