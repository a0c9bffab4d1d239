package feed

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// The backend's schema grew organically: the same value can arrive under
// several names, and whole sections go missing on older records. Mapping
// enumerates every accepted alias explicitly and defaults the rest so a
// malformed record degrades instead of failing the batch. Raw records never
// leak past this file.

// Raw is one loosely-typed backend record as decoded from JSON.
type Raw = map[string]any

// Deterministic presentation palettes indexed by feed position, so a topic
// keeps its emoji and color across re-fetches as long as its position holds.
var (
	emojiPalette = []string{"📘", "🧠", "🔬", "🌍", "🎯", "⚡", "🧪", "🚀", "🎨", "🏛️"}
	colorPalette = []string{"39", "141", "208", "42", "205", "214", "75", "168"}
)

func emojiForPosition(position int) string {
	if position < 0 {
		position = -position
	}
	return emojiPalette[position%len(emojiPalette)]
}

func colorForPosition(position int) string {
	if position < 0 {
		position = -position
	}
	return colorPalette[position%len(colorPalette)]
}

// MapTopic converts a backend topic record into a Topic. Records without a
// node_id are unusable; callers should check for an empty ID and drop those.
func MapTopic(raw Raw, position int) Topic {
	title := stringField(raw, "title")
	if title == "" {
		title = "Untitled"
	}
	emoji := stringField(raw, "icon", "emoji")
	if emoji == "" {
		emoji = emojiForPosition(position)
	}
	status := StatusGenerating
	if IsReady(stringField(raw, "status")) {
		status = StatusReady
	}
	depth := parseDepth(stringField(raw, "depth", "level"))

	return Topic{
		ID:          stringField(raw, "node_id", "id"),
		Title:       title,
		Emoji:       emoji,
		Color:       colorForPosition(position),
		Status:      status,
		Depth:       depth,
		CardCount:   intField(raw, "card_count"),
		LearntCount: intField(raw, "learnt_count"),
		CreatedAt:   timeField(raw, "created_at"),
	}
}

func parseDepth(value string) Depth {
	switch Depth(strings.ToLower(strings.TrimSpace(value))) {
	case DepthIntermediate:
		return DepthIntermediate
	case DepthAdvanced:
		return DepthAdvanced
	default:
		return DepthBeginner
	}
}

// MapCard converts a backend ALU record into one of the card variants. A nil
// card with a non-nil error means the record was dropped; the error is a
// diagnostic for logging, never a batch failure.
func MapCard(raw Raw) (Card, error) {
	kind := stringField(raw, "post_type", "card_type")
	meta := CardMeta{
		ID:              stringField(raw, "alu_id", "id"),
		NodeID:          stringField(raw, "node_id"),
		Order:           intField(raw, "order"),
		Title:           stringField(raw, "title"),
		Hook:            stringField(raw, "hook"),
		Takeaways:       stringSliceField(raw, "takeaways"),
		MasteryQuestion: stringField(raw, "mastery_question"),
		Learnt:          boolField(raw, "is_learnt"),
	}

	switch CardType(strings.ToLower(strings.TrimSpace(kind))) {
	case CardImage:
		return mapImageCard(raw, meta), nil
	case CardQuiz:
		return mapQuizCard(raw, meta), nil
	case CardFlashcard:
		return mapFlashcard(raw, meta), nil
	case "":
		return nil, fmt.Errorf("card %q has no type discriminator", meta.ID)
	default:
		return nil, fmt.Errorf("card %q has unrecognized type %q", meta.ID, kind)
	}
}

func mapImageCard(raw Raw, meta CardMeta) ImageCard {
	caption := stringField(raw, "caption")
	if caption == "" {
		// Older records carry the explanation as ordered fragments instead
		// of a flat caption. Space-joined, matching the feed renderer.
		caption = strings.Join(stringSliceField(raw, "micro_explanation"), " ")
	}
	return ImageCard{
		CardMeta: meta,
		URL:      stringField(raw, "image_url", "url"),
		Caption:  caption,
		Credit:   stringField(raw, "credit", "image_credit"),
		Style:    stringField(raw, "image_style"),
	}
}

func mapQuizCard(raw Raw, meta CardMeta) QuizCard {
	quiz, _ := raw["quiz"].(map[string]any)
	choices := stringSliceField(quiz, "choices", "options")
	options := make([]QuizOption, 0, len(choices))
	for i, choice := range choices {
		options = append(options, QuizOption{ID: strconv.Itoa(i), Text: choice})
	}
	correct := "0"
	if quiz != nil {
		if _, ok := quiz["answer_index"]; ok {
			correct = strconv.Itoa(intField(quiz, "answer_index"))
		}
	}
	return QuizCard{
		CardMeta:        meta,
		Question:        stringField(quiz, "question"),
		Options:         options,
		CorrectOptionID: correct,
		Explanation:     stringField(quiz, "explanation"),
	}
}

func mapFlashcard(raw Raw, meta CardMeta) FlashcardCard {
	card := FlashcardCard{
		CardMeta: meta,
		Hint:     stringField(raw, "hint"),
	}
	if mapping, ok := raw["flashcard"].(map[string]any); ok && len(mapping) > 0 {
		// Canonical encoding: one key (front) mapped to one value (back).
		// Extra entries are ignored; the keys are sorted so repeated mapping
		// of the same record stays deterministic.
		keys := make([]string, 0, len(mapping))
		for key := range mapping {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		card.Front = keys[0]
		card.Back = toString(mapping[keys[0]])
		return card
	}
	card.Front = stringField(raw, "front")
	card.Back = stringField(raw, "back")
	return card
}

// UnwrapTopics accepts the /feed list payload, which is either a bare array
// or an object wrapping the array under one of several historical keys.
func UnwrapTopics(payload any) []Raw {
	return unwrap(payload, "topics", "nodes", "items", "feed")
}

// UnwrapCards accepts the per-topic card payload with the same tolerance.
func UnwrapCards(payload any) []Raw {
	return unwrap(payload, "cards", "alus", "items")
}

func unwrap(payload any, keys ...string) []Raw {
	switch v := payload.(type) {
	case []any:
		return toRaws(v)
	case map[string]any:
		for _, key := range keys {
			if list, ok := v[key].([]any); ok {
				return toRaws(list)
			}
		}
	}
	return nil
}

func toRaws(list []any) []Raw {
	records := make([]Raw, 0, len(list))
	for _, item := range list {
		if raw, ok := item.(map[string]any); ok {
			records = append(records, raw)
		}
	}
	return records
}

func stringField(raw Raw, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key]; ok {
			if s := strings.TrimSpace(toString(value)); s != "" {
				return s
			}
		}
	}
	return ""
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func intField(raw Raw, keys ...string) int {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			return int(v)
		case int:
			return v
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}
	return 0
}

func boolField(raw Raw, keys ...string) bool {
	for _, key := range keys {
		if v, ok := raw[key].(bool); ok {
			return v
		}
	}
	return false
}

func stringSliceField(raw Raw, keys ...string) []string {
	for _, key := range keys {
		list, ok := raw[key].([]any)
		if !ok {
			continue
		}
		values := make([]string, 0, len(list))
		for _, item := range list {
			if s := toString(item); s != "" {
				values = append(values, s)
			}
		}
		return values
	}
	return nil
}

func timeField(raw Raw, keys ...string) time.Time {
	value := stringField(raw, keys...)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
