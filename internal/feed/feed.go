package feed

import "time"

// Status is the client-side topic state. The backend reports a wider set of
// strings; the normalizer collapses them through IsReady.
type Status string

const (
	StatusReady      Status = "ready"
	StatusGenerating Status = "generating"
)

// Depth describes how advanced a topic's feed is pitched.
type Depth string

const (
	DepthBeginner     Depth = "beginner"
	DepthIntermediate Depth = "intermediate"
	DepthAdvanced     Depth = "advanced"
)

// Topic is one learning feed, either confirmed by the backend or a local
// placeholder awaiting generation.
type Topic struct {
	ID          string
	Title       string
	Emoji       string
	Color       string
	Status      Status
	Depth       Depth
	CardCount   int
	LearntCount int
	CreatedAt   time.Time
	Cards       []Card
	Stuck       bool
}

// CardType discriminates the closed set of card variants.
type CardType string

const (
	CardImage     CardType = "image"
	CardQuiz      CardType = "quiz"
	CardFlashcard CardType = "flashcard"
)

// CardMeta carries the fields shared by every card variant.
type CardMeta struct {
	ID              string
	NodeID          string
	Order           int
	Title           string
	Hook            string
	Takeaways       []string
	MasteryQuestion string
	Learnt          bool
}

// Card is one atomic learning unit. Concrete types are ImageCard, QuizCard,
// and FlashcardCard; consumers dispatch on Type and must handle all three.
type Card interface {
	Type() CardType
	Meta() CardMeta
}

// ImageCard is a visual card with a caption derived from the explanation.
type ImageCard struct {
	CardMeta
	URL     string
	Caption string
	Credit  string
	Style   string
}

func (c ImageCard) Type() CardType { return CardImage }
func (c ImageCard) Meta() CardMeta { return c.CardMeta }

// QuizOption is one selectable answer. Option identity is positional: the id
// is the zero-based index the backend generated the choice at.
type QuizOption struct {
	ID   string
	Text string
}

type QuizCard struct {
	CardMeta
	Question        string
	Options         []QuizOption
	CorrectOptionID string
	Explanation     string
}

func (c QuizCard) Type() CardType { return CardQuiz }
func (c QuizCard) Meta() CardMeta { return c.CardMeta }

type FlashcardCard struct {
	CardMeta
	Front string
	Back  string
	Hint  string
}

func (c FlashcardCard) Type() CardType { return CardFlashcard }
func (c FlashcardCard) Meta() CardMeta { return c.CardMeta }

// WithLearnt returns a copy of the card with the learnt flag set. Cards are
// immutable values, so flipping the flag means rebuilding the variant.
func WithLearnt(card Card, learnt bool) Card {
	switch c := card.(type) {
	case ImageCard:
		c.CardMeta.Learnt = learnt
		return c
	case QuizCard:
		c.CardMeta.Learnt = learnt
		return c
	case FlashcardCard:
		c.CardMeta.Learnt = learnt
		return c
	default:
		return card
	}
}

// Placeholder builds the optimistic topic shown while generation runs. The
// position index keeps the derived emoji and color stable across re-renders.
func Placeholder(nodeID, title string, position int, createdAt time.Time) Topic {
	return Topic{
		ID:        nodeID,
		Title:     title,
		Emoji:     emojiForPosition(position),
		Color:     colorForPosition(position),
		Status:    StatusGenerating,
		Depth:     DepthBeginner,
		CreatedAt: createdAt,
	}
}
