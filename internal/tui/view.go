package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/loopmind/internal/feed"
)

func (m *model) View() string {
	switch m.stage {
	case stageFeed:
		return m.viewFeed()
	case stageCards:
		return m.viewCards()
	case stageGuide:
		return m.viewGuide()
	default:
		return ""
	}
}

func (m *model) viewFeed() string {
	parts := []string{m.heroView()}
	if m.loading {
		parts = append(parts, helperStyle.Render(fmt.Sprintf("%s Loading your feed…", m.spinner.View())))
	} else {
		parts = append(parts, m.topicListView())
	}
	if m.composing {
		parts = append(parts, m.composerPanel())
	}
	parts = append(parts, m.messageLines()...)
	if m.helpVisible {
		parts = append(parts, m.helpView())
	}
	parts = append(parts, m.footerView())
	return joinNonEmpty(parts)
}

func (m *model) topicListView() string {
	if len(m.topics) == 0 {
		return helperStyle.Render("Nothing here yet. Press a and type any topic to build your first feed.")
	}
	lines := make([]string, 0, len(m.topics)+1)
	lines = append(lines, sectionHeaderStyle.Render("Your Topics"))
	for i, topic := range m.topics {
		marker := "  "
		if i == m.cursor {
			marker = "▸ "
		}
		title := topicTitleStyle.Foreground(lipgloss.Color(topicColor(topic))).Render(topic.Title)
		line := fmt.Sprintf("%s%s %s  %s", marker, topic.Emoji, title, m.topicBadge(topic))
		if i == m.cursor {
			line = currentLineStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *model) topicBadge(topic feed.Topic) string {
	switch {
	case topic.Stuck:
		return stuckStyle.Render("stuck · r to retry, d to remove")
	case topic.Status == feed.StatusGenerating:
		return generatingStyle.Render(fmt.Sprintf("%s generating · %s", m.spinner.View(), elapsedLabel(m.clock().Sub(topic.CreatedAt))))
	default:
		badge := fmt.Sprintf("%d cards", topic.CardCount)
		if topic.LearntCount > 0 {
			badge += fmt.Sprintf(" · %d learnt", topic.LearntCount)
		}
		if topic.Depth != "" {
			badge += " · " + string(topic.Depth)
		}
		return helperStyle.Render(badge)
	}
}

func (m *model) viewCards() string {
	topic, ok := findTopic(m.topics, m.activeID)
	if !ok || len(topic.Cards) == 0 {
		return m.viewFeed()
	}
	if m.cardIndex >= len(topic.Cards) {
		m.cardIndex = len(topic.Cards) - 1
	}
	card := topic.Cards[m.cardIndex]

	header := joinNonEmpty([]string{
		titleStyle.Render(topic.Title),
		helperStyle.Render(fmt.Sprintf("Card %d of %d · %d learnt · h/l to swipe, esc to go back", m.cardIndex+1, len(topic.Cards), topic.LearntCount)),
	})

	parts := []string{header, m.cardView(card)}
	parts = append(parts, m.messageLines()...)
	if m.helpVisible {
		parts = append(parts, m.helpView())
	}
	parts = append(parts, m.footerView())
	return joinNonEmpty(parts)
}

func (m *model) cardView(card feed.Card) string {
	meta := card.Meta()
	width := m.contentWidth()

	var body []string
	if meta.Title != "" {
		body = append(body, subtitleStyle.Render(meta.Title))
	}
	if meta.Hook != "" {
		body = append(body, hookStyle.Render(wordwrap.String(meta.Hook, width)))
	}

	switch c := card.(type) {
	case feed.ImageCard:
		body = append(body, m.imageCardView(c, width)...)
	case feed.QuizCard:
		body = append(body, m.quizCardView(c, width)...)
	case feed.FlashcardCard:
		body = append(body, m.flashcardView(c, width)...)
	}

	if len(meta.Takeaways) > 0 {
		lines := []string{sectionHeaderStyle.Render("Takeaways")}
		for _, t := range meta.Takeaways {
			lines = append(lines, wordwrap.String("• "+t, width))
		}
		body = append(body, strings.Join(lines, "\n"))
	}
	if meta.MasteryQuestion != "" {
		body = append(body, helperStyle.Render(wordwrap.String("Can you answer: "+meta.MasteryQuestion, width)))
	}
	if meta.Learnt {
		body = append(body, learntStyle.Render("✓ learnt"))
	} else {
		body = append(body, helperStyle.Render("m to mark learnt"))
	}
	return cardBoxStyle.Width(width + 4).Render(joinNonEmpty(body))
}

func (m *model) imageCardView(c feed.ImageCard, width int) []string {
	var lines []string
	if path, ok := m.imagePaths[c.Meta().ID]; ok {
		lines = append(lines, helperStyle.Render("image: "+path))
	} else if c.URL != "" {
		lines = append(lines, helperStyle.Render(fmt.Sprintf("%s fetching image…", m.spinner.View())))
	}
	if c.Caption != "" {
		lines = append(lines, wordwrap.String(c.Caption, width))
	}
	if c.Credit != "" {
		lines = append(lines, helperStyle.Render("credit: "+c.Credit))
	}
	return lines
}

func (m *model) quizCardView(c feed.QuizCard, width int) []string {
	lines := []string{wordwrap.String(c.Question, width), ""}
	chosen, answered := m.answered[c.Meta().ID]
	for i, opt := range c.Options {
		label := fmt.Sprintf("%d. %s", i+1, opt.Text)
		switch {
		case answered && opt.ID == c.CorrectOptionID:
			label = correctStyle.Render(label + "  ✓")
		case answered && opt.ID == chosen:
			label = wrongStyle.Render(label + "  ✗")
		}
		lines = append(lines, wordwrap.String(label, width))
	}
	if answered {
		if chosen == c.CorrectOptionID {
			lines = append(lines, correctStyle.Render("Correct!"))
		} else {
			lines = append(lines, wrongStyle.Render("Not quite."))
		}
		if c.Explanation != "" {
			lines = append(lines, wordwrap.String(c.Explanation, width))
		}
	} else {
		lines = append(lines, helperStyle.Render("Press 1-9 to answer."))
	}
	return lines
}

func (m *model) flashcardView(c feed.FlashcardCard, width int) []string {
	lines := []string{wordwrap.String(c.Front, width)}
	if m.flipped {
		lines = append(lines, flashBackStyle.Render(wordwrap.String(c.Back, width)))
	} else {
		lines = append(lines, helperStyle.Render("Press f to flip."))
		if c.Hint != "" {
			lines = append(lines, helperStyle.Render("hint: "+c.Hint))
		}
	}
	return lines
}

func (m *model) viewGuide() string {
	parts := []string{titleStyle.Render("How to study " + m.guideTitle)}
	width := m.contentWidth()
	for i, step := range m.guideSteps {
		parts = append(parts, joinNonEmpty([]string{
			sectionHeaderStyle.Render(fmt.Sprintf("%d. %s", i+1, step.Title)),
			wordwrap.String(step.Description, width),
		}))
	}
	parts = append(parts, helperStyle.Render("Press esc to go back."))
	return joinNonEmpty(parts)
}

func (m *model) composerPanel() string {
	return joinNonEmpty([]string{
		sectionHeaderStyle.Render("New Topic"),
		m.composer.View(),
		helperStyle.Render("Enter: generate · Esc: cancel · first line becomes the title"),
	})
}

func (m *model) messageLines() []string {
	var lines []string
	if m.errorMessage != "" {
		lines = append(lines, errorStyle.Render(m.errorMessage))
	}
	if m.infoMessage != "" {
		lines = append(lines, helperStyle.Render(m.infoMessage))
	}
	return lines
}

func (m *model) footerView() string {
	var badges []string
	for _, snap := range m.runningJobs {
		badges = append(badges, jobRunningStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), snap.Kind)))
	}
	for _, snap := range m.recentJobs {
		if snap.Status == jobStatusFailed {
			badges = append(badges, jobFailedStyle.Render(string(snap.Kind)+" ✗"))
		}
	}
	if len(badges) == 0 {
		return ""
	}
	return helperStyle.Render("jobs: ") + strings.Join(badges, "  ")
}

func (m *model) helpView() string {
	var rows []string
	switch m.stage {
	case stageCards:
		rows = []string{
			"h/l  previous / next card",
			"f    flip flashcard",
			"1-9  answer quiz",
			"m    mark card learnt",
			"g    study guide",
			"esc  back to topics",
		}
	default:
		rows = []string{
			"j/k    move selection",
			"enter  open topic",
			"a      new topic",
			"r      retry stuck topic",
			"d      delete topic",
			"R      refresh feed",
			"g      study guide",
			"q      quit",
		}
	}
	return helpBoxStyle.Render(strings.Join(rows, "\n"))
}

func (m *model) heroView() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		logoStyle.Render(logoArt),
		taglineStyle.Render(heroTagline),
	)
}

func (m *model) contentWidth() int {
	width := m.viewport.Width
	if width < minViewportWidth {
		width = minViewportWidth
	}
	if width > 100 {
		width = 100
	}
	return width - viewportHorizontalPadding
}

func topicColor(topic feed.Topic) string {
	if topic.Color != "" {
		return topic.Color
	}
	return "205"
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

const logoArt = "" +
	"██╗      ██████╗  ██████╗ ██████╗ ███╗   ███╗██╗███╗   ██╗██████╗ \n" +
	"██║     ██╔═══██╗██╔═══██╗██╔══██╗████╗ ████║██║████╗  ██║██╔══██╗\n" +
	"██║     ██║   ██║██║   ██║██████╔╝██╔████╔██║██║██╔██╗ ██║██║  ██║\n" +
	"██║     ██║   ██║██║   ██║██╔═══╝ ██║╚██╔╝██║██║██║╚██╗██║██║  ██║\n" +
	"███████╗╚██████╔╝╚██████╔╝██║     ██║ ╚═╝ ██║██║██║ ╚████║██████╔╝\n" +
	"╚══════╝ ╚═════╝  ╚═════╝ ╚═╝     ╚═╝     ╚═╝╚═╝╚═╝  ╚═══╝╚═════╝ "

var (
	titleStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Underline(true)
	subtitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147"))
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	topicTitleStyle    = lipgloss.NewStyle().Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	generatingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("178")).Italic(true)
	stuckStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Italic(true)
	learntStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#a3be8c")).Bold(true)
	correctStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#a3be8c")).Bold(true)
	wrongStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	hookStyle          = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("110"))
	flashBackStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
	cardBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7f5af0")).Padding(1, 2)
	currentLineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	jobRunningStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	jobFailedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(1, 2)
	logoStyle          = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7f5af0"))
	taglineStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb347")).Italic(true)
)
