package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/csheth/loopmind/internal/backend"
	"github.com/csheth/loopmind/internal/feed"
	"github.com/csheth/loopmind/internal/generation"
	"github.com/csheth/loopmind/internal/guide"
	"github.com/csheth/loopmind/internal/media"
)

// Config wires runtime options into the TUI program.
type Config struct {
	Backend backend.Client
	Images  *media.Cache
	Logger  *zap.SugaredLogger
	Polling generation.Params
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	composer := textinput.New()
	composer.Placeholder = composerPlaceholder
	composer.CharLimit = 500
	composer.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	return &model{
		config:         config,
		jobs:           newJobBus(config.Logger),
		clock:          time.Now,
		stage:          stageFeed,
		composer:       composer,
		spinner:        spin,
		viewport:       vp,
		loading:        true,
		tracker:        generation.NewTracker(),
		sessions:       map[string]*generation.Session{},
		answered:       map[string]string{},
		submissions:    map[string]string{},
		abandoned:      map[string]bool{},
		imagePaths:     map[string]string{},
		imageRequested: map[string]bool{},
		runningJobs:    map[string]jobSnapshot{},
		infoMessage:    "Loading your feed…",
	}
}

type model struct {
	config Config
	jobs   *jobBus
	clock  func() time.Time

	stage       stage
	guideReturn stage

	composer textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	topics  []feed.Topic
	cursor  int
	loading bool

	activeID    string
	cardIndex   int
	flipped     bool
	answered    map[string]string
	pendingOpen string

	guideSteps []guide.Step
	guideTitle string

	tracker     *generation.Tracker
	sessions    map[string]*generation.Session
	submissions map[string]string
	abandoned   map[string]bool

	imagePaths     map[string]string
	imageRequested map[string]bool

	composing   bool
	helpVisible bool

	runningJobs map[string]jobSnapshot
	recentJobs  []jobSnapshot

	infoMessage  string
	errorMessage string
}

type topicsMsg struct {
	topics []feed.Topic
}

type cardsMsg struct {
	nodeID string
	cards  []feed.Card
}

type pollTickMsg struct {
	nodeID string
	token  uint64
}

type pollResultMsg struct {
	nodeID string
	token  uint64
	topics []feed.Topic
}

type submitDoneMsg struct {
	nodeID string
}

// retrySpec rides along with a delete so the follow-up submission starts only
// after the old topic is gone.
type retrySpec struct {
	resubmit bool
	title    string
	rawText  string
}

type deleteDoneMsg struct {
	nodeID string
	retry  retrySpec
}

type learnDoneMsg struct {
	nodeID string
	aluID  string
}

type imageMsg struct {
	cardID string
	path   string
	err    error
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.jobs.Start(jobKindRefresh, refreshTopicsJob(m.config.Backend)),
	)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.spinning() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			return m.handleEsc()
		}
		return m.handleKey(msg)
	case tea.MouseMsg:
		if m.stage == stageCards || m.stage == stageGuide {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	case tea.WindowSizeMsg:
		newWidth := msg.Width - viewportHorizontalPadding
		if newWidth < minViewportWidth {
			newWidth = minViewportWidth
		}
		m.viewport.Width = newWidth
		height := msg.Height - 6
		if height < 5 {
			height = 5
		}
		m.viewport.Height = height
		return m, nil
	case jobSignalMsg:
		m.runningJobs[msg.Snapshot.ID] = msg.Snapshot
		return m, m.spinner.Tick
	case jobResultEnvelope:
		delete(m.runningJobs, msg.Snapshot.ID)
		m.recentJobs = append(m.recentJobs, msg.Snapshot)
		if len(m.recentJobs) > maxRecentJobs {
			m.recentJobs = m.recentJobs[len(m.recentJobs)-maxRecentJobs:]
		}
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case topicsMsg:
		m.loading = false
		m.topics = m.mergeTopics(msg.topics)
		m.clampCursor()
		if len(m.topics) == 0 {
			m.infoMessage = "No topics yet. Press a to create your first feed."
		}
		return m, nil
	case cardsMsg:
		return m.handleCards(msg)
	case pollTickMsg:
		if !m.tracker.Current(msg.nodeID, msg.token) {
			return m, nil
		}
		return m, m.jobs.Start(jobKindPoll, pollTopicsJob(m.config.Backend, msg.nodeID, msg.token))
	case pollResultMsg:
		return m.handlePollResult(msg)
	case submitDoneMsg:
		m.config.Logger.Debugw("generation submitted", "node_id", msg.nodeID)
		return m, nil
	case deleteDoneMsg:
		if msg.retry.resubmit {
			return m, m.beginSubmission(msg.retry.title, msg.retry.rawText)
		}
		return m, nil
	case learnDoneMsg:
		m.config.Logger.Debugw("learnt recorded", "node_id", msg.nodeID, "alu_id", msg.aluID)
		return m, nil
	case imageMsg:
		if msg.err != nil {
			m.config.Logger.Debugw("image prefetch failed", "card_id", msg.cardID, "err", msg.err)
			return m, nil
		}
		m.imagePaths[msg.cardID] = msg.path
		return m, nil
	}
	return m, nil
}

func (m *model) spinning() bool {
	if m.loading || len(m.runningJobs) > 0 {
		return true
	}
	for _, t := range m.topics {
		if t.Status == feed.StatusGenerating && !t.Stuck {
			return true
		}
	}
	return false
}

// mergeTopics replaces the whole list with the backend's view, keeping two
// local facts the backend cannot know: cards already fetched this session,
// and placeholders whose generation the backend has not acknowledged yet.
func (m *model) mergeTopics(remote []feed.Topic) []feed.Topic {
	local := make(map[string]feed.Topic, len(m.topics))
	for _, t := range m.topics {
		local[t.ID] = t
	}
	now := m.clock()
	merged := make([]feed.Topic, 0, len(remote)+1)
	seen := make(map[string]bool, len(remote))
	for _, t := range remote {
		if prev, ok := local[t.ID]; ok && len(prev.Cards) > 0 && len(t.Cards) == 0 {
			t.Cards = prev.Cards
		}
		if t.Status == feed.StatusReady {
			delete(m.abandoned, t.ID)
		}
		// A topic whose generation hit the deadline stays stuck no matter
		// how young the backend record looks; only ready clears it.
		t.Stuck = feed.IsStuck(t, now) || m.abandoned[t.ID]
		merged = append(merged, t)
		seen[t.ID] = true
	}
	for _, t := range m.topics {
		if seen[t.ID] {
			continue
		}
		// Stuck placeholders stay visible even though their session ended;
		// the user resolves them with retry or delete.
		if m.tracker.Tracking(t.ID) || t.Stuck {
			merged = append(merged, t)
		}
	}
	return merged
}

func (m *model) handleCards(msg cardsMsg) (tea.Model, tea.Cmd) {
	topic, ok := findTopic(m.topics, msg.nodeID)
	if !ok {
		return m, nil
	}
	topic.Cards = msg.cards
	if len(msg.cards) > topic.CardCount {
		topic.CardCount = len(msg.cards)
	}
	m.topics = replaceTopic(m.topics, topic)

	var cmds []tea.Cmd
	if m.pendingOpen == msg.nodeID {
		m.pendingOpen = ""
		if len(msg.cards) == 0 {
			m.errorMessage = fmt.Sprintf("No cards arrived for %q. Press R to refresh or r to regenerate.", topic.Title)
			return m, nil
		}
		m.openCards(topic)
		cmds = append(cmds, m.prefetchAround(topic, 0)...)
	} else if m.activeID == msg.nodeID {
		if m.cardIndex >= len(msg.cards) {
			m.cardIndex = len(msg.cards) - 1
		}
		cmds = append(cmds, m.prefetchAround(topic, m.cardIndex)...)
	}
	if len(cmds) == 0 {
		return m, nil
	}
	return m, tea.Batch(cmds...)
}

func (m *model) handlePollResult(msg pollResultMsg) (tea.Model, tea.Cmd) {
	if !m.tracker.Current(msg.nodeID, msg.token) {
		return m, nil
	}
	session, ok := m.sessions[msg.nodeID]
	if !ok {
		m.tracker.End(msg.nodeID, msg.token)
		return m, nil
	}

	observed, found := findTopic(msg.topics, msg.nodeID)
	if found && observed.Status == feed.StatusReady {
		m.tracker.End(msg.nodeID, msg.token)
		delete(m.sessions, msg.nodeID)
		m.infoMessage = fmt.Sprintf("%q is ready.", observed.Title)
		m.errorMessage = ""
		// The poll response is an observation; the whole list is re-fetched
		// so the placeholder is replaced by the authoritative record.
		return m, m.jobs.Start(jobKindRefresh, refreshTopicsJob(m.config.Backend))
	}

	now := m.clock()
	if session.Expired(now) {
		m.tracker.End(msg.nodeID, msg.token)
		delete(m.sessions, msg.nodeID)
		m.abandoned[msg.nodeID] = true
		if topic, ok := findTopic(m.topics, msg.nodeID); ok {
			topic.Stuck = true
			m.topics = replaceTopic(m.topics, topic)
			m.errorMessage = fmt.Sprintf("%q is taking too long. Press r to retry or d to remove it.", topic.Title)
		}
		return m, m.jobs.Start(jobKindRefresh, refreshTopicsJob(m.config.Backend))
	}

	if found {
		// The backend knows the topic now; adopt its record but keep it in
		// the generating state until a poll reports ready.
		observed.Stuck = feed.IsStuck(observed, now)
		m.topics = replaceTopic(m.topics, observed)
	}
	return m, schedulePoll(session, now)
}

func (m *model) beginSubmission(title, rawText string) tea.Cmd {
	now := m.clock()
	nodeID := generation.NewNodeID(now)
	session := m.tracker.Begin(nodeID, now, m.config.Polling)
	m.sessions[nodeID] = session
	m.submissions[nodeID] = rawText

	topics := make([]feed.Topic, 0, len(m.topics)+1)
	topics = append(topics, m.topics...)
	topics = append(topics, feed.Placeholder(nodeID, title, len(m.topics), now))
	m.topics = topics
	m.cursor = len(m.topics) - 1
	m.infoMessage = fmt.Sprintf("Generating %q. Cards appear when they are ready.", title)
	m.errorMessage = ""

	req := backend.GenerateRequest{NodeID: nodeID, Title: title, RawText: rawText}
	return tea.Batch(
		m.jobs.Start(jobKindGenerate, generateJob(m.config.Backend, req)),
		schedulePoll(session, now),
		m.spinner.Tick,
	)
}

func (m *model) handleEsc() (tea.Model, tea.Cmd) {
	if m.composing {
		m.composing = false
		m.composer.SetValue("")
		m.composer.Blur()
		m.infoMessage = "Submission canceled."
		return m, nil
	}
	switch m.stage {
	case stageGuide:
		m.stage = m.guideReturn
		return m, nil
	case stageCards:
		m.stage = stageFeed
		m.activeID = ""
		return m, nil
	default:
		return m, tea.Quit
	}
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.composing {
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(key)
		if key.Type == tea.KeyEnter {
			input := strings.TrimSpace(m.composer.Value())
			m.composing = false
			m.composer.SetValue("")
			m.composer.Blur()
			if input == "" {
				m.infoMessage = "Nothing to submit."
				return m, nil
			}
			title, rawText := splitSubmission(input)
			return m, m.beginSubmission(title, rawText)
		}
		return m, cmd
	}

	switch m.stage {
	case stageFeed:
		return m.handleFeedKey(key)
	case stageCards:
		return m.handleCardsKey(key)
	case stageGuide:
		switch key.String() {
		case "q", "g", "enter":
			m.stage = m.guideReturn
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(key)
		return m, cmd
	}
	return m, nil
}

func (m *model) handleFeedKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.topics)-1 {
			m.cursor++
		}
		return m, nil
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "a", "n":
		m.composing = true
		m.composer.Focus()
		m.errorMessage = ""
		return m, textinput.Blink
	case "enter":
		return m.openSelected()
	case "d":
		return m.deleteSelected(retrySpec{})
	case "r":
		return m.retrySelected()
	case "R":
		m.infoMessage = "Refreshing…"
		return m, m.jobs.Start(jobKindRefresh, refreshTopicsJob(m.config.Backend))
	case "g":
		return m.openGuide(stageFeed)
	case "?":
		m.helpVisible = !m.helpVisible
		return m, nil
	}
	return m, nil
}

func (m *model) handleCardsKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	topic, ok := findTopic(m.topics, m.activeID)
	if !ok || len(topic.Cards) == 0 {
		m.stage = stageFeed
		return m, nil
	}
	switch key.String() {
	case "q":
		m.stage = stageFeed
		m.activeID = ""
		return m, nil
	case "l", "right":
		if m.cardIndex < len(topic.Cards)-1 {
			m.cardIndex++
			m.flipped = false
			return m, m.batchPrefetch(topic, m.cardIndex)
		}
		return m, nil
	case "h", "left":
		if m.cardIndex > 0 {
			m.cardIndex--
			m.flipped = false
			return m, m.batchPrefetch(topic, m.cardIndex)
		}
		return m, nil
	case "f", " ":
		m.flipped = !m.flipped
		return m, nil
	case "m":
		return m.markLearntSelected(topic)
	case "g":
		return m.openGuide(stageCards)
	case "?":
		m.helpVisible = !m.helpVisible
		return m, nil
	}
	if len(key.String()) == 1 && key.String() >= "1" && key.String() <= "9" {
		return m.answerQuiz(topic, int(key.String()[0]-'1'))
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(key)
	return m, cmd
}

func (m *model) openSelected() (tea.Model, tea.Cmd) {
	topic, ok := m.selectedTopic()
	if !ok {
		return m, nil
	}
	if topic.Status != feed.StatusReady {
		if topic.Stuck {
			m.infoMessage = fmt.Sprintf("%q seems stuck. Press r to retry or d to remove it.", topic.Title)
		} else {
			m.infoMessage = fmt.Sprintf("%q is still generating (%s elapsed).", topic.Title, elapsedLabel(m.clock().Sub(topic.CreatedAt)))
		}
		return m, nil
	}
	if len(topic.Cards) > 0 {
		m.openCards(topic)
		return m, m.batchPrefetch(topic, 0)
	}
	m.pendingOpen = topic.ID
	m.infoMessage = fmt.Sprintf("Opening %q…", topic.Title)
	return m, m.jobs.Start(jobKindCards, fetchCardsJob(m.config.Backend, topic.ID))
}

func (m *model) openCards(topic feed.Topic) {
	m.stage = stageCards
	m.activeID = topic.ID
	m.cardIndex = 0
	m.flipped = false
	m.viewport.SetYOffset(0)
	m.errorMessage = ""
	m.infoMessage = ""
}

func (m *model) deleteSelected(retry retrySpec) (tea.Model, tea.Cmd) {
	topic, ok := m.selectedTopic()
	if !ok {
		return m, nil
	}
	m.tracker.Supersede(topic.ID)
	delete(m.sessions, topic.ID)
	delete(m.abandoned, topic.ID)
	m.topics = filterTopics(m.topics, topic.ID)
	m.clampCursor()
	if !retry.resubmit {
		m.infoMessage = fmt.Sprintf("Removed %q.", topic.Title)
	}
	return m, m.jobs.Start(jobKindDelete, deleteTopicJob(m.config.Backend, topic.ID, retry))
}

func (m *model) retrySelected() (tea.Model, tea.Cmd) {
	topic, ok := m.selectedTopic()
	if !ok {
		return m, nil
	}
	if topic.Status == feed.StatusReady {
		m.infoMessage = fmt.Sprintf("%q is already generated.", topic.Title)
		return m, nil
	}
	rawText := m.submissions[topic.ID]
	if rawText == "" {
		rawText = topic.Title
	}
	m.infoMessage = fmt.Sprintf("Retrying %q…", topic.Title)
	return m.deleteSelected(retrySpec{resubmit: true, title: topic.Title, rawText: rawText})
}

func (m *model) markLearntSelected(topic feed.Topic) (tea.Model, tea.Cmd) {
	if m.cardIndex < 0 || m.cardIndex >= len(topic.Cards) {
		return m, nil
	}
	card := topic.Cards[m.cardIndex]
	meta := card.Meta()
	if meta.Learnt {
		return m, nil
	}
	// Flip locally first; the backend call is best effort and never undoes it.
	cards := make([]feed.Card, len(topic.Cards))
	copy(cards, topic.Cards)
	cards[m.cardIndex] = feed.WithLearnt(card, true)
	topic.Cards = cards
	topic.LearntCount++
	m.topics = replaceTopic(m.topics, topic)
	m.infoMessage = fmt.Sprintf("Marked learnt (%d/%d).", topic.LearntCount, topic.CardCount)
	return m, m.jobs.Start(jobKindLearn, markLearntJob(m.config.Backend, topic.ID, meta.ID))
}

func (m *model) answerQuiz(topic feed.Topic, choice int) (tea.Model, tea.Cmd) {
	card, ok := topic.Cards[m.cardIndex].(feed.QuizCard)
	if !ok {
		return m, nil
	}
	if choice < 0 || choice >= len(card.Options) {
		return m, nil
	}
	m.answered[card.Meta().ID] = card.Options[choice].ID
	return m, nil
}

func (m *model) openGuide(from stage) (tea.Model, tea.Cmd) {
	var topic feed.Topic
	var ok bool
	if from == stageCards {
		topic, ok = findTopic(m.topics, m.activeID)
	} else {
		topic, ok = m.selectedTopic()
	}
	if !ok {
		return m, nil
	}
	m.guideSteps = guide.Build(guide.Metadata{Title: topic.Title, Depth: topic.Depth, CardCount: topic.CardCount})
	m.guideTitle = topic.Title
	m.guideReturn = from
	m.stage = stageGuide
	m.viewport.SetYOffset(0)
	return m, nil
}

// batchPrefetch wraps prefetchAround for call sites that want a single Cmd.
func (m *model) batchPrefetch(topic feed.Topic, index int) tea.Cmd {
	cmds := m.prefetchAround(topic, index)
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

// prefetchAround warms the image cache for the current card and the next two,
// so swiping forward rarely waits on the network.
func (m *model) prefetchAround(topic feed.Topic, index int) []tea.Cmd {
	if m.config.Images == nil {
		return nil
	}
	var cmds []tea.Cmd
	for i := index; i < len(topic.Cards) && i < index+3; i++ {
		img, ok := topic.Cards[i].(feed.ImageCard)
		if !ok || img.URL == "" {
			continue
		}
		id := img.Meta().ID
		if m.imageRequested[id] {
			continue
		}
		m.imageRequested[id] = true
		cmds = append(cmds, m.jobs.Start(jobKindImage, prefetchImageJob(m.config.Images, id, img.URL)))
	}
	return cmds
}

func (m *model) selectedTopic() (feed.Topic, bool) {
	if m.cursor < 0 || m.cursor >= len(m.topics) {
		return feed.Topic{}, false
	}
	return m.topics[m.cursor], true
}

func (m *model) clampCursor() {
	if m.cursor >= len(m.topics) {
		m.cursor = len(m.topics) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func elapsedLabel(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
