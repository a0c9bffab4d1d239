package tui

type stage int

const (
	stageFeed stage = iota
	stageCards
	stageGuide
)

const heroTagline = "Turn any topic into a swipeable learning feed."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
	maxRecentJobs             = 5
)

const composerPlaceholder = "Type a topic (or paste source text) and press Enter…"
