package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/loopmind/internal/backend"
	"github.com/csheth/loopmind/internal/feed"
	"github.com/csheth/loopmind/internal/generation"
	"github.com/csheth/loopmind/internal/media"
)

func refreshTopicsJob(client backend.Client) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		return topicsMsg{topics: client.Topics(ctx)}, nil
	}
}

func pollTopicsJob(client backend.Client, nodeID string, token uint64) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		// The gateway absorbs timeouts into an empty list, so a failed tick
		// reads as "not ready yet" and the loop carries on.
		return pollResultMsg{nodeID: nodeID, token: token, topics: client.Topics(ctx)}, nil
	}
}

func fetchCardsJob(client backend.Client, nodeID string) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		return cardsMsg{nodeID: nodeID, cards: client.Cards(ctx, nodeID)}, nil
	}
}

func generateJob(client backend.Client, req backend.GenerateRequest) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		// Returns as soon as the submission is handed off; completion is
		// observed by the polling loop, never here.
		return submitDoneMsg{nodeID: client.Generate(ctx, req)}, nil
	}
}

func markLearntJob(client backend.Client, nodeID, aluID string) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		client.MarkLearnt(ctx, nodeID, aluID)
		return learnDoneMsg{nodeID: nodeID, aluID: aluID}, nil
	}
}

func deleteTopicJob(client backend.Client, nodeID string, retry retrySpec) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		client.Delete(ctx, nodeID)
		return deleteDoneMsg{nodeID: nodeID, retry: retry}, nil
	}
}

func prefetchImageJob(cache *media.Cache, cardID, imageURL string) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		path, err := cache.Fetch(ctx, imageURL)
		if err != nil {
			return imageMsg{cardID: cardID, err: err}, err
		}
		return imageMsg{cardID: cardID, path: path}, nil
	}
}

// schedulePoll asks the session for its next delay and arranges the tick.
// The tick carries the session's token so a superseded loop lands as a no-op.
func schedulePoll(session *generation.Session, now time.Time) tea.Cmd {
	delay := session.NextDelay(now)
	nodeID, token := session.NodeID, session.Token
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return pollTickMsg{nodeID: nodeID, token: token}
	})
}

// splitSubmission derives the topic title from composer input the same way
// the backend would: first line, capped at 60 characters.
func splitSubmission(input string) (title, rawText string) {
	rawText = strings.TrimSpace(input)
	title = rawText
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = title[:idx]
	}
	title = strings.TrimSpace(title)
	// Cap by runes, not bytes, so multi-byte titles never split mid-character.
	if runes := []rune(title); len(runes) > 60 {
		title = strings.TrimSpace(string(runes[:57])) + "..."
	}
	return title, rawText
}

func findTopic(topics []feed.Topic, nodeID string) (feed.Topic, bool) {
	for _, topic := range topics {
		if topic.ID == nodeID {
			return topic, true
		}
	}
	return feed.Topic{}, false
}

func filterTopics(topics []feed.Topic, nodeID string) []feed.Topic {
	result := make([]feed.Topic, 0, len(topics))
	for _, topic := range topics {
		if topic.ID != nodeID {
			result = append(result, topic)
		}
	}
	return result
}

// replaceTopic swaps one entry wholesale, returning a fresh slice. The topic
// list is only ever mutated by whole-list replacement so an in-flight poll
// and a UI delete can never interleave partial edits.
func replaceTopic(topics []feed.Topic, updated feed.Topic) []feed.Topic {
	result := make([]feed.Topic, len(topics))
	copy(result, topics)
	for i := range result {
		if result[i].ID == updated.ID {
			result[i] = updated
		}
	}
	return result
}
