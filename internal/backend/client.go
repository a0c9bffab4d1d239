package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/csheth/loopmind/internal/feed"
	"github.com/csheth/loopmind/internal/logging"
)

const defaultRequestTimeout = 10 * time.Second

// GenerateRequest describes one topic submission. NodeID is the client-chosen
// synthetic id; the backend stores the record under it so placeholder and
// confirmed topic share identity.
type GenerateRequest struct {
	NodeID  string
	Title   string
	RawText string
}

// Client is the outbound gateway to the LoopMind backend. Reads degrade to
// empty collections and writes are best-effort: a transport failure is logged
// and swallowed so the feed stays usable with the backend unreachable.
type Client interface {
	Topics(ctx context.Context) []feed.Topic
	Cards(ctx context.Context, nodeID string) []feed.Card
	Generate(ctx context.Context, req GenerateRequest) string
	MarkLearnt(ctx context.Context, nodeID, aluID string)
	Delete(ctx context.Context, nodeID string)
}

// Config describes how to reach the backend.
type Config struct {
	BaseURL        string
	UserID         string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Logger         *zap.SugaredLogger
}

// New returns an HTTP-backed gateway.
func New(cfg Config) Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &httpGateway{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		userID:  cfg.UserID,
		timeout: timeout,
		client:  httpClient,
		log:     log,
	}
}

type httpGateway struct {
	base    string
	userID  string
	timeout time.Duration
	client  *http.Client
	log     *zap.SugaredLogger
}

func (g *httpGateway) Topics(ctx context.Context) []feed.Topic {
	payload, err := g.get(ctx, url.Values{"user_id": {g.userID}})
	if err != nil {
		g.log.Warnw("topic list fetch failed; serving empty feed", "err", err)
		return []feed.Topic{}
	}
	records := feed.UnwrapTopics(payload)
	topics := make([]feed.Topic, 0, len(records))
	for i, raw := range records {
		topic := feed.MapTopic(raw, i)
		if topic.ID == "" {
			g.log.Warnw("dropping topic record without node_id", "position", i)
			continue
		}
		topics = append(topics, topic)
	}
	return topics
}

func (g *httpGateway) Cards(ctx context.Context, nodeID string) []feed.Card {
	payload, err := g.get(ctx, url.Values{"user_id": {g.userID}, "node_id": {nodeID}})
	if err != nil {
		g.log.Warnw("card fetch failed; serving empty list", "node_id", nodeID, "err", err)
		return []feed.Card{}
	}
	records := feed.UnwrapCards(payload)
	cards := make([]feed.Card, 0, len(records))
	for _, raw := range records {
		card, err := feed.MapCard(raw)
		if err != nil {
			g.log.Warnw("dropping card record", "node_id", nodeID, "err", err)
			continue
		}
		cards = append(cards, card)
	}
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].Meta().Order < cards[j].Meta().Order
	})
	return cards
}

// Generate submits the generation request and returns the node id without
// waiting for the backend. The backend's synchronous response window is far
// shorter than its pipeline, so the HTTP result is observed only by the
// detached sender's log line; completion is the polling loop's job.
func (g *httpGateway) Generate(_ context.Context, req GenerateRequest) string {
	body := map[string]string{
		"user_id":  g.userID,
		"node_id":  req.NodeID,
		"title":    req.Title,
		"raw_text": req.RawText,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()
		if err := g.post(ctx, "/generate", body); err != nil {
			g.log.Warnw("generate submission did not confirm", "node_id", req.NodeID, "err", err)
			return
		}
		g.log.Infow("generate submitted", "node_id", req.NodeID, "title", req.Title)
	}()
	return req.NodeID
}

func (g *httpGateway) MarkLearnt(ctx context.Context, nodeID, aluID string) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	body := map[string]string{"user_id": g.userID, "alu_id": aluID, "node_id": nodeID}
	if err := g.post(ctx, "/learn", body); err != nil {
		g.log.Warnw("mark learnt failed", "node_id", nodeID, "alu_id", aluID, "err", err)
	}
}

func (g *httpGateway) Delete(ctx context.Context, nodeID string) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	body := map[string]string{"user_id": g.userID, "node_id": nodeID}
	if err := g.post(ctx, "/delete", body); err != nil {
		g.log.Warnw("topic delete failed", "node_id", nodeID, "err", err)
	}
}

func (g *httpGateway) get(ctx context.Context, query url.Values) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base+"/feed?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed API error: %s (%s)", resp.Status, string(snippet))
	}
	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}
	return payload, nil
}

func (g *httpGateway) post(ctx context.Context, path string, body map[string]string) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s API error: %s (%s)", path, resp.Status, string(snippet))
	}
	return nil
}
