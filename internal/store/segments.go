package store

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/josefus/minne/internal/metrics"
)

// FallbackNamespace scopes segments stored before a conversation id exists.
// A blank id must never leak one conversation's memory into another; the
// orchestrator generates fresh ids, so this only covers direct store use.
const FallbackNamespace = "startup"

// minUsefulMatches is the result count below which SearchAdaptive relaxes the
// score threshold to zero, trading precision for availability of context.
const minUsefulMatches = 4

// Match is one ranked search hit.
type Match struct {
	Score float64 `json:"score"`
	Text  string  `json:"text"`
	TS    int64   `json:"ts"`
	Order int64   `json:"ord"`
}

func sessionOrFallback(session string) string {
	if session == "" {
		return FallbackNamespace
	}
	return session
}

// Add stores one segment under the given conversation namespace and returns
// the generated record id.
func (c *Client) Add(ctx context.Context, session string, vector []float32, text string, ts, order int64) (string, error) {
	start := time.Now()
	defer c.record(metrics.OpStoreAdd, start)

	type created struct {
		ID surrealmodels.RecordID `json:"id"`
	}

	results, err := surrealdb.Query[[]created](ctx, c.db, `
		CREATE segment SET
			session = $session,
			text = $text,
			embedding = $embedding,
			ts = $ts,
			ord = $ord
	`, map[string]any{
		"session":   sessionOrFallback(session),
		"text":      text,
		"embedding": vector,
		"ts":        ts,
		"ord":       order,
	})
	if err != nil {
		return "", fmt.Errorf("add segment: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return "", fmt.Errorf("add segment: no result returned")
	}
	return fmt.Sprint((*results)[0].Result[0].ID.ID), nil
}

// Search returns segments for one conversation ranked by cosine similarity,
// descending, with score >= minScore and at most maxResults entries. Queries
// never cross conversations: the session filter is part of every query.
func (c *Client) Search(ctx context.Context, session string, vector []float32, maxResults int, minScore float64) ([]Match, error) {
	start := time.Now()
	defer c.record(metrics.OpStoreSearch, start)

	if maxResults < 1 {
		maxResults = 1
	}

	// KNN size must be a literal in SurrealQL, hence the Sprintf. ef=40 for
	// recall, matching the HNSW index.
	sql := fmt.Sprintf(`
		SELECT text, ts, ord, vector::similarity::cosine(embedding, $embedding) AS score
		FROM segment
		WHERE session = $session AND embedding <|%d,40|> $embedding
		ORDER BY score DESC
	`, maxResults)

	results, err := surrealdb.Query[[]Match](ctx, c.db, sql, map[string]any{
		"session":   sessionOrFallback(session),
		"embedding": vector,
	})
	if err != nil {
		return nil, fmt.Errorf("search segments: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []Match{}, nil
	}

	// Score threshold applied here; the KNN operator has no minimum-score form.
	matches := make([]Match, 0, len((*results)[0].Result))
	for _, m := range (*results)[0].Result {
		if m.Score >= minScore {
			matches = append(matches, m)
		}
	}
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

// SearchAdaptive runs Search with the strict threshold, then retries once with
// the threshold relaxed to 0 when the strict pass returns fewer than the
// minimum useful count.
func (c *Client) SearchAdaptive(ctx context.Context, session string, vector []float32, maxResults int, minScore float64) ([]Match, error) {
	matches, err := c.Search(ctx, session, vector, maxResults, minScore)
	if err != nil {
		return nil, err
	}
	if len(matches) >= minUsefulMatches || minScore <= 0 {
		return matches, nil
	}

	c.logger.Debug("strict search below useful count, relaxing threshold",
		"session", sessionOrFallback(session), "strict_matches", len(matches), "min_score", minScore)
	return c.Search(ctx, session, vector, maxResults, 0)
}
