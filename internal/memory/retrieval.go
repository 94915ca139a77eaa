package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/josefus/minne/internal/models"
	"github.com/josefus/minne/internal/store"
	"github.com/josefus/minne/internal/token"
)

const (
	// primaryMinScore is the relevance threshold for the strict search pass.
	primaryMinScore = 0.3
	// primaryMaxResults caps how many segments one retrieval considers.
	primaryMaxResults = 20
	// recencyFloor is how many of the newest segments are kept regardless of
	// relevance score, so the immediate past survives topic changes.
	recencyFloor = 4
	// keepRecent is the transcript length beyond which older turns are
	// folded into a summary.
	keepRecent = 20
	// summaryCharLimit caps the folded summary.
	summaryCharLimit = 800
)

// Retrieve returns the conversation context for a query: semantically ranked
// segments fused with a recency floor, deduplicated, trimmed to the token
// budget and parsed back into messages, newest first. Long results are
// compacted by folding older turns into a summary message.
//
// Retrieval degrades, never fails: any error along the way yields an empty
// result and a log line. A blank query or non-positive budget short-circuits
// to empty.
func (s *Store) Retrieve(ctx context.Context, id, query string, maxTokens int, tok token.Tokenizer) []models.Message {
	if strings.TrimSpace(query) == "" || maxTokens <= 0 {
		return nil
	}
	if !s.HasStored(id) {
		// No watermark yet: either the namespace is empty or this process
		// has not seen the conversation. Reconstruction settles which; it
		// also restores the watermark, so a fresh process can recall a
		// conversation persisted by an earlier one.
		if len(s.Messages(ctx, id)) == 0 {
			return nil
		}
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("retrieval embedding failed, continuing without memory",
			"chat_id", id, "error", err)
		return nil
	}

	matches, err := s.segments.SearchAdaptive(ctx, id, vector, primaryMaxResults, primaryMinScore)
	if err != nil {
		s.logger.Warn("retrieval search failed, continuing without memory",
			"chat_id", id, "error", err)
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	fused := fuseRecency(matches)
	kept := trimToBudget(dedupeByText(fused), maxTokens, tok)

	messages := s.parseMatches(kept)
	return summarizeIfLong(messages)
}

// fuseRecency orders matches as the newest recencyFloor segments first
// (newest to oldest), then the remainder by relevance. Score alone would let
// a topic shift push the last few turns out of context entirely.
func fuseRecency(matches []store.Match) []store.Match {
	byTime := make([]store.Match, len(matches))
	copy(byTime, matches)
	sort.SliceStable(byTime, func(i, j int) bool {
		if byTime[i].TS != byTime[j].TS {
			return byTime[i].TS > byTime[j].TS
		}
		return byTime[i].Order > byTime[j].Order
	})

	floor := recencyFloor
	if floor > len(byTime) {
		floor = len(byTime)
	}
	recent := byTime[:floor]

	inRecent := make(map[string]bool, floor)
	for _, m := range recent {
		inRecent[m.Text] = true
	}

	rest := make([]store.Match, 0, len(matches))
	for _, m := range matches {
		if !inRecent[m.Text] {
			rest = append(rest, m)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].Score != rest[j].Score {
			return rest[i].Score > rest[j].Score
		}
		return rest[i].TS > rest[j].TS
	})

	return append(recent, rest...)
}

func dedupeByText(matches []store.Match) []store.Match {
	seen := make(map[string]bool, len(matches))
	out := matches[:0:0]
	for _, m := range matches {
		if seen[m.Text] {
			continue
		}
		seen[m.Text] = true
		out = append(out, m)
	}
	return out
}

// trimToBudget keeps matches greedily in order until the cumulative token
// estimate would exceed the budget, then stops. Stopping at the first
// overflow keeps the high-priority prefix intact instead of cherry-picking
// smaller segments from further down.
func trimToBudget(matches []store.Match, maxTokens int, tok token.Tokenizer) []store.Match {
	used := 0
	for i, m := range matches {
		cost := tok.EstimateTokens(m.Text)
		if used+cost > maxTokens {
			return matches[:i]
		}
		used += cost
	}
	return matches
}

// parseMatches converts segment texts back into messages. A segment that no
// longer parses is dropped with a warning; it never aborts the batch.
func (s *Store) parseMatches(matches []store.Match) []models.Message {
	messages := make([]models.Message, 0, len(matches))
	for _, m := range matches {
		msg, ok := models.ParseSegment(m.Text)
		if !ok {
			s.logger.Warn("dropping unparseable segment", "text_len", len(m.Text), "ts", m.TS)
			continue
		}
		msg.TS = m.TS
		msg.Order = m.Order
		messages = append(messages, msg)
	}
	return messages
}

func sortByTime(messages []models.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].TS != messages[j].TS {
			return messages[i].TS < messages[j].TS
		}
		return messages[i].Order < messages[j].Order
	})
}

// summarizeIfLong folds everything beyond the newest keepRecent messages
// into one synthetic system message, capped at summaryCharLimit characters
// and prepended before the recent block. Input is newest-first; the summary
// covers the older tail.
func summarizeIfLong(messages []models.Message) []models.Message {
	if len(messages) <= keepRecent {
		return messages
	}

	recent := messages[:keepRecent]
	older := messages[keepRecent:]

	var b strings.Builder
	b.WriteString("Summary of earlier conversation: ")
	for i, msg := range older {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Text)
		if b.Len() >= summaryCharLimit {
			break
		}
	}
	summary := b.String()
	if len(summary) > summaryCharLimit {
		summary = summary[:summaryCharLimit]
	}

	out := make([]models.Message, 0, keepRecent+1)
	out = append(out, models.NewSystemMessage(summary))
	out = append(out, recent...)
	return out
}
