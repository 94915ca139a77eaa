// Package memory implements the conversation memory store: an in-process
// cache of chat transcripts backed by a vector store for persistence and
// semantic recall.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/josefus/minne/internal/models"
	"github.com/josefus/minne/internal/store"
)

// SegmentStore is the persistence surface the memory layer needs.
type SegmentStore interface {
	Add(ctx context.Context, session string, vector []float32, text string, ts, order int64) (string, error)
	Search(ctx context.Context, session string, vector []float32, maxResults int, minScore float64) ([]store.Match, error)
	SearchAdaptive(ctx context.Context, session string, vector []float32, maxResults int, minScore float64) ([]store.Match, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// probeQuery is a generic embedding probe used to recover a conversation's
// segments after a restart, when no user query exists yet. Role words keep it
// close to every stored segment regardless of topic.
const probeQuery = "conversation chat message user assistant"

// probeMaxResults bounds cold-start reconstruction.
const probeMaxResults = 100

// maxSessions bounds the in-process cache. Evicted conversations lose their
// delta watermark but not their segments; the next access reconstructs them
// from the vector store.
const maxSessions = 1024

// session is the cached state of one conversation. messages and lastStored
// move together under mu; seq hands out monotonic per-conversation ordinals.
type session struct {
	mu         sync.Mutex
	messages   []models.Message
	lastStored int
	seq        atomic.Int64
}

// Store coordinates the per-conversation message cache with segment
// persistence. Persistence is at-most-once per message: every message is
// written in the first Update call that sees it and never again.
type Store struct {
	segments SegmentStore
	embedder Embedder
	logger   *slog.Logger
	sessions *lru.Cache[string, *session]
}

// NewStore creates a memory store.
func NewStore(segments SegmentStore, embedder Embedder, logger *slog.Logger) (*Store, error) {
	sessions, err := lru.New[string, *session](maxSessions)
	if err != nil {
		return nil, err
	}
	return &Store{
		segments: segments,
		embedder: embedder,
		logger:   logger,
		sessions: sessions,
	}, nil
}

func (s *Store) session(id string) *session {
	if sess, ok := s.sessions.Get(id); ok {
		return sess
	}
	sess := &session{}
	if existing, ok, _ := s.sessions.PeekOrAdd(id, sess); ok {
		return existing
	}
	return sess
}

// NextOrder returns the next per-conversation ordinal, starting at 1.
func (s *Store) NextOrder(id string) int64 {
	return s.session(id).seq.Add(1)
}

// Messages returns a snapshot of the conversation transcript. An empty cache
// triggers cold-start reconstruction from the vector store; reconstruction
// failure degrades to an empty transcript rather than an error.
func (s *Store) Messages(ctx context.Context, id string) []models.Message {
	sess := s.session(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(sess.messages) == 0 {
		if loaded := s.reconstruct(ctx, id); len(loaded) > 0 {
			sess.messages = loaded
			// Everything reconstructed came out of the store, so it is
			// already persisted. Without this, the next Update would write
			// the whole transcript a second time.
			sess.lastStored = len(loaded)
			if last := loaded[len(loaded)-1].Order; last > sess.seq.Load() {
				sess.seq.Store(last)
			}
		}
	}

	snapshot := make([]models.Message, len(sess.messages))
	copy(snapshot, sess.messages)
	return snapshot
}

// reconstruct loads a conversation's segments via a broad probe search and
// rebuilds the transcript in ts order, ordinal as tiebreak.
func (s *Store) reconstruct(ctx context.Context, id string) []models.Message {
	vector, err := s.embedder.Embed(ctx, probeQuery)
	if err != nil {
		s.logger.Warn("reconstruction probe embedding failed", "chat_id", id, "error", err)
		return nil
	}

	matches, err := s.segments.Search(ctx, id, vector, probeMaxResults, 0)
	if err != nil {
		s.logger.Warn("reconstruction search failed", "chat_id", id, "error", err)
		return nil
	}

	messages := s.parseMatches(matches)
	sortByTime(messages)

	if len(messages) > 0 {
		s.logger.Info("reconstructed conversation from store",
			"chat_id", id, "segments", len(matches), "messages", len(messages))
	}
	return messages
}

// Update replaces the cached transcript and persists only the delta beyond
// the last stored watermark. The cache is updated even when persistence
// fails; a failed write is logged and retried implicitly on the next Update,
// never surfaced to the caller.
func (s *Store) Update(ctx context.Context, id string, messages []models.Message) {
	sess := s.session(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	replacement := make([]models.Message, len(messages))
	copy(replacement, messages)
	sess.messages = replacement

	if sess.lastStored > len(replacement) {
		// Transcript shrank (external reset). Realign so future deltas are
		// computed against what is actually cached.
		sess.lastStored = len(replacement)
	}

	delta := replacement[sess.lastStored:]
	if len(delta) == 0 {
		return
	}

	stored := 0
	for _, msg := range delta {
		if !s.persist(ctx, id, msg) {
			break
		}
		stored++
	}
	sess.lastStored += stored

	if stored > 0 {
		s.logger.Debug("persisted conversation delta",
			"chat_id", id, "stored", stored, "total", len(replacement))
	}
}

// persist writes one message as a segment. Returns false on failure so the
// caller can stop and keep the watermark consistent with what reached the
// store.
func (s *Store) persist(ctx context.Context, id string, msg models.Message) bool {
	text := models.FormatSegment(msg)

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("segment embedding failed, message stays cached only",
			"chat_id", id, "order", msg.Order, "error", err)
		return false
	}

	if _, err := s.segments.Add(ctx, id, vector, text, msg.TS, msg.Order); err != nil {
		s.logger.Warn("segment write failed, message stays cached only",
			"chat_id", id, "order", msg.Order, "error", err)
		return false
	}
	return true
}

// Delete drops a conversation from the cache. Persisted segments survive and
// reappear through reconstruction on the next access.
func (s *Store) Delete(id string) {
	s.sessions.Remove(id)
}

// HasStored reports whether any message of the conversation has been
// persisted in this process.
func (s *Store) HasStored(id string) bool {
	sess, ok := s.sessions.Peek(id)
	if !ok {
		return false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.lastStored > 0
}
