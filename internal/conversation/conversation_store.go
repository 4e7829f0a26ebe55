// Package conversation owns every chat conversation and which one is active.
// It is the single source of truth for transcripts and itineraries; the whole
// collection is written to the KV store after each mutation.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeopl/route-planner/app/observability/metrics"
	"github.com/yeopl/route-planner/internal/storage"
	"github.com/yeopl/route-planner/internal/types"
)

const (
	idPrefix   = "chat_"
	namePrefix = "새로운 대화"

	SeedMessageID   int64 = 1
	SeedMessageText       = "안녕하세요! 여행 계획을 도와드릴까요? 가고 싶은 곳이나 하고 싶은 활동을 말씀해주세요."
)

type Store struct {
	mu            sync.Mutex
	kv            storage.KV
	conversations types.Collection
	activeID      string
	now           func() time.Time
	logger        *slog.Logger
}

type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(kv storage.KV, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		kv:            kv,
		conversations: make(types.Collection),
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load restores the collection from storage. Anything unreadable counts as
// no saved state and a fresh conversation is created instead.
func (s *Store) Load(ctx context.Context) {
	ctx, span := otel.Tracer("ConversationStore").Start(ctx, "Load")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.logger.With(slog.String("method", "Load"))

	raw, err := s.kv.Get(ctx, types.ConversationsKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		l.InfoContext(ctx, "No saved conversations")
	case err != nil:
		s.reportPersistence(ctx, &types.PersistenceError{Op: "read", Key: types.ConversationsKey, Err: err})
	default:
		loaded, decodeErr := decodeCollection(raw)
		if decodeErr != nil {
			l.WarnContext(ctx, "Saved conversations are unreadable, starting fresh", slog.Any("error", decodeErr))
			span.RecordError(decodeErr)
		} else {
			s.conversations = loaded
		}
	}

	if len(s.conversations) == 0 {
		s.conversations = make(types.Collection)
		s.createLocked(ctx)
		return
	}
	s.activeID = s.mostRecentLocked()
	span.SetAttributes(attribute.Int("conversations.count", len(s.conversations)))
	l.InfoContext(ctx, "Conversations restored",
		slog.Int("count", len(s.conversations)),
		slog.String("active_id", s.activeID))
}

// decodeCollection accepts the stored map and repairs what older writers left
// out: ids, message slices and creation times.
func decodeCollection(raw []byte) (types.Collection, error) {
	var c types.Collection
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	out := make(types.Collection, len(c))
	for id, conv := range c {
		if conv == nil || id == "" {
			continue
		}
		conv.ID = id
		if conv.Messages == nil {
			conv.Messages = []types.Message{}
		}
		if conv.Route == nil {
			conv.Route = types.Route{}
		}
		if conv.CreatedAt.IsZero() {
			conv.CreatedAt = createdFromID(id)
		}
		out[id] = conv
	}
	return out, nil
}

func createdFromID(id string) time.Time {
	ms, err := strconv.ParseInt(strings.TrimPrefix(id, idPrefix), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Create starts a new conversation seeded with the greeting and makes it
// active.
func (s *Store) Create(ctx context.Context) *types.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(ctx).Clone()
}

func (s *Store) createLocked(ctx context.Context) *types.Conversation {
	ms := s.now().UnixMilli()
	id := idPrefix + strconv.FormatInt(ms, 10)
	for s.conversations[id] != nil {
		ms++
		id = idPrefix + strconv.FormatInt(ms, 10)
	}

	conv := &types.Conversation{
		ID:   id,
		Name: fmt.Sprintf("%s %d", namePrefix, len(s.conversations)),
		Messages: []types.Message{
			{ID: SeedMessageID, Author: types.AuthorBot, Text: SeedMessageText},
		},
		Route:     types.Route{},
		CreatedAt: time.UnixMilli(ms),
	}
	s.conversations[id] = conv
	s.activeID = id
	s.persistLocked(ctx)

	s.logger.InfoContext(ctx, "Conversation created", slog.String("conversation_id", id), slog.String("name", conv.Name))
	return conv
}

// Select activates id. Unknown ids are ignored.
func (s *Store) Select(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversations[id] == nil {
		return false
	}
	s.activeID = id
	return true
}

// Rename trims name and applies it. A blank name or unknown id changes
// nothing.
func (s *Store) Rename(ctx context.Context, id, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.conversations[id]
	if conv == nil {
		return false
	}
	conv.Name = name
	s.persistLocked(ctx)
	return true
}

// Delete removes id once the caller has confirmed. Removing the active
// conversation activates the most recent remaining one, or a new one when
// none is left.
func (s *Store) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return types.ErrConfirmationRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversations[id] == nil {
		return types.ErrNotFound
	}
	delete(s.conversations, id)

	if s.activeID == id {
		if len(s.conversations) == 0 {
			s.createLocked(ctx)
			return nil
		}
		s.activeID = s.mostRecentLocked()
	}
	s.persistLocked(ctx)
	s.logger.InfoContext(ctx, "Conversation deleted", slog.String("conversation_id", id), slog.String("active_id", s.activeID))
	return nil
}

// AppendMessage adds a message to conversation id and returns it with its
// assigned id. ok is false when the conversation no longer exists.
func (s *Store) AppendMessage(ctx context.Context, id string, author types.Author, text string, route types.Route) (types.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.conversations[id]
	if conv == nil {
		return types.Message{}, false
	}

	msg := types.Message{
		ID:     s.nextMessageID(conv),
		Author: author,
		Text:   text,
	}
	if route != nil {
		msg.Route = route.Clone()
	}
	conv.Messages = append(conv.Messages, msg)
	s.persistLocked(ctx)
	return msg, true
}

// nextMessageID keeps ids strictly increasing even if the clock goes back.
func (s *Store) nextMessageID(conv *types.Conversation) int64 {
	next := s.now().UnixMilli()
	if n := len(conv.Messages); n > 0 && conv.Messages[n-1].ID >= next {
		next = conv.Messages[n-1].ID + 1
	}
	return next
}

// UpdateRoute replaces the itinerary of conversation id.
func (s *Store) UpdateRoute(ctx context.Context, id string, route types.Route) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.conversations[id]
	if conv == nil {
		return false
	}
	conv.Route = route.Clone()
	s.persistLocked(ctx)
	return true
}

// MutateActiveRoute runs fn on the active route while holding the lock. The
// result is stored unless fn fails, in which case the current route is
// returned alongside fn's error.
func (s *Store) MutateActiveRoute(ctx context.Context, fn func(types.Route) (types.Route, error)) (string, types.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.conversations[s.activeID]
	if conv == nil {
		return "", nil, types.ErrNoActiveConversation
	}
	next, err := fn(conv.Route.Clone())
	if err != nil {
		return conv.ID, conv.Route.Clone(), err
	}
	conv.Route = next.Clone()
	s.persistLocked(ctx)
	return conv.ID, conv.Route.Clone(), nil
}

// Active returns a copy of the active conversation.
func (s *Store) Active() (*types.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.conversations[s.activeID]
	if conv == nil {
		return nil, false
	}
	return conv.Clone(), true
}

func (s *Store) Get(id string) (*types.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.conversations[id]
	if conv == nil {
		return nil, false
	}
	return conv.Clone(), true
}

// List summarises all conversations, most recent first.
func (s *Store) List() []types.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ConversationSummary, 0, len(s.conversations))
	for _, id := range s.orderedIDsLocked() {
		conv := s.conversations[id]
		out = append(out, types.ConversationSummary{
			ID:           conv.ID,
			Name:         conv.Name,
			MessageCount: len(conv.Messages),
			PlaceCount:   len(conv.Route),
			CreatedAt:    conv.CreatedAt,
			Active:       conv.ID == s.activeID,
		})
	}
	return out
}

// HandOffRoute saves the active route under its own key for the map view.
func (s *Store) HandOffRoute(ctx context.Context) (types.Route, error) {
	s.mu.Lock()
	conv := s.conversations[s.activeID]
	if conv == nil {
		s.mu.Unlock()
		return nil, types.ErrNoActiveConversation
	}
	route := conv.Route.Clone()
	s.mu.Unlock()

	data, err := json.Marshal(route)
	if err != nil {
		return route, fmt.Errorf("encode route: %w", err)
	}
	if err := s.kv.Set(ctx, types.CurrentRouteKey, data); err != nil {
		s.reportPersistence(ctx, &types.PersistenceError{Op: "write", Key: types.CurrentRouteKey, Err: err})
	}
	return route, nil
}

// HandedOffRoute reads back the last handed-off route. Missing or unreadable
// state yields an empty route.
func (s *Store) HandedOffRoute(ctx context.Context) types.Route {
	raw, err := s.kv.Get(ctx, types.CurrentRouteKey)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Route{}
	}
	if err != nil {
		s.reportPersistence(ctx, &types.PersistenceError{Op: "read", Key: types.CurrentRouteKey, Err: err})
		return types.Route{}
	}
	var route types.Route
	if err := json.Unmarshal(raw, &route); err != nil {
		s.logger.WarnContext(ctx, "Handed-off route is unreadable", slog.Any("error", err))
		return types.Route{}
	}
	return route.Clone()
}

func (s *Store) orderedIDsLocked() []string {
	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.conversations[ids[i]], s.conversations[ids[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return ids
}

func (s *Store) mostRecentLocked() string {
	ids := s.orderedIDsLocked()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// persistLocked writes the whole collection. Failures leave memory as is.
func (s *Store) persistLocked(ctx context.Context) {
	data, err := json.Marshal(s.conversations)
	if err != nil {
		s.reportPersistence(ctx, &types.PersistenceError{Op: "encode", Key: types.ConversationsKey, Err: err})
		return
	}
	if err := s.kv.Set(ctx, types.ConversationsKey, data); err != nil {
		s.reportPersistence(ctx, &types.PersistenceError{Op: "write", Key: types.ConversationsKey, Err: err})
	}
}

func (s *Store) reportPersistence(ctx context.Context, perr *types.PersistenceError) {
	trace.SpanFromContext(ctx).RecordError(perr)
	metrics.Get().StorageErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", perr.Op),
		attribute.String("key", perr.Key),
	))
	s.logger.ErrorContext(ctx, "Failed to persist conversation state", slog.Any("error", perr))
}
