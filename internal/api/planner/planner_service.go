// Package planner runs the user-facing workflow: chatting inside the active
// conversation, turning it into a route and editing that route.
package planner

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeopl/route-planner/internal/api/chat"
	"github.com/yeopl/route-planner/internal/api/recommend"
	"github.com/yeopl/route-planner/internal/itinerary"
	"github.com/yeopl/route-planner/internal/types"
)

const (
	ReplyFailurePrefix  = "죄송합니다. 응답 생성 중 오류가 발생했습니다: "
	RouteReadyMessage   = "경로 추천이 준비되었어요! 오른쪽 패널에서 경로를 확인하고 순서를 변경하거나 장소를 추가할 수 있습니다."
	DuplicatePlaceError = "이미 추가된 장소입니다."
)

// Conversations is the part of the conversation store the planner drives.
type Conversations interface {
	Create(ctx context.Context) *types.Conversation
	Select(ctx context.Context, id string) bool
	Rename(ctx context.Context, id, name string) bool
	Delete(ctx context.Context, id string, confirmed bool) error
	AppendMessage(ctx context.Context, id string, author types.Author, text string, route types.Route) (types.Message, bool)
	UpdateRoute(ctx context.Context, id string, route types.Route) bool
	Active() (*types.Conversation, bool)
	Get(id string) (*types.Conversation, bool)
	List() []types.ConversationSummary
	HandOffRoute(ctx context.Context) (types.Route, error)
	HandedOffRoute(ctx context.Context) types.Route
}

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	ListConversations(ctx context.Context) []types.ConversationSummary
	CreateConversation(ctx context.Context) *types.Conversation
	ActiveConversation(ctx context.Context) (*types.Conversation, error)
	SelectConversation(ctx context.Context, id string) (*types.Conversation, error)
	RenameConversation(ctx context.Context, id, name string) (*types.Conversation, error)
	DeleteConversation(ctx context.Context, id string, confirmed bool) (*types.Conversation, error)

	SendMessage(ctx context.Context, text string) (types.SendMessageResponse, error)
	RequestRecommendation(ctx context.Context) (types.RecommendationResponse, error)

	Itinerary(ctx context.Context) (types.ItineraryResponse, error)
	AddPlace(ctx context.Context, place types.Place) (types.ItineraryResponse, error)
	RemovePlace(ctx context.Context, id string) (types.ItineraryResponse, error)
	ReorderPlace(ctx context.Context, fromID, toID string) (types.ItineraryResponse, error)

	MapView(ctx context.Context) (types.MapView, error)
	HandedOffMapView(ctx context.Context) types.MapView
}

type ServiceImpl struct {
	conversations Conversations
	itinerary     *itinerary.Store
	chat          chat.Service
	recommend     recommend.Service
	logger        *slog.Logger
}

func NewServiceImpl(conversations Conversations, route *itinerary.Store, chatService chat.Service, recommendService recommend.Service, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		conversations: conversations,
		itinerary:     route,
		chat:          chatService,
		recommend:     recommendService,
		logger:        logger,
	}
}

func (s *ServiceImpl) ListConversations(_ context.Context) []types.ConversationSummary {
	return s.conversations.List()
}

func (s *ServiceImpl) CreateConversation(ctx context.Context) *types.Conversation {
	return s.conversations.Create(ctx)
}

func (s *ServiceImpl) ActiveConversation(_ context.Context) (*types.Conversation, error) {
	conv, ok := s.conversations.Active()
	if !ok {
		return nil, types.ErrNoActiveConversation
	}
	return conv, nil
}

func (s *ServiceImpl) SelectConversation(ctx context.Context, id string) (*types.Conversation, error) {
	if !s.conversations.Select(ctx, id) {
		return nil, types.ErrNotFound
	}
	return s.ActiveConversation(ctx)
}

func (s *ServiceImpl) RenameConversation(ctx context.Context, id, name string) (*types.Conversation, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &types.ValidationError{Message: "Conversation name must not be empty"}
	}
	if !s.conversations.Rename(ctx, id, name) {
		return nil, types.ErrNotFound
	}
	conv, _ := s.conversations.Get(id)
	return conv, nil
}

// DeleteConversation returns the conversation that is active afterwards.
func (s *ServiceImpl) DeleteConversation(ctx context.Context, id string, confirmed bool) (*types.Conversation, error) {
	if err := s.conversations.Delete(ctx, id, confirmed); err != nil {
		return nil, err
	}
	return s.ActiveConversation(ctx)
}

// SendMessage appends the user's text, asks for a reply and appends it. A
// failed reply still leaves the user's message and adds a visible error
// bubble; the response then has Failed set and err is nil.
func (s *ServiceImpl) SendMessage(ctx context.Context, text string) (types.SendMessageResponse, error) {
	ctx, span := otel.Tracer("PlannerService").Start(ctx, "SendMessage")
	defer span.End()

	l := s.logger.With(slog.String("method", "SendMessage"))

	text = strings.TrimSpace(text)
	if text == "" {
		return types.SendMessageResponse{}, &types.ValidationError{Message: "Message text is required"}
	}

	conv, ok := s.conversations.Active()
	if !ok {
		return types.SendMessageResponse{}, types.ErrNoActiveConversation
	}
	span.SetAttributes(attribute.String("conversation.id", conv.ID))

	userMsg, ok := s.conversations.AppendMessage(ctx, conv.ID, types.AuthorUser, text, nil)
	if !ok {
		return types.SendMessageResponse{}, types.ErrConversationUnavailable
	}
	transcript := append(conv.Messages, userMsg)

	resp := types.SendMessageResponse{UserMessage: userMsg}
	reply, err := s.chat.Reply(ctx, transcript)
	if err != nil {
		_, msg := chat.ReplyErrorStatus(err)
		l.WarnContext(ctx, "Reply failed, appending error bubble", slog.String("conversation_id", conv.ID), slog.Any("error", err))
		span.RecordError(err)
		reply = ReplyFailurePrefix + msg
		resp.Failed = true
	}

	botMsg, ok := s.conversations.AppendMessage(ctx, conv.ID, types.AuthorBot, reply, nil)
	if !ok {
		l.WarnContext(ctx, "Conversation removed while waiting for reply", slog.String("conversation_id", conv.ID))
		span.SetStatus(codes.Error, "conversation removed")
		return resp, types.ErrConversationUnavailable
	}
	resp.BotMessage = botMsg
	span.SetStatus(codes.Ok, "Message answered")
	return resp, nil
}

// RequestRecommendation replaces the active itinerary with a fresh
// recommendation. Nothing changes when the recommendation fails or the
// conversation disappears before it arrives.
func (s *ServiceImpl) RequestRecommendation(ctx context.Context) (types.RecommendationResponse, error) {
	ctx, span := otel.Tracer("PlannerService").Start(ctx, "RequestRecommendation")
	defer span.End()

	l := s.logger.With(slog.String("method", "RequestRecommendation"))

	conv, ok := s.conversations.Active()
	if !ok {
		return types.RecommendationResponse{}, types.ErrNoActiveConversation
	}
	span.SetAttributes(attribute.String("conversation.id", conv.ID))

	places, err := s.recommend.Recommend(ctx, conv.Messages)
	if err != nil {
		l.ErrorContext(ctx, "Recommendation failed, itinerary unchanged", slog.String("conversation_id", conv.ID), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "recommendation failed")
		return types.RecommendationResponse{}, err
	}

	route := itinerary.SetAll(places)
	if !s.conversations.UpdateRoute(ctx, conv.ID, route) {
		l.WarnContext(ctx, "Dropping recommendation for removed conversation", slog.String("conversation_id", conv.ID))
		span.SetStatus(codes.Error, "conversation removed")
		return types.RecommendationResponse{}, types.ErrConversationUnavailable
	}
	msg, _ := s.conversations.AppendMessage(ctx, conv.ID, types.AuthorBot, RouteReadyMessage, route)

	span.SetAttributes(attribute.Int("route.places", len(route)))
	span.SetStatus(codes.Ok, "Route committed")
	l.InfoContext(ctx, "Route committed", slog.String("conversation_id", conv.ID), slog.Int("places", len(route)))
	return types.RecommendationResponse{Route: route, Message: msg}, nil
}

func (s *ServiceImpl) Itinerary(_ context.Context) (types.ItineraryResponse, error) {
	id, route, err := s.itinerary.Current()
	if err != nil {
		return types.ItineraryResponse{}, err
	}
	return types.ItineraryResponse{ConversationID: id, Route: route}, nil
}

func (s *ServiceImpl) AddPlace(ctx context.Context, place types.Place) (types.ItineraryResponse, error) {
	place.ID = strings.TrimSpace(place.ID)
	place.Name = strings.TrimSpace(place.Name)
	if place.ID == "" || place.Name == "" {
		return types.ItineraryResponse{}, &types.ValidationError{Message: "Place id and name are required"}
	}
	if _, err := s.itinerary.Add(ctx, place); err != nil {
		return types.ItineraryResponse{}, err
	}
	return s.Itinerary(ctx)
}

func (s *ServiceImpl) RemovePlace(ctx context.Context, id string) (types.ItineraryResponse, error) {
	if _, err := s.itinerary.Remove(ctx, id); err != nil {
		return types.ItineraryResponse{}, err
	}
	return s.Itinerary(ctx)
}

func (s *ServiceImpl) ReorderPlace(ctx context.Context, fromID, toID string) (types.ItineraryResponse, error) {
	_, ok, err := s.itinerary.Reorder(ctx, fromID, toID)
	if err != nil {
		return types.ItineraryResponse{}, err
	}
	if !ok {
		return types.ItineraryResponse{}, types.ErrNotFound
	}
	return s.Itinerary(ctx)
}

// MapView hands the active route off to the map and projects it.
func (s *ServiceImpl) MapView(ctx context.Context) (types.MapView, error) {
	ctx, span := otel.Tracer("PlannerService").Start(ctx, "MapView", trace.WithAttributes(
		attribute.String("map.source", "active"),
	))
	defer span.End()

	route, err := s.conversations.HandOffRoute(ctx)
	if err != nil {
		span.RecordError(err)
		return types.MapView{}, err
	}
	view := itinerary.PlotOrDefault(route)
	span.SetAttributes(attribute.Int("map.markers", len(view.Markers)), attribute.Bool("map.default", view.UsedDefault))
	return view, nil
}

// HandedOffMapView projects whatever route was last handed off, which is what
// a reloaded map page shows.
func (s *ServiceImpl) HandedOffMapView(ctx context.Context) types.MapView {
	return itinerary.PlotOrDefault(s.conversations.HandedOffRoute(ctx))
}
