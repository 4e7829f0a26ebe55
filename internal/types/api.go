package types

import "encoding/json"

// ChatRequest is the body of POST /api/chat. Messages stays raw so the
// handler can tell a missing field from a field of the wrong type.
type ChatRequest struct {
	Messages  json.RawMessage `json:"messages"`
	Recommend bool            `json:"recommend"`
}

type ChatTextResponse struct {
	Text string `json:"text"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessageResponse carries the bot message appended for the turn. Failed
// is set when the bot message is the visible error bubble.
type SendMessageResponse struct {
	UserMessage Message `json:"user_message"`
	BotMessage  Message `json:"bot_message"`
	Failed      bool    `json:"failed"`
}

type RecommendationResponse struct {
	Route   Route   `json:"route"`
	Message Message `json:"message"`
}

type RenameConversationRequest struct {
	Name string `json:"name"`
}

type AddPlaceRequest struct {
	Place Place `json:"place"`
}

type ReorderRequest struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}

type ItineraryResponse struct {
	ConversationID string `json:"conversation_id"`
	Route          Route  `json:"route"`
}

// LatLng is a plotted coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Bounds struct {
	SouthWest LatLng `json:"south_west"`
	NorthEast LatLng `json:"north_east"`
}

// Marker is a numbered stop on the map. Number follows itinerary order and
// counts unplottable places too, so labels match the list.
type Marker struct {
	Number   int    `json:"number"`
	Place    Place  `json:"place"`
	Position LatLng `json:"position"`
}

type MapView struct {
	Route       Route    `json:"route"`
	Markers     []Marker `json:"markers"`
	Path        []LatLng `json:"path"`
	Bounds      *Bounds  `json:"bounds,omitempty"`
	Center      LatLng   `json:"center"`
	Unplotted   []string `json:"unplotted,omitempty"`
	UsedDefault bool     `json:"used_default"`
}
