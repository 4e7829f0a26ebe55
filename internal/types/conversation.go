package types

import "time"

type Author string

const (
	AuthorUser Author = "user"
	AuthorBot  Author = "bot"
)

// Message is one chat bubble. Messages are immutable once appended and their
// ids strictly increase within a conversation.
type Message struct {
	ID     int64  `json:"id"`
	Author Author `json:"author"`
	Text   string `json:"text"`
	Route  Route  `json:"route,omitempty"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Messages  []Message `json:"messages"`
	Route     Route     `json:"route"`
	CreatedAt time.Time `json:"createdAt"`
}

// Collection is the persisted form of all conversations, keyed by id.
type Collection map[string]*Conversation

// ConversationSummary is what the sidebar lists.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MessageCount int       `json:"message_count"`
	PlaceCount   int       `json:"place_count"`
	CreatedAt    time.Time `json:"created_at"`
	Active       bool      `json:"active"`
}

// Storage keys shared with the web client.
const (
	ConversationsKey = "chatConversations"
	CurrentRouteKey  = "currentTravelRoute"
)

// Clone returns a deep copy so callers never alias store-owned slices.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		m.Route = cloneNilable(m.Route)
		out.Messages[i] = m
	}
	out.Route = c.Route.Clone()
	return &out
}

func cloneNilable(r Route) Route {
	if r == nil {
		return nil
	}
	return r.Clone()
}
