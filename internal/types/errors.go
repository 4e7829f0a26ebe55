package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                = errors.New("requested item not found")
	ErrAlreadyPresent          = errors.New("place already present in itinerary")
	ErrConfirmationRequired    = errors.New("deletion requires explicit confirmation")
	ErrNoActiveConversation    = errors.New("no active conversation")
	ErrConfiguration           = errors.New("provider is not configured")
	ErrValidation              = errors.New("invalid request")
	ErrInvalidFormat           = errors.New("model output has an invalid format")
	ErrPersistence             = errors.New("persistence failure")
	ErrRefinement              = errors.New("refinement failure")
	ErrProvider                = errors.New("provider request failed")
	ErrConversationUnavailable = errors.New("conversation is no longer available")
)

// ConfigurationError reports a missing provider credential or setting.
// Message is safe to show to end users; Detail is for the server log.
type ConfigurationError struct {
	Message string
	Detail  string
}

func (e *ConfigurationError) Error() string { return e.Message }

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ProviderError is a non-success answer or transport failure from the model
// or search provider. StatusCode is 0 for transport failures.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrProvider, e.Err}
	}
	return []error{ErrProvider}
}

// FormatError means structured model output could not be interpreted.
type FormatError struct {
	Reason string
	Raw    string
}

func (e *FormatError) Error() string { return "invalid route format: " + e.Reason }

func (e *FormatError) Unwrap() error { return ErrInvalidFormat }

// RefinementError is logged per place and never returned to callers of a
// batch refinement.
type RefinementError struct {
	PlaceID string
	Query   string
	Err     error
}

func (e *RefinementError) Error() string {
	return fmt.Sprintf("refine place %q (%s): %v", e.PlaceID, e.Query, e.Err)
}

func (e *RefinementError) Unwrap() []error { return []error{ErrRefinement, e.Err} }

type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

type RecommendationKind string

const (
	RecommendationConfiguration RecommendationKind = "configuration"
	RecommendationProvider      RecommendationKind = "provider"
	RecommendationInvalidFormat RecommendationKind = "invalid_format"
)

// RecommendationError is the single failure of a route recommendation. No
// partial itinerary accompanies it.
type RecommendationError struct {
	Kind RecommendationKind
	Err  error
}

func (e *RecommendationError) Error() string {
	return fmt.Sprintf("recommendation failed (%s): %v", e.Kind, e.Err)
}

func (e *RecommendationError) Unwrap() error { return e.Err }

type ReplyError struct {
	Err error
}

func (e *ReplyError) Error() string { return fmt.Sprintf("reply failed: %v", e.Err) }

func (e *ReplyError) Unwrap() error { return e.Err }
