package conversation

import "errors"

var (
	// ErrSessionNotFound is returned when no session exists for the id
	ErrSessionNotFound = errors.New("conversation session not found")

	// ErrNotStarted is returned when a turn arrives before the opening message
	ErrNotStarted = errors.New("conversation has not been started")

	// ErrConversationEnded is returned when a terminal conversation receives input
	ErrConversationEnded = errors.New("conversation has ended")

	// ErrMalformedEmail is returned when the follow-up email has no @
	ErrMalformedEmail = errors.New("email address is malformed")

	// ErrInvalidAction is returned when a follow-up action is attempted
	// outside the follow-up channel state
	ErrInvalidAction = errors.New("action not available in current state")

	// ErrInvalidPatch is returned when a reasoner patch fails validation
	ErrInvalidPatch = errors.New("qualification patch failed validation")

	// ErrNoSlotOffering is returned when slot operations run before a
	// meeting was proposed
	ErrNoSlotOffering = errors.New("no slot offering for this session")
)
