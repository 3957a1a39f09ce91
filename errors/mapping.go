package errors

import "errors"

// Reason is the stable, client-facing identifier carried by error events.
// Internal error text never crosses the wire.
type Reason string

const (
	ReasonNotAuthenticated Reason = "not_authenticated"
	ReasonAlreadyAuthed    Reason = "already_authenticated"
	ReasonInvalidToken     Reason = "invalid_token"
	ReasonNotParticipant   Reason = "not_participant"
	ReasonRoomNotFound     Reason = "room_not_found"
	ReasonMessageNotFound  Reason = "message_not_found"
	ReasonInvalidPayload   Reason = "invalid_payload"
	ReasonPersistence      Reason = "persistence_failure"
)

// MapToReason converts an internal error into the reason sent to the caller.
// Unknown errors are reported as persistence failures: by the time an error
// reaches the hub boundary, everything else has already been classified.
func MapToReason(err error) Reason {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return ReasonNotAuthenticated
	case errors.Is(err, ErrAlreadyAuthed):
		return ReasonAlreadyAuthed
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUserNotFound):
		return ReasonInvalidToken
	case errors.Is(err, ErrNotParticipant):
		return ReasonNotParticipant
	case errors.Is(err, ErrRoomNotFound):
		return ReasonRoomNotFound
	case errors.Is(err, ErrMessageNotFound):
		return ReasonMessageNotFound
	case errors.Is(err, ErrInvalidPayload):
		return ReasonInvalidPayload
	default:
		return ReasonPersistence
	}
}
