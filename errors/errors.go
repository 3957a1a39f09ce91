package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrNotAuthenticated   = fmt.Errorf("connection is not authenticated")
	ErrAlreadyAuthed      = fmt.Errorf("connection is already authenticated")
	ErrNotParticipant     = fmt.Errorf("user is not a participant of the room")
	ErrRoomNotFound       = fmt.Errorf("room not found")
	ErrMessageNotFound    = fmt.Errorf("message not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrInvalidPayload     = fmt.Errorf("invalid payload")
	ErrDirectRoomSize     = fmt.Errorf("a direct room must have exactly two participants")
)
