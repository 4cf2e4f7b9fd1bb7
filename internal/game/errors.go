// internal/game/errors.go
package game

import "errors"

var (
	ErrUnknownMethod    = errors.New("no method found")
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidLineup    = errors.New("invalid lineup request")

	ErrRoomLocked   = errors.New("room is locked")
	ErrRoomFull     = errors.New("room is full")
	ErrRoomClosed   = errors.New("room is closed")
	ErrRoomNotFound = errors.New("room not found")
	ErrUserExists   = errors.New("user already in room")
	ErrUnknownUser  = errors.New("unknown user")
	ErrForbidden    = errors.New("not allowed to modify another user")
)
