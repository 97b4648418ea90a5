package domain

import "errors"

var (
	ErrNameConflict     = errors.New("display name already taken in room")
	ErrUnknownTarget    = errors.New("signal target is not connected")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotJoined        = errors.New("connection has not joined a room")
	ErrAlreadyJoined    = errors.New("connection already joined a room")
	ErrConnectionClosed = errors.New("connection closed")
	ErrRoomNotFound     = errors.New("room not found")
	ErrServiceStopped   = errors.New("room service stopped")
	ErrEmptyDisplayName = errors.New("display name is required")
)
