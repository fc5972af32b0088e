package domain

import "errors"

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownType      = errors.New("unknown message type")
	ErrTargetNotFound   = errors.New("target user not found")
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendQueueFull    = errors.New("send queue full")
	ErrRateLimited      = errors.New("message rate limit exceeded")
)
