package protocol

import "errors"

var (
	ErrEmptyPayload = errors.New("empty payload")
	ErrMissingType  = errors.New("message has no type")
)

// Rejection codes.
const (
	CodeAccessDenied = "AccessDenied"
	CodeBadRequest   = "BadRequest"
	CodeNotJoined    = "NotJoined"
)
