package nexmo

import "errors"

// The messages below are part of the adapter contract; callers match on them.
var (
	ErrTokenMissing       = errors.New("Token should exist.")
	ErrTokenSecretMissing = errors.New("TokenSecret should exist.")
	ErrNotSupported       = errors.New("Not supported.")
	ErrOnlyNote           = errors.New("Only Note is supported.")
	ErrNoListener         = errors.New("Webhook listener is not configured.")
	ErrNotConnected       = errors.New("Adapter is not connected.")
)
