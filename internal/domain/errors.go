package domain

import "errors"

var ErrEmptyPayload = errors.New("event payload is empty")
