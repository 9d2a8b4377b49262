package provider

import "errors"

var (
	ErrUnknownProvider = errors.New("unknown_provider")
)
