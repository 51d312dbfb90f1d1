package main

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidServeMode = errors.New("invalid serve mode")

// ServeMode selects which route groups a process exposes.
type ServeMode string

const (
	ServeModeMonolith ServeMode = "monolith"
	ServeModeEmbed    ServeMode = "embed"
	ServeModeAPI      ServeMode = "api"
)

func ParseServeMode(rawInput string) (ServeMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(rawInput))
	if normalized == "" {
		return ServeModeMonolith, nil
	}

	mode := ServeMode(normalized)
	switch mode {
	case ServeModeMonolith, ServeModeEmbed, ServeModeAPI:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidServeMode, rawInput)
	}
}

// ServesEmbed reports whether widget scripts, previews and public form submissions are served.
func (mode ServeMode) ServesEmbed() bool {
	return mode == ServeModeMonolith || mode == ServeModeEmbed
}

// ServesAPI reports whether the key-authenticated API and payment webhooks are served.
func (mode ServeMode) ServesAPI() bool {
	return mode == ServeModeMonolith || mode == ServeModeAPI
}
