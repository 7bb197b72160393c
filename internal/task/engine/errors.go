package engine

import "errors"

var (
	ErrNoFetcher     = errors.New("engine: fetcher is required")
	ErrNoNotifier    = errors.New("engine: notifier is required")
	ErrInvalidOffset = errors.New("engine: alert offset must be within 1..60")
	ErrDuplicate     = errors.New("engine: duplicate alert offset")
)
