package flags

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("flag not found")

// Flag is one operator-controlled runtime toggle.
type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Toggle keys the pipeline consults.
const (
	// KeyHighCongestion shifts priority fee selection to a higher percentile.
	KeyHighCongestion = "network.high_congestion"
	// KeyExecutionPaused stops new executions while leaving scanning alive.
	KeyExecutionPaused = "execution.paused"
)
