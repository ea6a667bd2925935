package utils

import (
	"time"
)

// Orchestrator constants
const (
	// DefaultVariationTimeout bounds a single AI variation call
	DefaultVariationTimeout = 5 * time.Second

	// DefaultSenderTimeout bounds a single outbound webhook relay call
	DefaultSenderTimeout = 30 * time.Second

	// MaxContactErrorLength truncates captured per-recipient error text
	MaxContactErrorLength = 500

	// RunLockTTL is how long a campaign run lock is held between renewals
	RunLockTTL = 2 * time.Minute
)
