// Package scheduler drives campaign send runs with anti-ban pacing
package scheduler

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/velozap/disparador/models"
)

// Pacer computes the anti-ban timing decisions for one campaign run. It is
// safe for concurrent use; each running campaign shares one instance.
type Pacer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPacer creates a pacer seeded from the global source
func NewPacer() *Pacer {
	return &Pacer{rnd: rand.New(rand.NewSource(rand.Int63()))}
}

// NewPacerWithSeed creates a pacer with a fixed seed, for deterministic tests
func NewPacerWithSeed(seed int64) *Pacer {
	return &Pacer{rnd: rand.New(rand.NewSource(seed))}
}

// NextDelay returns the wait before the next send. With random variation
// enabled the base delay is drawn uniformly from [min, max] seconds and then
// perturbed by up to plus or minus ten percent, so even identical configs do
// not produce a detectable fixed cadence. With variation disabled the delay
// is the fixed midpoint of the range.
func (p *Pacer) NextDelay(cfg models.AntiBanConfig) time.Duration {
	minSec := float64(cfg.MinDelaySeconds)
	maxSec := float64(cfg.MaxDelaySeconds)
	if maxSec < minSec {
		maxSec = minSec
	}

	if !cfg.EnableRandomVariation {
		ms := math.Round((minSec + maxSec) / 2 * 1000)
		return time.Duration(ms) * time.Millisecond
	}

	p.mu.Lock()
	base := minSec + p.rnd.Float64()*(maxSec-minSec)
	variation := base * 0.2 * (p.rnd.Float64() - 0.5)
	p.mu.Unlock()

	ms := math.Round((base + variation) * 1000)
	return time.Duration(ms) * time.Millisecond
}

// ShouldPauseForBatch reports whether a batch pause is due after the given
// number of successful sends in this run. Only confirmed sends advance the
// batch counter; failed attempts never trigger a pause.
func ShouldPauseForBatch(successfulSends int, cfg models.AntiBanConfig) bool {
	if cfg.BatchSize <= 0 || successfulSends <= 0 {
		return false
	}
	return successfulSends%cfg.BatchSize == 0
}

// BatchPauseDuration returns the pause length between batches
func BatchPauseDuration(cfg models.AntiBanConfig) time.Duration {
	if cfg.BatchPauseMinutes <= 0 {
		return 0
	}
	return time.Duration(cfg.BatchPauseMinutes) * time.Minute
}

// RemainingDaily returns how many sends the daily quota still allows. The
// quota is a soft limit enforced at loop boundaries; a negative result is
// clamped to zero.
func RemainingDaily(cfg models.AntiBanConfig, sentToday int) int {
	if cfg.DailyLimit <= 0 {
		return math.MaxInt
	}
	remaining := cfg.DailyLimit - sentToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

// EstimateRemainingSeconds projects the remaining runtime: the average
// per-message delay for each pending recipient plus every batch pause the
// remaining sends will hit. completed is how many recipients were already
// attempted, which positions the pending sends within the current batch so
// a partially consumed batch still counts its upcoming pause.
func EstimateRemainingSeconds(cfg models.AntiBanConfig, completed, pending int) int64 {
	if pending <= 0 {
		return 0
	}
	avgDelay := float64(cfg.MinDelaySeconds+cfg.MaxDelaySeconds) / 2
	seconds := float64(pending) * avgDelay
	if cfg.BatchSize > 0 {
		if completed < 0 {
			completed = 0
		}
		pauses := (completed%cfg.BatchSize + pending) / cfg.BatchSize
		seconds += float64(pauses * cfg.BatchPauseMinutes * 60)
	}
	return int64(math.Round(seconds))
}
