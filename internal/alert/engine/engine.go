// Package engine holds the threshold evaluation rules shared by the
// polling pipeline and the metric simulator.
package engine

import (
	"strconv"
	"time"

	"github.com/spf13/cast"

	"github.com/beaconly/beacon/internal/alert/domain"
	"github.com/beaconly/beacon/internal/provider"
)

// Cooldown is the minimum gap between two notifications from the same
// alert config.
const Cooldown = time.Hour

// Sample is one observed metric reading.
type Sample struct {
	CollectorID string
	Value       *float64
	ValueText   *string
}

// ShouldFire decides whether a sample fires an alert config right now.
// A config in cooldown never fires unless skipCooldown is set (used by
// the simulator, which must always show the user the outcome).
func ShouldFire(now time.Time, cfg domain.AlertConfig, s Sample, skipCooldown bool) bool {
	if !cfg.Enabled {
		return false
	}
	if cfg.CollectorID != s.CollectorID {
		return false
	}
	if s.Value == nil && s.ValueText == nil {
		return false
	}
	if !skipCooldown && cfg.LastNotifiedAt != nil && now.Sub(*cfg.LastNotifiedAt) < Cooldown {
		return false
	}
	return CheckThreshold(cfg, s)
}

// CheckThreshold compares a sample against the configured threshold.
// When both thresholds are somehow present the numeric one wins. lt and
// gt order numbers; eq and status_is compare the rendered value and
// threshold as strings, whichever threshold kind was resolved. Unknown
// conditions never trigger.
func CheckThreshold(cfg domain.AlertConfig, s Sample) bool {
	switch cfg.Condition {
	case provider.ConditionLT:
		threshold, value, ok := numericPair(cfg, s)
		return ok && value < threshold
	case provider.ConditionGT:
		threshold, value, ok := numericPair(cfg, s)
		return ok && value > threshold
	case provider.ConditionEQ, provider.ConditionStatusIs:
		threshold := cfg.Threshold()
		return threshold != "" && sampleString(s) == threshold
	default:
		return false
	}
}

func numericPair(cfg domain.AlertConfig, s Sample) (threshold, value float64, ok bool) {
	if cfg.ThresholdNumeric == nil {
		return 0, 0, false
	}
	value, ok = numericValue(s)
	return *cfg.ThresholdNumeric, value, ok
}

// sampleString renders the reading the same way AlertConfig.Threshold
// renders the threshold, so equality checks compare like with like.
func sampleString(s Sample) string {
	if s.Value != nil {
		return strconv.FormatFloat(*s.Value, 'f', -1, 64)
	}
	if s.ValueText != nil {
		return *s.ValueText
	}
	return ""
}

// numericValue returns the sample's numeric reading, coercing a numeric
// looking text value when the collector only reports text.
func numericValue(s Sample) (float64, bool) {
	if s.Value != nil {
		return *s.Value, true
	}
	if s.ValueText != nil {
		value, err := cast.ToFloat64E(*s.ValueText)
		if err == nil {
			return value, true
		}
	}
	return 0, false
}
