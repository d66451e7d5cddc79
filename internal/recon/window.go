package recon

import (
	"time"
)

// Window selects one of the two history query shapes the feed
// supports. The shapes are mutually exclusive request variants, so
// they are modeled as a sealed sum type rather than optional
// parameters with implicit precedence.
type Window interface {
	isWindow()
}

// AbsoluteWindow requests history between two explicit instants at a
// given bucket size in minutes.
type AbsoluteWindow struct {
	Start         time.Time
	End           time.Time
	BucketMinutes int
}

// RelativeWindow requests history for a lookback duration ending now,
// at a given bucket size in minutes.
type RelativeWindow struct {
	Lookback      time.Duration
	BucketMinutes int
}

func (AbsoluteWindow) isWindow() {}
func (RelativeWindow) isWindow() {}

// The feed only aggregates at a fixed set of bucket sizes.
const (
	bucketMinute  = 1
	bucket5Min    = 5
	bucket15Min   = 15
	bucketHour    = 60
	bucketDay     = 1440
	bucketDefault = bucket5Min
)

// SnapBucket maps a requested bucket size in minutes onto the feed's
// supported vocabulary: 1, 5, 15, 60, 1440. A 30-minute request is
// served at the hour bucket, anything at or above a day at the day
// bucket, and every other unsupported size falls back to 5 minutes.
func SnapBucket(minutes int) int {
	switch {
	case minutes == bucketMinute:
		return bucketMinute
	case minutes == bucket5Min:
		return bucket5Min
	case minutes == bucket15Min:
		return bucket15Min
	case minutes == 30 || minutes == bucketHour:
		return bucketHour
	case minutes >= bucketDay:
		return bucketDay
	default:
		return bucketDefault
	}
}

// Named relative intervals the feed understands, ascending.
var namedIntervals = []struct {
	name string
	span time.Duration
}{
	{"1h", time.Hour},
	{"6h", 6 * time.Hour},
	{"1d", 24 * time.Hour},
	{"1w", 7 * 24 * time.Hour},
}

// IntervalMax is the feed's unbounded relative interval.
const IntervalMax = "max"

// IntervalFor returns the smallest named interval covering the
// lookback, or the unbounded interval when none does.
func IntervalFor(lookback time.Duration) string {
	for _, iv := range namedIntervals {
		if iv.span >= lookback {
			return iv.name
		}
	}
	return IntervalMax
}
