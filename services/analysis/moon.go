package analysis

import (
	"math"
	"time"
)

// Lunar phase labels stored in the Moon_Cycle column.
const (
	MoonNew          = "New Moon"
	MoonFirstQuarter = "First Quarter"
	MoonFull         = "Full Moon"
	MoonLastQuarter  = "Last Quarter"
)

// synodicMonth is the mean length of a lunation in days.
const synodicMonth = 29.530588853

// lunationEpoch is a reference new moon (2000-01-06 18:14 UTC).
var lunationEpoch = time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC)

// MoonPhaseAngle returns the lunar phase angle in degrees [0, 360) for the
// given instant, with 0 at new moon. The angle advances linearly through the
// mean synodic month, which is accurate to within a degree or two — plenty
// for the 90-degree bucketing below.
func MoonPhaseAngle(t time.Time) float64 {
	days := t.Sub(lunationEpoch).Hours() / 24
	angle := math.Mod(days/synodicMonth*360, 360)
	if angle < 0 {
		angle += 360
	}
	return angle
}

// MoonPhaseLabel buckets the phase angle into four equal 90-degree bands
// centered on the principal phases. Angles below 45 and at or above 315 both
// map to "New Moon" since the angle wraps modulo 360.
func MoonPhaseLabel(t time.Time) string {
	angle := MoonPhaseAngle(t)
	switch {
	case angle < 45:
		return MoonNew
	case angle < 135:
		return MoonFirstQuarter
	case angle < 225:
		return MoonFull
	case angle < 315:
		return MoonLastQuarter
	default:
		return MoonNew
	}
}
