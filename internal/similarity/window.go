package similarity

import "time"

const (
	breakingMaxAge = 24 * time.Hour
	recentMaxAge   = 7 * 24 * time.Hour

	breakingHalfWindow = 48 * time.Hour
	recentHalfWindow   = 7 * 24 * time.Hour
	oldHalfWindow      = 14 * 24 * time.Hour
)

// TimeWindow is a symmetric search window around an article's publish time.
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// WindowFor maps an article's age at the reference time to a search window
// centered on its publish time: breaking (<24h) gets ±48h, recent (<7d)
// gets ±7d, anything older gets ±14d.
func WindowFor(publishedAt, referenceTime time.Time) TimeWindow {
	half := halfWindowForAge(referenceTime.Sub(publishedAt))
	return TimeWindow{
		From: publishedAt.Add(-half),
		To:   publishedAt.Add(half),
	}
}

// IsWithinWindow reports whether a candidate publish date falls inside the
// source article's own window. The window is derived from the source's age,
// never the candidate's.
func IsWithinWindow(sourceDate, candidateDate, referenceTime time.Time) bool {
	window := WindowFor(sourceDate, referenceTime)
	return !candidateDate.Before(window.From) && !candidateDate.After(window.To)
}

func halfWindowForAge(age time.Duration) time.Duration {
	if age < 0 {
		age = -age
	}
	switch {
	case age < breakingMaxAge:
		return breakingHalfWindow
	case age < recentMaxAge:
		return recentHalfWindow
	default:
		return oldHalfWindow
	}
}
