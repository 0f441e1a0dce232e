package chart

import (
	"math"
	"strconv"
	"time"
)

// TimeScale maps [min, max] linearly onto [0, width], rounding to whole units.
type TimeScale struct {
	Min, Max time.Time
	Width    int
}

// Map returns the horizontal coordinate of t. A zero-length domain maps
// every instant to the middle of the range.
func (s TimeScale) Map(t time.Time) int {
	span := s.Max.Sub(s.Min)
	if span <= 0 {
		return s.Width / 2
	}
	return int(math.Round(float64(t.Sub(s.Min)) / float64(span) * float64(s.Width)))
}

// Ticks returns up to count instants inside the domain, aligned to the
// first interval that keeps their number within count.
func (s TimeScale) Ticks(count int) []time.Time {
	span := s.Max.Sub(s.Min)
	if span <= 0 {
		return []time.Time{s.Min}
	}

	step := timeIntervals[len(timeIntervals)-1]
	for _, iv := range timeIntervals {
		if span/iv < time.Duration(count) {
			step = iv
			break
		}
	}

	var ticks []time.Time
	for t := s.Min.Truncate(step); !t.After(s.Max); t = t.Add(step) {
		if !t.Before(s.Min) {
			ticks = append(ticks, t)
		}
	}
	return ticks
}

// Format picks a label layout matching the width of the domain.
func (s TimeScale) Format(t time.Time) string {
	span := s.Max.Sub(s.Min)
	switch {
	case span < 24*time.Hour:
		return t.Format("15:04")
	case span < 60*24*time.Hour:
		return t.Format("Jan 02")
	default:
		return t.Format("Jan 2006")
	}
}

var timeIntervals = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
	3 * time.Hour,
	6 * time.Hour,
	12 * time.Hour,
	24 * time.Hour,
	2 * 24 * time.Hour,
	7 * 24 * time.Hour,
	30 * 24 * time.Hour,
	90 * 24 * time.Hour,
	365 * 24 * time.Hour,
}

// LinearScale maps [0, Max] onto [Height, 0] so larger values plot higher.
type LinearScale struct {
	Max    float64
	Height int
}

// Map returns the vertical coordinate of v. A zero-height domain maps
// everything to the bottom.
func (s LinearScale) Map(v float64) int {
	if s.Max <= 0 {
		return s.Height
	}
	return int(math.Round(float64(s.Height) - v/s.Max*float64(s.Height)))
}

// Ticks returns multiples of a 1, 2 or 5 power-of-ten step from 0 to Max.
func (s LinearScale) Ticks(count int) []float64 {
	if s.Max <= 0 || count <= 0 {
		return []float64{0}
	}
	step := niceStep(s.Max, count)
	n := int(math.Floor(s.Max/step + 1e-9))
	ticks := make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		ticks = append(ticks, float64(i)*step)
	}
	return ticks
}

// Format renders v with as many decimals as the tick step needs.
func (s LinearScale) Format(v float64, count int) string {
	decimals := 0
	if s.Max > 0 {
		if step := niceStep(s.Max, count); step < 1 {
			decimals = int(math.Ceil(-math.Log10(step)))
		}
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func niceStep(span float64, count int) float64 {
	raw := span / float64(count)
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch norm := raw / mag; {
	case norm >= math.Sqrt(50):
		return 10 * mag
	case norm >= math.Sqrt(10):
		return 5 * mag
	case norm >= math.Sqrt(2):
		return 2 * mag
	default:
		return mag
	}
}
