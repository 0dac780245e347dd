package schedule

import (
	"fmt"
	"strings"
)

// Frequency is how often a keyword is scanned automatically.
type Frequency string

// Supported frequencies.
const (
	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"
)

// patterns is the closed frequency table. Every pattern fires at midnight UTC;
// the per-keyword jitter spreads the actual fire times.
var patterns = map[Frequency]string{
	Daily:  "0 0 * * *",
	Weekly: "0 0 * * 0",
}

// Frequencies returns every supported frequency.
func Frequencies() []Frequency {
	return []Frequency{Daily, Weekly}
}

// ParseFrequency resolves a stored frequency value. Matching ignores case and
// surrounding spaces; anything outside the table yields ErrUnsupportedFrequency.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := patterns[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFrequency, s)
	}
	return f, nil
}

// Pattern returns the cron pattern of f.
func (f Frequency) Pattern() (string, error) {
	p, ok := patterns[f]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFrequency, string(f))
	}
	return p, nil
}

func (f Frequency) String() string { return string(f) }

// frequencyOf maps a cron pattern back to its frequency, or "" for foreign patterns.
func frequencyOf(pattern string) Frequency {
	for f, p := range patterns {
		if p == pattern {
			return f
		}
	}
	return ""
}
