// Package timeutil converts service timestamps into the canonical zone used
// for checkpoint comparison and persistence.
package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the fixed on-disk checkpoint format. It carries no zone; values
// are always interpreted in the normalizer's Location.
const Layout = "2006-01-02 15:04:05"

// ErrNormalization is returned when a timestamp cannot be placed in the canonical zone
var ErrNormalization = errors.New("timestamp normalization failed")

// NormalizationError describes why a single timestamp was rejected
type NormalizationError struct {
	Value  time.Time
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrNormalization, e.Reason, e.Value.Format(time.RFC3339))
}

func (e *NormalizationError) Unwrap() error {
	return ErrNormalization
}

// Normalizer maps timestamps into a single zone at second precision
type Normalizer struct {
	Location *time.Location
}

// NewNormalizer returns a normalizer for the named zone (see LoadLocation)
func NewNormalizer(zone string) (*Normalizer, error) {
	loc, err := LoadLocation(zone)
	if err != nil {
		return nil, err
	}
	return &Normalizer{Location: loc}, nil
}

func (n *Normalizer) location() *time.Location {
	if n == nil || n.Location == nil {
		return time.UTC
	}
	return n.Location
}

// Normalize converts t to the canonical zone and truncates it to whole seconds.
// A zero time, or one whose year falls outside what Layout can represent,
// yields a *NormalizationError.
func (n *Normalizer) Normalize(t time.Time) (time.Time, error) {
	if t.IsZero() {
		return time.Time{}, &NormalizationError{Value: t, Reason: "missing creation time"}
	}

	local := t.In(n.location()).Truncate(time.Second)
	if y := local.Year(); y < 1 || y > 9999 {
		return time.Time{}, &NormalizationError{Value: t, Reason: fmt.Sprintf("year %d out of range", y)}
	}
	return local, nil
}

// Min returns the earliest representable checkpoint in the canonical zone
func (n *Normalizer) Min() time.Time {
	return time.Date(1, time.January, 1, 0, 0, 0, 0, n.location())
}

// Format renders t in the canonical zone using Layout
func (n *Normalizer) Format(t time.Time) string {
	return t.In(n.location()).Format(Layout)
}

// Parse reads a Layout value as a wall-clock time in the canonical zone
func (n *Normalizer) Parse(s string) (time.Time, error) {
	return time.ParseInLocation(Layout, strings.TrimSpace(s), n.location())
}

// serviceLayouts are tried in order by ParseServiceTime. The last one has no
// zone and is read as UTC.
var serviceLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

// ParseServiceTime parses a creation timestamp as returned by the photo
// service. It returns the zero time when raw is empty or unparsable so the
// caller can hand it to Normalize and get a NormalizationError.
func ParseServiceTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range serviceLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

// LoadLocation resolves a zone name. Empty and "Local" mean the host zone.
func LoadLocation(name string) (*time.Location, error) {
	switch name {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", name, err)
	}
	return loc, nil
}
