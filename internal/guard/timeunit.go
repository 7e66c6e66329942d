// internal/guard/timeunit.go
package guard

import (
	"fmt"
	"strings"
	"time"
)

// TimeUnit names the unit of the tryTime and lockTime values of a LockSpec.
type TimeUnit string

const (
	Nanoseconds  TimeUnit = "NANOSECONDS"
	Microseconds TimeUnit = "MICROSECONDS"
	Milliseconds TimeUnit = "MILLISECONDS"
	Seconds      TimeUnit = "SECONDS"
	Minutes      TimeUnit = "MINUTES"
	Hours        TimeUnit = "HOURS"
	Days         TimeUnit = "DAYS"
)

var unitDurations = map[TimeUnit]time.Duration{
	Nanoseconds:  time.Nanosecond,
	Microseconds: time.Microsecond,
	Milliseconds: time.Millisecond,
	Seconds:      time.Second,
	Minutes:      time.Minute,
	Hours:        time.Hour,
	Days:         24 * time.Hour,
}

// ParseTimeUnit accepts a unit name in any case. An empty name is Seconds.
func ParseTimeUnit(s string) (TimeUnit, error) {
	if strings.TrimSpace(s) == "" {
		return Seconds, nil
	}
	u := TimeUnit(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := unitDurations[u]; !ok {
		return "", fmt.Errorf("unknown time unit %q", s)
	}
	return u, nil
}

// Duration converts n units into a time.Duration.
func (u TimeUnit) Duration(n int64) time.Duration {
	unit, ok := unitDurations[u]
	if !ok {
		unit = time.Second
	}
	return time.Duration(n) * unit
}
