package scheduling

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var hhmmPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// MinutesPerDay bounds every wall-clock offset.
const MinutesPerDay = 24 * 60

// ValidHHMM reports whether s is a 24-hour "H:MM" / "HH:MM" time.
func ValidHHMM(s string) bool {
	return hhmmPattern.MatchString(s)
}

// ToMinutes converts "HH:MM" into minutes since midnight.
func ToMinutes(hhmm string) (int, error) {
	if !hhmmPattern.MatchString(hhmm) {
		return 0, Errorf(ErrInvalidFormat, "%q is not a valid HH:MM time", hhmm)
	}
	h, m, _ := strings.Cut(hhmm, ":")
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(m)
	return hours*60 + minutes, nil
}

// ToHHMM formats minutes since midnight as zero-padded "HH:MM".
func ToHHMM(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Normalize zero-pads a valid time, e.g. "9:05" becomes "09:05".
func Normalize(hhmm string) (string, error) {
	m, err := ToMinutes(hhmm)
	if err != nil {
		return "", err
	}
	return ToHHMM(m), nil
}

// TimeRange is a half-open [Start, End) interval in minutes since midnight.
type TimeRange struct {
	Start int
	End   int
}

// ParseRange parses two "HH:MM" strings into a range with Start < End.
func ParseRange(start, end string) (TimeRange, error) {
	s, err := ToMinutes(start)
	if err != nil {
		return TimeRange{}, err
	}
	e, err := ToMinutes(end)
	if err != nil {
		return TimeRange{}, err
	}
	if s >= e {
		return TimeRange{}, Errorf(ErrInvalidRange, "start %s must be before end %s", start, end)
	}
	return TimeRange{Start: s, End: e}, nil
}

// Overlaps uses half-open semantics: touching ranges do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start < o.End && r.End > o.Start
}

// Contains reports whether o lies entirely within r.
func (r TimeRange) Contains(o TimeRange) bool {
	return o.Start >= r.Start && o.End <= r.End
}

func (r TimeRange) Duration() int {
	return r.End - r.Start
}

func (r TimeRange) String() string {
	return ToHHMM(r.Start) + "-" + ToHHMM(r.End)
}
