package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DetectionInterval is the half-open range [Start, End) a pipeline runs over.
// Location drives boundary arithmetic such as day or month granularities.
type DetectionInterval struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
}

// NewDetectionInterval validates and builds an interval in the given location.
// A nil location means UTC.
func NewDetectionInterval(start, end time.Time, loc *time.Location) (DetectionInterval, error) {
	if loc == nil {
		loc = time.UTC
	}
	if end.Before(start) {
		return DetectionInterval{}, fmt.Errorf("interval end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return DetectionInterval{Start: start.In(loc), End: end.In(loc), Location: loc}, nil
}

// StartMillis returns the interval start as epoch milliseconds.
func (i DetectionInterval) StartMillis() int64 {
	return i.Start.UnixMilli()
}

// EndMillis returns the interval end as epoch milliseconds.
func (i DetectionInterval) EndMillis() int64 {
	return i.End.UnixMilli()
}

// Empty reports whether the interval covers no time.
func (i DetectionInterval) Empty() bool {
	return !i.End.After(i.Start)
}

// Contains reports whether the epoch millisecond timestamp falls in [Start, End).
func (i DetectionInterval) Contains(millis int64) bool {
	return millis >= i.StartMillis() && millis < i.EndMillis()
}

func (i DetectionInterval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}

// Period is a calendar-aware duration. Years, months and days are applied
// in the interval's location; the remainder is a fixed duration.
type Period struct {
	Years  int
	Months int
	Days   int
	Clock  time.Duration
}

var isoPeriod = regexp.MustCompile(`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParsePeriod accepts ISO-8601 durations such as PT1H, P1D or P1M, as well
// as Go duration strings such as 5m.
func ParsePeriod(value string) (Period, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Period{}, fmt.Errorf("empty period")
	}

	if strings.HasPrefix(strings.ToUpper(value), "P") {
		match := isoPeriod.FindStringSubmatch(strings.ToUpper(value))
		if match == nil || value == "P" || strings.HasSuffix(strings.ToUpper(value), "T") {
			return Period{}, fmt.Errorf("invalid ISO-8601 period %q", value)
		}
		num := func(s string) int {
			if s == "" {
				return 0
			}
			n, _ := strconv.Atoi(s)
			return n
		}
		p := Period{
			Years:  num(match[1]),
			Months: num(match[2]),
			Days:   num(match[3])*7 + num(match[4]),
		}
		p.Clock = time.Duration(num(match[5]))*time.Hour + time.Duration(num(match[6]))*time.Minute
		if match[7] != "" {
			secs, err := strconv.ParseFloat(match[7], 64)
			if err != nil {
				return Period{}, fmt.Errorf("invalid seconds in period %q: %w", value, err)
			}
			p.Clock += time.Duration(secs * float64(time.Second))
		}
		if p.IsZero() {
			return Period{}, fmt.Errorf("period %q is zero", value)
		}
		return p, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", value, err)
	}
	if d <= 0 {
		return Period{}, fmt.Errorf("period %q must be positive", value)
	}
	return Period{Clock: d}, nil
}

// MustParsePeriod is ParsePeriod that panics, for constants and tests.
func MustParsePeriod(value string) Period {
	p, err := ParsePeriod(value)
	if err != nil {
		panic(err)
	}
	return p
}

// IsZero reports whether the period adds no time.
func (p Period) IsZero() bool {
	return p.Years == 0 && p.Months == 0 && p.Days == 0 && p.Clock == 0
}

// AddTo returns t shifted forward by the period.
func (p Period) AddTo(t time.Time) time.Time {
	return t.AddDate(p.Years, p.Months, p.Days).Add(p.Clock)
}

// SubtractFrom returns t shifted backward by the period.
func (p Period) SubtractFrom(t time.Time) time.Time {
	return t.AddDate(-p.Years, -p.Months, -p.Days).Add(-p.Clock)
}

// AddMillis shifts an epoch millisecond timestamp using loc for calendar units.
func (p Period) AddMillis(millis int64, loc *time.Location) int64 {
	if loc == nil {
		loc = time.UTC
	}
	return p.AddTo(time.UnixMilli(millis).In(loc)).UnixMilli()
}

func (p Period) String() string {
	var b strings.Builder
	b.WriteString("P")
	if p.Years != 0 {
		fmt.Fprintf(&b, "%dY", p.Years)
	}
	if p.Months != 0 {
		fmt.Fprintf(&b, "%dM", p.Months)
	}
	if p.Days != 0 {
		fmt.Fprintf(&b, "%dD", p.Days)
	}
	if p.Clock != 0 {
		b.WriteString("T")
		rest := p.Clock
		if h := rest / time.Hour; h > 0 {
			fmt.Fprintf(&b, "%dH", h)
			rest -= h * time.Hour
		}
		if m := rest / time.Minute; m > 0 {
			fmt.Fprintf(&b, "%dM", m)
			rest -= m * time.Minute
		}
		if rest > 0 {
			b.WriteString(strconv.FormatFloat(rest.Seconds(), 'f', -1, 64))
			b.WriteString("S")
		}
	}
	if b.Len() == 1 {
		return "PT0S"
	}
	return b.String()
}

// Floor truncates t to the start of the period bucket containing it, in
// t's location. Calendar periods align to year, month or day starts; clock
// periods align to multiples of the duration since local midnight.
func (p Period) Floor(t time.Time) time.Time {
	loc := t.Location()
	switch {
	case p.Years > 0:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, loc)
	case p.Months > 0:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	case p.Days > 0:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	case p.Clock > 0:
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		since := t.Sub(midnight)
		return midnight.Add(since - since%p.Clock)
	default:
		return t
	}
}

// Ceil returns the smallest bucket start that is not before t.
func (p Period) Ceil(t time.Time) time.Time {
	floor := p.Floor(t)
	if floor.Equal(t) {
		return floor
	}
	return p.AddTo(floor)
}

// LastBefore returns the greatest bucket start strictly before t.
func (p Period) LastBefore(t time.Time) time.Time {
	floor := p.Floor(t)
	if floor.Before(t) {
		return floor
	}
	return p.SubtractFrom(floor)
}
