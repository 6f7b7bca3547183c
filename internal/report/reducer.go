package report

import (
	"sort"
	"time"
)

// Window is an inclusive calendar-date window. The upper bound is stored
// as start-of-next-day exclusive so that every timestamp inside the "to"
// day is included; a bound of `to` at midnight would silently drop the
// final day's bills.
type Window struct {
	Start time.Time
	End   time.Time
	loc   *time.Location
}

// NewWindow builds a window spanning the local calendar days of from
// through to, inclusive on both ends.
func NewWindow(from time.Time, to time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	start := startOfDay(from.In(loc))
	end := startOfDay(to.In(loc)).AddDate(0, 0, 1)
	return Window{Start: start, End: end, loc: loc}
}

// ParseWindow parses "2006-01-02" from/to strings into a Window.
func ParseWindow(from string, to string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	f, err := time.ParseInLocation("2006-01-02", from, loc)
	if err != nil {
		return Window{}, err
	}
	t, err := time.ParseInLocation("2006-01-02", to, loc)
	if err != nil {
		return Window{}, err
	}
	return NewWindow(f, t, loc), nil
}

// MonthWindow parses "2006-01" into a window covering the whole calendar
// month; no 31st-of-February style guesswork, AddDate handles month length.
func MonthWindow(month string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	first, err := time.ParseInLocation("2006-01", month, loc)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: first, End: first.AddDate(0, 1, 0), loc: loc}, nil
}

func (w Window) Contains(ts time.Time) bool {
	ts = ts.In(w.location())
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// DateKey truncates a timestamp to its local calendar date. Truncation is
// done through the time API, not string slicing, so timezone-qualified
// timestamps group correctly.
func (w Window) DateKey(ts time.Time) string {
	return ts.In(w.location()).Format("2006-01-02")
}

func (w Window) location() *time.Location {
	if w.loc == nil {
		return time.Local
	}
	return w.loc
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Field names one summed accumulator over the record type.
type Field[T any] struct {
	Name  string
	Value func(T) float64
}

// Group is one output row of Reduce: the grouping key, the summed fields
// and the number of records folded in.
type Group struct {
	Key   string
	Count int
	Sums  map[string]float64
}

// Reduce folds records inside the window into one Group per distinct key,
// preserving first-seen key order. Records with a zero timestamp are
// malformed rows from a partial sync: they are skipped and counted, never
// fatal. Derived per-row figures (averages, percentages) must be computed
// by the caller from the finished sums, not incrementally.
func Reduce[T any](records []T, w Window, at func(T) time.Time, key func(T) string, fields []Field[T]) ([]Group, int) {
	groups := make([]Group, 0, 16)
	index := make(map[string]int, 16)
	skipped := 0

	for _, rec := range records {
		ts := at(rec)
		if ts.IsZero() {
			skipped++
			continue
		}
		if !w.Contains(ts) {
			continue
		}

		k := key(rec)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k, Sums: make(map[string]float64, len(fields))})
		}
		groups[i].Count++
		for _, f := range fields {
			groups[i].Sums[f.Name] += f.Value(rec)
		}
	}

	return groups, skipped
}

// SortGroups orders groups by the given summed field, descending.
func SortGroups(groups []Group, field string) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Sums[field] > groups[j].Sums[field]
	})
}

// safeDiv returns num/den, or zero for a zero denominator. Partial-period
// reports routinely divide by counts that may legitimately be zero.
func safeDiv(num float64, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
