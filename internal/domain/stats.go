package domain

import (
	"strconv"
	"time"
)

var weekdayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// TimeSeries is a fixed-shape histogram of drink counts. Labels, Coffee and
// Mate always have the same length, even when no rows matched, so chart
// rendering can assume the shape. MaxValue is the largest single bucket count
// across both series, never below 1 (callers scale charts by it).
type TimeSeries struct {
	Labels   []string `json:"labels"`
	Coffee   []int    `json:"coffee"`
	Mate     []int    `json:"mate"`
	MaxValue int      `json:"maxvalue"`
}

// Set records a count for a drink type at the given bucket and keeps MaxValue
// current. Out-of-range buckets are ignored.
func (ts *TimeSeries) Set(ctype DrinkType, bucket, value int) {
	if bucket < 0 || bucket >= len(ts.Labels) {
		return
	}
	switch ctype {
	case DrinkCoffee:
		ts.Coffee[bucket] = value
	case DrinkMate:
		ts.Mate[bucket] = value
	default:
		return
	}
	if value > ts.MaxValue {
		ts.MaxValue = value
	}
}

func newTimeSeries(labels []string) TimeSeries {
	return TimeSeries{
		Labels:   labels,
		Coffee:   make([]int, len(labels)),
		Mate:     make([]int, len(labels)),
		MaxValue: 1,
	}
}

// NewHourlySeries returns a zero-filled 24-bucket hour-of-day series.
func NewHourlySeries() TimeSeries {
	labels := make([]string, 24)
	for i := range labels {
		labels[i] = strconv.Itoa(i)
	}
	return newTimeSeries(labels)
}

// NewDailySeries returns a zero-filled day-of-month series sized to the month
// of the reference time.
func NewDailySeries(ref time.Time) TimeSeries {
	days := daysInMonth(ref)
	labels := make([]string, days)
	for i := range labels {
		labels[i] = strconv.Itoa(i + 1)
	}
	return newTimeSeries(labels)
}

// NewMonthlySeries returns a zero-filled 12-bucket month-of-year series.
func NewMonthlySeries() TimeSeries {
	labels := make([]string, 12)
	for i := range labels {
		labels[i] = strconv.Itoa(i + 1)
	}
	return newTimeSeries(labels)
}

// NewWeekdaySeries returns a zero-filled 7-bucket series, Monday first.
func NewWeekdaySeries() TimeSeries {
	labels := make([]string, len(weekdayLabels))
	copy(labels, weekdayLabels)
	return newTimeSeries(labels)
}

func daysInMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}

type TotalCounts struct {
	Coffee int `json:"coffee"`
	Mate   int `json:"mate"`
}

// TopConsumer is one leaderboard row. Count is the raw number of drinks in
// the ranked set; Average is drinks per day where the ranking uses one.
type TopConsumer struct {
	User    User
	Count   int
	Average float64
}

// UserCard is the public slice of a user shown on explore pages and in the
// v1 random-users response.
type UserCard struct {
	Username   string
	Name       string
	Location   string
	DateJoined time.Time
	Coffees    int
	Mate       int
}
