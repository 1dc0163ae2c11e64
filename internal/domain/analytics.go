package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// StartDate returns the start formatted as YYYY-MM-DD.
func (r DateRange) StartDate() string { return r.Start.Format(dateLayout) }

// EndDate returns the end formatted as YYYY-MM-DD.
func (r DateRange) EndDate() string { return r.End.Format(dateLayout) }

// Days returns the number of calendar days covered by the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Previous returns the range of equal length immediately before r.
func (r DateRange) Previous() DateRange {
	days := r.Days()
	end := r.Start.AddDate(0, 0, -1)
	return DateRange{Start: end.AddDate(0, 0, -(days - 1)), End: end}
}

// ResolveDateRange turns a period token such as "7d" or "28d" (or explicit
// YYYY-MM-DD start/end dates) into a DateRange ending yesterday relative to now.
// Explicit dates win over the period token.
func ResolveDateRange(period, start, end string, now time.Time) (DateRange, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	if start != "" || end != "" {
		if start == "" || end == "" {
			return DateRange{}, fmt.Errorf("%w: both start and end dates are required", ErrInvalidRequest)
		}
		s, err := time.Parse(dateLayout, start)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: start date %q", ErrInvalidRequest, start)
		}
		e, err := time.Parse(dateLayout, end)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: end date %q", ErrInvalidRequest, end)
		}
		if e.Before(s) {
			return DateRange{}, fmt.Errorf("%w: end date before start date", ErrInvalidRequest)
		}
		return DateRange{Start: s, End: e}, nil
	}

	days := 28
	period = strings.ToLower(strings.TrimSpace(period))
	if period != "" {
		n, err := strconv.Atoi(strings.TrimSuffix(period, "d"))
		if err != nil || n <= 0 || n > 365 {
			return DateRange{}, fmt.Errorf("%w: unsupported period %q", ErrInvalidRequest, period)
		}
		days = n
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endDay := today.AddDate(0, 0, -1)
	return DateRange{Start: endDay.AddDate(0, 0, -(days - 1)), End: endDay}, nil
}

// OpportunityRow is a search-console row worth acting on.
type OpportunityRow struct {
	Query       string  `json:"query"`
	Page        string  `json:"page"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

// Opportunities groups the two SEO opportunity lists.
type Opportunities struct {
	LowCTR           []OpportunityRow `json:"lowCtr"`
	StrikingDistance []OpportunityRow `json:"strikingDistance"`
}

// DecayRow is a page whose traffic fell compared to the previous period.
type DecayRow struct {
	Page              string  `json:"page"`
	Title             string  `json:"title,omitempty"`
	CurrentPageviews  int64   `json:"currentPageviews"`
	PreviousPageviews int64   `json:"previousPageviews"`
	ChangePct         float64 `json:"changePct"`
}
