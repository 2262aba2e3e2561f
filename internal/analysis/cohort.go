package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"strava-effort/internal/store"
)

// Period selects the comparison cohort
type Period string

const (
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// DetailFetcher loads the detail, streams included, of a cached activity
type DetailFetcher func(ctx context.Context, id int64) (*store.ActivityDetail, error)

// CohortEntry is one scored activity in a comparison
type CohortEntry struct {
	ActivityID     int64
	Name           string
	StartDateLocal time.Time
	Effort         Effort
	IsSubject      bool
}

// CohortComparison ranks an activity's effort against its cohort
type CohortComparison struct {
	Period  Period
	Entries []CohortEntry // chronological
	// Rank is the subject's 1-based position when ordered by effort ascending.
	Rank  int
	Total int
	// Percentile is nil when the subject is the only member.
	Percentile *int
	Skipped    int
}

func (p Period) contains(subject, candidate time.Time) bool {
	switch p {
	case PeriodYear:
		return subject.Year() == candidate.Year()
	default:
		return subject.Year() == candidate.Year() && subject.Month() == candidate.Month()
	}
}

// CompareCohort scores subject against the cached activities that share its
// calendar month or year. Candidates whose detail or effort cannot be loaded
// are skipped. It returns nil when the subject itself has no effort score.
func CompareCohort(ctx context.Context, subject *store.ActivityDetail, all []store.Activity, period Period, athlete *store.Athlete, fetch DetailFetcher) (*CohortComparison, error) {
	if period != PeriodMonth && period != PeriodYear {
		return nil, fmt.Errorf("unknown comparison period %q", period)
	}

	subjectEffort := RelativeEffort(subject, athlete)
	if subjectEffort == nil {
		return nil, nil
	}

	cmp := &CohortComparison{Period: period}
	for _, a := range all {
		if a.ID == subject.ID || !period.contains(subject.StartDateLocal, a.StartDateLocal) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		detail, err := fetch(ctx, a.ID)
		if err != nil || !detail.Complete() {
			cmp.Skipped++
			continue
		}
		effort := RelativeEffort(detail, athlete)
		if effort == nil {
			cmp.Skipped++
			continue
		}
		cmp.Entries = append(cmp.Entries, CohortEntry{
			ActivityID:     a.ID,
			Name:           a.Name,
			StartDateLocal: a.StartDateLocal,
			Effort:         *effort,
		})
	}

	cmp.Entries = append(cmp.Entries, CohortEntry{
		ActivityID:     subject.ID,
		Name:           subject.Name,
		StartDateLocal: subject.StartDateLocal,
		Effort:         *subjectEffort,
		IsSubject:      true,
	})

	sort.SliceStable(cmp.Entries, func(i, j int) bool {
		return cmp.Entries[i].StartDateLocal.Before(cmp.Entries[j].StartDateLocal)
	})

	byEffort := make([]CohortEntry, len(cmp.Entries))
	copy(byEffort, cmp.Entries)
	sort.SliceStable(byEffort, func(i, j int) bool {
		return byEffort[i].Effort.TotalEffortPoints < byEffort[j].Effort.TotalEffortPoints
	})
	for i, e := range byEffort {
		if e.IsSubject {
			cmp.Rank = i + 1
			break
		}
	}

	cmp.Total = len(cmp.Entries)
	if cmp.Total > 1 {
		p := int(math.Round(float64(cmp.Total-cmp.Rank) / float64(cmp.Total-1) * 100))
		cmp.Percentile = &p
	}
	return cmp, nil
}
