// Package stats derives a user's writing statistics from their session
// history. Everything here is pure: callers pass "now" and the timezone that
// defines calendar days.
package stats

import (
	"sort"
	"time"

	"museflow/internal/models"
)

// ChartWindowDays is how far back RecentActivity looks by default.
const ChartWindowDays = 30

// Compute aggregates sessions into UserStatistics. Averages cover completed
// sessions that carry feedback and stay nil when there are none.
func Compute(sessions []models.WritingSession, now time.Time, loc *time.Location) models.UserStatistics {
	st := models.UserStatistics{
		TotalSessions: len(sessions),
		ChartData:     RecentActivity(sessions, now, ChartWindowDays),
	}

	var sums [5]int
	rated := 0
	dates := make([]time.Time, 0, len(sessions))
	for _, s := range sessions {
		st.TotalWords += s.WordCount
		dates = append(dates, s.CreatedAt)

		last := s.CreatedAt
		if s.CompletedAt != nil && s.CompletedAt.After(last) {
			last = *s.CompletedAt
		}
		if s.UpdatedAt.After(last) {
			last = s.UpdatedAt
		}
		if st.LastActivityAt == nil || last.After(*st.LastActivityAt) {
			t := last
			st.LastActivityAt = &t
		}

		if s.Status != models.StatusCompleted || s.Feedback == nil {
			continue
		}
		for i, v := range s.Feedback.Scores.Values() {
			sums[i] += v
		}
		rated++
	}

	if rated > 0 {
		avg := func(i int) *float64 {
			v := float64(sums[i]) / float64(rated)
			return &v
		}
		st.AverageCreativity = avg(0)
		st.AverageEmotion = avg(1)
		st.AverageExpression = avg(2)
		st.AverageLogic = avg(3)
		st.AverageVocabulary = avg(4)
	}

	st.CurrentStreak = Streak(dates, now, loc)
	return st
}

// Streak counts consecutive calendar days, in loc, that contain at least one
// of dates. The run must end today or yesterday; otherwise it is 0. A run
// ending yesterday counts every adjacent day, so {yesterday, today-2} is 2.
func Streak(dates []time.Time, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	seen := make(map[civilDate]bool, len(dates))
	for _, d := range dates {
		seen[dateOf(d, loc)] = true
	}

	day := dateOf(now, loc)
	if !seen[day] {
		day = day.prev()
		if !seen[day] {
			return 0
		}
	}
	n := 0
	for seen[day] {
		n++
		day = day.prev()
	}
	return n
}

// RecentActivity returns the sessions created within the last days days,
// oldest first, as chart points.
func RecentActivity(sessions []models.WritingSession, now time.Time, days int) []models.ChartPoint {
	cutoff := now.AddDate(0, 0, -days)
	points := make([]models.ChartPoint, 0)
	for _, s := range sessions {
		if s.CreatedAt.Before(cutoff) {
			continue
		}
		points = append(points, models.ChartPoint{
			CreatedAt: s.CreatedAt,
			WordCount: s.WordCount,
			Status:    s.Status,
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].CreatedAt.Before(points[j].CreatedAt)
	})
	return points
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time, loc *time.Location) civilDate {
	y, m, d := t.In(loc).Date()
	return civilDate{y, m, d}
}

// prev steps back one calendar day. Noon avoids DST edges.
func (c civilDate) prev() civilDate {
	t := time.Date(c.year, c.month, c.day, 12, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return civilDate{t.Year(), t.Month(), t.Day()}
}
