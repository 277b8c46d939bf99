package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/gymdex/internal/models"
)

const dayLayout = "2006-01-02"

// UserStats returns aggregate training statistics for one user. A user
// with no sessions gets zeros, not an error.
func (s *Store) UserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	db, err := s.mgr.Handle()
	if err != nil {
		return nil, err
	}

	stats := &models.UserStats{}
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(volume), 0), COALESCE(AVG(duration_min), 0)
		 FROM training_sessions
		 WHERE user_id = ?`,
		userID).Scan(&stats.TotalSessions, &stats.TotalVolume, &stats.AverageDurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("querying session totals: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT DISTINCT date FROM training_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying session dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning session date: %w", err)
		}
		d, err := parseTime(raw)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.CurrentStreakDays = streakDays(dates, time.Now())
	return stats, nil
}

// streakDays counts consecutive calendar days with at least one session,
// walking backward one day at a time starting from now. The walk stops at
// the first gap, so a user with no session today has streak 0 no matter
// how long yesterday's run was.
func streakDays(dates []time.Time, now time.Time) int {
	trained := make(map[string]bool, len(dates))
	for _, d := range dates {
		trained[d.In(now.Location()).Format(dayLayout)] = true
	}

	streak := 0
	for day := now; trained[day.Format(dayLayout)]; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}
