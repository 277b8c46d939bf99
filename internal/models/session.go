package models

import (
	"fmt"
	"strconv"
	"time"
)

// TrainingSession is one completed workout with its exercises and sets.
// IDs are caller-generated and opaque; Date is the instant the workout
// happened, CreatedAt when the record was saved.
type TrainingSession struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId"`
	RoutineName     string            `json:"routineName"`
	UserName        string            `json:"userName"`
	Date            time.Time         `json:"date"`
	DurationMinutes int               `json:"duration"`
	Volume          float64           `json:"volume"`
	Description     string            `json:"description,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	Exercises       []SessionExercise `json:"exercises"`
}

// SessionExercise is one catalog exercise performed within a session.
// ExerciseName is a snapshot taken at save time and is not re-synced if
// the catalog later renames the exercise.
type SessionExercise struct {
	ExerciseID   string        `json:"exerciseId"`
	ExerciseName string        `json:"exerciseName"`
	MuscleGroup  string        `json:"muscleGroup,omitempty"`
	Equipment    string        `json:"equipment,omitempty"`
	Sets         []ExerciseSet `json:"sets"`
}

// ExerciseSet is one repetition group. Weight and Reps are free-form text
// because the UI may leave them blank or non-numeric.
type ExerciseSet struct {
	ID           string `json:"id"`
	Weight       string `json:"weight"`
	Reps         string `json:"reps"`
	Completed    bool   `json:"completed"`
	IsFailureSet bool   `json:"isFailureSet"`
}

// ExerciseRowID synthesizes the stored identity of an exercise within a
// session. Two occurrences of the same catalog exercise in one session
// collide on this id; saving such a session fails as a whole.
func ExerciseRowID(sessionID, exerciseID string) string {
	return fmt.Sprintf("%s_%s", sessionID, exerciseID)
}

// ComputeVolume returns the total weight lifted across completed sets:
// sum of weight × reps where both parse as numbers. Incomplete sets and
// sets with blank or non-numeric entries contribute nothing.
func ComputeVolume(exercises []SessionExercise) float64 {
	var total float64
	for _, ex := range exercises {
		for _, set := range ex.Sets {
			if !set.Completed {
				continue
			}
			weight, err := strconv.ParseFloat(set.Weight, 64)
			if err != nil {
				continue
			}
			reps, err := strconv.ParseFloat(set.Reps, 64)
			if err != nil {
				continue
			}
			total += weight * reps
		}
	}
	return total
}

// UserStats is the aggregate view of one user's training history.
type UserStats struct {
	TotalSessions          int     `json:"total_sessions"`
	TotalVolume            float64 `json:"total_volume"`
	AverageDurationMinutes float64 `json:"average_duration_minutes"`
	CurrentStreakDays      int     `json:"current_streak_days"`
}
