package workouts

import (
	"context"
	"fmt"
	"sort"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// ExerciseHistory is the per day summary of one workout's log.
type ExerciseHistory struct {
	WorkoutID string     `json:"workoutId"`
	Name      string     `json:"name"`
	Days      []DayStats `json:"days"`
}

type DayStats struct {
	Date      string `json:"date"`
	Entries   int    `json:"entries"`
	AvgWeight int    `json:"avgWeight"`
	AvgReps   int    `json:"avgReps"`
	TotalSets int    `json:"totalSets"`
}

type dayTotals struct {
	entries, weight, reps, sets int
}

// ExerciseHistory groups a workout's entries by date and averages them.
// Entries with non numeric values are skipped.
func (s *Service) ExerciseHistory(ctx context.Context, workoutID, username string) (_ *ExerciseHistory, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.workouts.exerciseHistory")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", workoutID))

	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	workout, ok := catalog[workoutID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkoutNotFound, workoutID)
	}

	record, err := s.store.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	history := &ExerciseHistory{
		WorkoutID: workoutID,
		Name:      workout.Name,
		Days:      []DayStats{},
	}

	l, ok := record.Exercises[workoutID]
	if !ok {
		return history, nil
	}

	dates := l["dates"]
	n := min(len(dates), len(l["weight"]), len(l["reps"]), len(l["sets"]))

	totals := make(map[string]*dayTotals)
	for i := 0; i < n; i++ {
		date, err := ParseDate(fmt.Sprint(dates[i]))
		if err != nil {
			continue
		}
		weight, errW := toInt(l["weight"][i])
		reps, errR := toInt(l["reps"][i])
		sets, errS := toInt(l["sets"][i])
		if errW != nil || errR != nil || errS != nil {
			continue
		}

		key := FormatDate(date)
		t, ok := totals[key]
		if !ok {
			t = &dayTotals{}
			totals[key] = t
		}
		t.entries++
		t.weight += weight
		t.reps += reps
		t.sets += sets
	}

	for date, t := range totals {
		history.Days = append(history.Days, DayStats{
			Date:      date,
			Entries:   t.entries,
			AvgWeight: t.weight / t.entries,
			AvgReps:   t.reps / t.entries,
			TotalSets: t.sets,
		})
	}
	sort.Slice(history.Days, func(i, j int) bool {
		di, _ := ParseDate(history.Days[i].Date)
		dj, _ := ParseDate(history.Days[j].Date)
		return di.Before(dj)
	})

	return history, nil
}
