package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// mockWorkoutsService implements workoutsService for tests.
type mockWorkoutsService struct {
	today      string
	names      []string
	namesErr   error
	picked     []string
	pickErr    error
	pickDay    string
	series     workouts.Series
	seriesErr  error
	history    *workouts.ExerciseHistory
	historyErr error
}

func (m *mockWorkoutsService) Today() string { return m.today }

func (m *mockWorkoutsService) WorkoutNames(ctx context.Context) ([]string, error) {
	return m.names, m.namesErr
}

func (m *mockWorkoutsService) PickWorkout(ctx context.Context, day, username string) ([]string, error) {
	m.pickDay = day
	return m.picked, m.pickErr
}

func (m *mockWorkoutsService) Points(ctx context.Context, tag, focus, username string) (workouts.Series, error) {
	return m.series, m.seriesErr
}

func (m *mockWorkoutsService) ExerciseHistory(ctx context.Context, workoutID, username string) (*workouts.ExerciseHistory, error) {
	return m.history, m.historyErr
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected 1 content, got %d", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return tc.Text
}

func TestHandler_ListWorkoutsTool(t *testing.T) {
	t.Run("returns_names", func(t *testing.T) {
		h := NewHandler(&mockWorkoutsService{names: []string{"Bench Press", "Squat"}})
		res, _, err := h.ListWorkoutsTool()(context.Background(), &mcp.CallToolRequest{}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.IsError {
			t.Fatalf("unexpected IsError")
		}
		var names []string
		if err := json.Unmarshal([]byte(resultText(t, res)), &names); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(names) != 2 || names[1] != "Squat" {
			t.Fatalf("names = %v", names)
		}
	})

	t.Run("returns_error_when_catalog_fails", func(t *testing.T) {
		h := NewHandler(&mockWorkoutsService{namesErr: errors.New("catalog gone")})
		res, _, err := h.ListWorkoutsTool()(context.Background(), &mcp.CallToolRequest{}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.IsError {
			t.Fatalf("expected IsError")
		}
		if got := resultText(t, res); got != "Error listing workouts: catalog gone" {
			t.Fatalf("content text = %q", got)
		}
	})
}

func TestHandler_PickWorkoutTool(t *testing.T) {
	t.Run("requires_username", func(t *testing.T) {
		h := NewHandler(&mockWorkoutsService{})
		res, _, _ := h.PickWorkoutTool()(context.Background(), &mcp.CallToolRequest{}, PickWorkoutInput{})
		if !res.IsError {
			t.Fatalf("expected IsError")
		}
	})

	t.Run("defaults_to_today", func(t *testing.T) {
		svc := &mockWorkoutsService{today: "Saturday", picked: []string{workouts.RestDay}}
		h := NewHandler(svc)
		res, _, err := h.PickWorkoutTool()(context.Background(), &mcp.CallToolRequest{}, PickWorkoutInput{Username: "ana"})
		if err != nil || res.IsError {
			t.Fatalf("unexpected failure: %v %v", err, res.Content)
		}
		if svc.pickDay != "Saturday" {
			t.Fatalf("day = %q", svc.pickDay)
		}
		if !strings.Contains(resultText(t, res), workouts.RestDay) {
			t.Fatalf("content text = %q", resultText(t, res))
		}
	})

	t.Run("explicit_day", func(t *testing.T) {
		svc := &mockWorkoutsService{today: "Saturday", picked: []string{"Squat"}}
		h := NewHandler(svc)
		_, _, _ = h.PickWorkoutTool()(context.Background(), &mcp.CallToolRequest{}, PickWorkoutInput{Username: "ana", Day: "Wednesday"})
		if svc.pickDay != "Wednesday" {
			t.Fatalf("day = %q", svc.pickDay)
		}
	})
}

func TestHandler_PointsTool(t *testing.T) {
	t.Run("missing_args", func(t *testing.T) {
		h := NewHandler(&mockWorkoutsService{})
		res, _, _ := h.PointsTool()(context.Background(), &mcp.CallToolRequest{}, PointsInput{Username: "ana"})
		if !res.IsError {
			t.Fatalf("expected IsError")
		}
	})

	t.Run("returns_series", func(t *testing.T) {
		h := NewHandler(&mockWorkoutsService{series: workouts.Series{
			Dates:  []string{"01/02/2024"},
			Values: []any{180},
		}})
		res, _, _ := h.PointsTool()(context.Background(), &mcp.CallToolRequest{}, PointsInput{Username: "ana", Tag: "weight", Focus: "weight"})
		if res.IsError {
			t.Fatalf("unexpected IsError")
		}
		if !strings.Contains(resultText(t, res), "01/02/2024") {
			t.Fatalf("content text = %q", resultText(t, res))
		}
	})

	t.Run("service_error", func(t *testing.T) {
		h := NewHandler(&mockWorkoutsService{seriesErr: workouts.ErrUnknownTag})
		res, _, _ := h.PointsTool()(context.Background(), &mcp.CallToolRequest{}, PointsInput{Username: "ana", Tag: "x", Focus: "weight"})
		if !res.IsError {
			t.Fatalf("expected IsError")
		}
	})
}

func TestHandler_ExerciseHistoryTool(t *testing.T) {
	h := NewHandler(&mockWorkoutsService{history: &workouts.ExerciseHistory{
		WorkoutID: "squat",
		Name:      "Squat",
		Days:      []workouts.DayStats{{Date: "01/02/2024", Entries: 2, AvgWeight: 100, AvgReps: 5, TotalSets: 6}},
	}})
	res, _, _ := h.ExerciseHistoryTool()(context.Background(), &mcp.CallToolRequest{}, ExerciseHistoryInput{Username: "ana", WorkoutID: "squat"})
	if res.IsError {
		t.Fatalf("unexpected IsError")
	}
	var history workouts.ExerciseHistory
	if err := json.Unmarshal([]byte(resultText(t, res)), &history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if history.Days[0].TotalSets != 6 {
		t.Fatalf("history = %+v", history)
	}

	res, _, _ = h.ExerciseHistoryTool()(context.Background(), &mcp.CallToolRequest{}, ExerciseHistoryInput{Username: "ana"})
	if !res.IsError {
		t.Fatalf("expected IsError")
	}
}
