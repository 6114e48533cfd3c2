package mcp

import (
	"context"
	"encoding/json"

	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// workoutsService is the read-only part of the workouts service the tools use.
type workoutsService interface {
	Today() string
	WorkoutNames(ctx context.Context) ([]string, error)
	PickWorkout(ctx context.Context, day, username string) ([]string, error)
	Points(ctx context.Context, tag, focus, username string) (workouts.Series, error)
	ExerciseHistory(ctx context.Context, workoutID, username string) (*workouts.ExerciseHistory, error)
}

// Handler turns MCP tool calls into workouts service calls.
type Handler struct {
	service workoutsService
}

func NewHandler(service workoutsService) *Handler {
	return &Handler{
		service: service,
	}
}

func errorResult(prefix string, err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: prefix + ": " + err.Error()}},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Error encoding response", err)
	}
	return textResult(string(raw))
}

// ListWorkoutsTool returns the MCP tool handler for list_workouts.
func (h *Handler) ListWorkoutsTool() func(context.Context, *mcp.CallToolRequest, any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
		names, err := h.service.WorkoutNames(ctx)
		if err != nil {
			return errorResult("Error listing workouts", err), nil, nil
		}
		return jsonResult(names), nil, nil
	}
}

// PickWorkoutInput is the input for pick_workout.
type PickWorkoutInput struct {
	Username string `json:"username" jsonschema:"The user whose planner is used"`
	Day      string `json:"day,omitempty" jsonschema:"Weekday name (e.g. Monday), defaults to today"`
}

// PickWorkoutTool returns the MCP tool handler for pick_workout.
func (h *Handler) PickWorkoutTool() func(context.Context, *mcp.CallToolRequest, PickWorkoutInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in PickWorkoutInput) (*mcp.CallToolResult, any, error) {
		if in.Username == "" {
			return textErrorResult("username is required"), nil, nil
		}
		day := in.Day
		if day == "" {
			day = h.service.Today()
		}
		names, err := h.service.PickWorkout(ctx, day, in.Username)
		if err != nil {
			return errorResult("Error picking workout", err), nil, nil
		}
		return jsonResult(map[string]any{"day": day, "workouts": names}), nil, nil
	}
}

// PointsInput is the input for get_points.
type PointsInput struct {
	Username string `json:"username" jsonschema:"The user whose log is read"`
	Tag      string `json:"tag" jsonschema:"weight for body weight, or a workout id (e.g. bench_press)"`
	Focus    string `json:"focus" jsonschema:"The value list to return: weight, reps, sets or notes"`
}

// PointsTool returns the MCP tool handler for get_points.
func (h *Handler) PointsTool() func(context.Context, *mcp.CallToolRequest, PointsInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in PointsInput) (*mcp.CallToolResult, any, error) {
		if in.Username == "" || in.Tag == "" || in.Focus == "" {
			return textErrorResult("username, tag and focus are required"), nil, nil
		}
		series, err := h.service.Points(ctx, in.Tag, in.Focus, in.Username)
		if err != nil {
			return errorResult("Error fetching points", err), nil, nil
		}
		return jsonResult(series), nil, nil
	}
}

// ExerciseHistoryInput is the input for get_exercise_history.
type ExerciseHistoryInput struct {
	Username  string `json:"username" jsonschema:"The user whose log is read"`
	WorkoutID string `json:"workout_id" jsonschema:"Workout id (e.g. bench_press)"`
}

// ExerciseHistoryTool returns the MCP tool handler for get_exercise_history.
func (h *Handler) ExerciseHistoryTool() func(context.Context, *mcp.CallToolRequest, ExerciseHistoryInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in ExerciseHistoryInput) (*mcp.CallToolResult, any, error) {
		if in.Username == "" || in.WorkoutID == "" {
			return textErrorResult("username and workout_id are required"), nil, nil
		}
		history, err := h.service.ExerciseHistory(ctx, in.WorkoutID, in.Username)
		if err != nil {
			return errorResult("Error fetching exercise history", err), nil, nil
		}
		return jsonResult(history), nil, nil
	}
}

func textErrorResult(text string) *mcp.CallToolResult {
	res := textResult(text)
	res.IsError = true
	return res
}
