package mcp

import (
	"crypto/subtle"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const SecretHeader = "X-MCP-Secret"

// NewServer builds an MCP server with the read-only workout tools. It is
// served over stdio by cmd/workouts_mcp and over HTTP at /mcp.
func NewServer(service workoutsService) *mcp.Server {
	h := NewHandler(service)
	s := mcp.NewServer(&mcp.Implementation{
		Name:    "gymtracker",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "list_workouts",
		Description: "Returns the display names of all workouts in the catalog.",
	}, h.ListWorkoutsTool())

	mcp.AddTool(s, &mcp.Tool{
		Name:        "pick_workout",
		Description: "Suggests up to three workouts for a weekday from the user's planner. Weekends and days without a planned group return [\"Rest day\"]. Args: username; optional: day (defaults to today).",
	}, h.PickWorkoutTool())

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_points",
		Description: "Returns the logged dates and values for a tag and focus. Tag is weight (body weight) or a workout id; focus is the value list (weight, reps, sets, notes).",
	}, h.PointsTool())

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_exercise_history",
		Description: "Returns per-day stats (entries, avg weight, avg reps, total sets) of a workout for a user. Args: username, workout_id.",
	}, h.ExerciseHistoryTool())

	return s
}

// NewHTTPHandler serves the MCP server over streamable HTTP. When secret is
// set, requests must carry it in the X-MCP-Secret header.
func NewHTTPHandler(server *mcp.Server, secret string) http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(secret)) != 1 {
			http.Error(w, "no can do", http.StatusUnauthorized)
			return
		}
		streamable.ServeHTTP(w, r)
	})
}
