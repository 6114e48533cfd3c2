package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(ctx context.Context, t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	req, err := newRequest(ctx, method, path, token, body)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusMultipleChoices {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *IntegrationTestSuite) TestWorkoutsCatalog() {
	t := s.T()
	ctx := context.Background()
	token := doLogin(ctx, t)

	assert.Equal(t, 5, s.countRows(`SELECT COUNT(*) FROM workout_type`))

	var names []string
	require.Equal(t, http.StatusOK, doJSON(ctx, t, http.MethodGet, "/workouts", token, nil, &names))
	assert.ElementsMatch(t, []string{"Bench Press", "Incline Press", "Cable Fly", "Deadlift", "Squat"}, names)

	var check workouts.CheckResponse
	require.Equal(t, http.StatusOK, doJSON(ctx, t, http.MethodGet, "/workouts/check?name="+url.QueryEscape("Squat"), token, nil, &check))
	assert.True(t, check.Exists)
	assert.Contains(t, check.Prompt, "dates, weight, reps, sets, notes")

	assert.Equal(t, http.StatusBadRequest, doJSON(ctx, t, http.MethodGet, "/workouts/check?name=Curl", token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, doJSON(ctx, t, http.MethodGet, "/workouts", "", nil, nil))
}

func (s *IntegrationTestSuite) TestToday() {
	t := s.T()
	ctx := context.Background()
	token := doLogin(ctx, t)

	t.Run("chest day", func(t *testing.T) {
		var today workouts.TodayResponse
		require.Equal(t, http.StatusOK, doJSON(ctx, t, http.MethodGet, "/workouts/today?day=Monday", token, nil, &today))
		assert.Equal(t, "Monday", today.Day)
		require.Len(t, today.Suggestions, 3)
		var names []string
		for _, suggestion := range today.Suggestions {
			names = append(names, suggestion.Name)
			assert.NotEmpty(t, suggestion.Prompt)
		}
		assert.ElementsMatch(t, []string{"Bench Press", "Incline Press", "Cable Fly"}, names)
	})

	t.Run("weekend", func(t *testing.T) {
		var today workouts.TodayResponse
		require.Equal(t, http.StatusOK, doJSON(ctx, t, http.MethodGet, "/workouts/today?day=Saturday", token, nil, &today))
		require.Len(t, today.Suggestions, 1)
		assert.Equal(t, workouts.RestDay, today.Suggestions[0].Name)
	})

	t.Run("empty group", func(t *testing.T) {
		// nothing in the catalog is in the Shoulders group
		assert.Equal(t, http.StatusBadRequest, doJSON(ctx, t, http.MethodGet, "/workouts/today?day=Thursday", token, nil, nil))
	})
}

func (s *IntegrationTestSuite) TestLogAndProgress() {
	t := s.T()
	ctx := context.Background()

	require.NoError(t, createAccount(ctx, "progress", "progresspass"))
	token := loginAs(ctx, t, "progress", "progresspass")

	t.Run("bad entry writes nothing", func(t *testing.T) {
		req, err := newRequest(ctx, http.MethodPost, "/workouts/log", token, workouts.LogRequest{
			Entries: map[string]string{
				"Bench Press": "1/8/2024, 80, 5, 3, ok",
				"Squat":       "1/8/2024, heavy, 5, 3, ok",
			},
		})
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var failure workouts.Failure
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&failure))
		require.NotNil(t, failure.Code)
		assert.Equal(t, 3, *failure.Code)

		assert.Equal(t, http.StatusBadRequest, doJSON(ctx, t, http.MethodGet, "/graph/bench_press/weight", token, nil, nil))
	})

	t.Run("log entries", func(t *testing.T) {
		status := doJSON(ctx, t, http.MethodPost, "/workouts/log", token, workouts.LogRequest{
			Entries: map[string]string{"Bench Press": "1/8/2024, 80, 5, 3, ok"},
		}, nil)
		require.Equal(t, http.StatusCreated, status)
		status = doJSON(ctx, t, http.MethodPost, "/workouts/log", token, workouts.LogRequest{
			Entries: map[string]string{"Bench Press": "1/15/2024, 90, 4, 3, harder"},
		}, nil)
		require.Equal(t, http.StatusCreated, status)
	})

	t.Run("points and graph", func(t *testing.T) {
		var series workouts.Series
		require.Equal(t, http.StatusOK, doJSON(ctx, t, http.MethodGet, "/points/bench_press/weight", token, nil, &series))
		assert.Equal(t, []string{"1/8/2024", "1/15/2024"}, series.Dates)
		require.Len(t, series.Values, 2)

		var graph workouts.Graph
		require.Equal(t, http.StatusOK, doJSON(ctx, t, http.MethodGet, "/graph/bench_press/weight", token, nil, &graph))
		require.Len(t, graph.Points, 2)
		assert.Equal(t, 80, graph.Points[0].Value)
		assert.Equal(t, 90, graph.Points[1].Value)
		assert.Equal(t, 75, graph.YMin)
		assert.Equal(t, 95, graph.YMax)
	})

	t.Run("goal", func(t *testing.T) {
		var goal workouts.GoalResponse
		require.Equal(t, http.StatusOK, doJSON(ctx, t, http.MethodPost, "/goal", token, workouts.GoalRequest{Name: "Bench Press", Focus: "reps"}, &goal))
		assert.Equal(t, "bench_press", goal.WorkoutID)
		require.NotNil(t, goal.Graph)
		assert.Len(t, goal.Graph.Points, 2)

		goal = workouts.GoalResponse{}
		require.Equal(t, http.StatusOK, doJSON(ctx, t, http.MethodPost, "/goal", token, workouts.GoalRequest{Name: "Deadlift"}, &goal))
		assert.True(t, goal.NoData)
		assert.Nil(t, goal.Graph)
	})

	t.Run("history", func(t *testing.T) {
		var history workouts.ExerciseHistory
		require.Equal(t, http.StatusOK, doJSON(ctx, t, http.MethodGet, "/history/bench_press", token, nil, &history))
		assert.Equal(t, "Bench Press", history.Name)
		require.Len(t, history.Days, 2)
		assert.Equal(t, 80, history.Days[0].AvgWeight)
		assert.Equal(t, 90, history.Days[1].AvgWeight)
	})

	t.Run("weigh in", func(t *testing.T) {
		var graph workouts.Graph
		require.Equal(t, http.StatusOK, doJSON(ctx, t, http.MethodPost, "/weight", token, workouts.WeightRequest{Weight: 82, Date: "1/9/2024"}, &graph))
		require.Len(t, graph.Points, 1)
		assert.Equal(t, 82, graph.Points[0].Value)

		assert.Equal(t, http.StatusBadRequest, doJSON(ctx, t, http.MethodPost, "/weight", token, workouts.WeightRequest{Weight: 82, Date: "yesterday"}, nil))
	})
}
