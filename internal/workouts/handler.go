package workouts

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=workouts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type goalSetter interface {
	SetGoal(ctx context.Context, token, goal string) error
}

type Suggestion struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt,omitempty"`
}

type TodayResponse struct {
	Day         string       `json:"day"`
	Suggestions []Suggestion `json:"suggestions"`
}

type CheckResponse struct {
	Exists bool   `json:"exists"`
	Prompt string `json:"prompt,omitempty"`
}

type LogRequest struct {
	// Entries maps a workout display name to its raw "date, weight, reps, sets, notes" line.
	Entries map[string]string `json:"entries"`
}

type WeightRequest struct {
	Weight int `json:"weight"`
	// Date defaults to today.
	Date string `json:"date"`
}

type GoalRequest struct {
	Name  string `json:"name"`
	Focus string `json:"focus"`
}

type GoalResponse struct {
	WorkoutID string `json:"workoutId"`
	Graph     *Graph `json:"graph,omitempty"`
	// NoData is set when the workout has nothing logged yet.
	NoData bool `json:"noData,omitempty"`
}

type Handler struct {
	service        *Service
	goalSetter     goalSetter
	metricsManager *metrics.Manager
}

func NewHandler(service *Service, goalSetter goalSetter, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		service:        service,
		goalSetter:     goalSetter,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/workouts", handler.HandleList).Methods("GET", "OPTIONS").Name("workouts-list")
	router.HandleFunc("/workouts/today", handler.HandleToday).Methods("GET", "OPTIONS").Name("workouts-today")
	router.HandleFunc("/workouts/check", handler.HandleCheck).Methods("GET", "OPTIONS").Name("workouts-check")
	router.HandleFunc("/workouts/log", handler.HandleLog).Methods("POST", "OPTIONS").Name("workouts-log")
	router.HandleFunc("/weight", handler.HandleWeight).Methods("POST", "OPTIONS").Name("weight")
	router.HandleFunc("/goal", handler.HandleGoal).Methods("POST", "OPTIONS").Name("goal")
	router.HandleFunc("/points/{tag}/{focus}", handler.HandlePoints).Methods("GET", "OPTIONS").Name("points")
	router.HandleFunc("/graph/{tag}/{focus}", handler.HandleGraph).Methods("GET", "OPTIONS").Name("graph")
	router.HandleFunc("/history/{workoutId}", handler.HandleHistory).Methods("GET", "OPTIONS").Name("history")
}

// WriteFailure writes err the way clients expect operation failures.
func WriteFailure(w http.ResponseWriter, err error) {
	status, body := FailureResponse(err)
	if status == http.StatusInternalServerError {
		log.Errorf("internal failure: %s", err)
	}
	pkg.WriteJSON(w, body, status)
}

func sessionOrUnauthorized(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	session, ok := SessionFromContext(r.Context())
	if !ok || session.Username == "" {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return nil, false
	}
	return session, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Header.Get("Content-Type") != pkg.ContentType.JSON {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Debugf("%s, unmarshal json params: %s", r.URL.Path, err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.list")
	defer span.End()

	names, err := handler.service.WorkoutNames(ctx)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	pkg.WriteJSON(w, names, http.StatusOK)
}

func (handler *Handler) HandleToday(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.today")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	day := r.URL.Query().Get("day")
	if day == "" {
		day = handler.service.Today()
	}
	span.SetAttributes(attribute.String("day", day))

	names, err := handler.service.PickWorkout(ctx, day, session.Username)
	if err != nil {
		WriteFailure(w, err)
		return
	}

	resp := TodayResponse{Day: day, Suggestions: make([]Suggestion, 0, len(names))}
	for _, name := range names {
		suggestion := Suggestion{Name: name}
		if name != RestDay {
			prompt, err := handler.service.AttributesPrompt(ctx, name)
			if err != nil {
				WriteFailure(w, err)
				return
			}
			suggestion.Prompt = prompt
		}
		resp.Suggestions = append(resp.Suggestions, suggestion)
	}
	pkg.WriteJSON(w, resp, http.StatusOK)
}

func (handler *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.check")
	defer span.End()

	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "error, name empty", http.StatusBadRequest)
		return
	}

	exists, err := handler.service.CheckWorkout(ctx, name)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	if !exists {
		WriteFailure(w, ErrWorkoutNotFound)
		return
	}

	prompt, err := handler.service.AttributesPrompt(ctx, name)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	pkg.WriteJSON(w, CheckResponse{Exists: true, Prompt: prompt}, http.StatusOK)
}

func (handler *Handler) HandleLog(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.log")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req LogRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	span.SetAttributes(attribute.Int("entries", len(req.Entries)))

	if err := handler.service.CheckEdits(ctx, req.Entries, session.Username); err != nil {
		handler.countLogEntries("failed", 1)
		WriteFailure(w, err)
		return
	}

	handler.countLogEntries("ok", len(req.Entries))
	pkg.WriteJSON(w, map[string]bool{"ok": true}, http.StatusCreated)
}

func (handler *Handler) countLogEntries(result string, n int) {
	if handler.metricsManager == nil {
		return
	}
	handler.metricsManager.CounterLogEntries.WithLabelValues(result).Add(float64(n))
}

func (handler *Handler) HandleWeight(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.weight")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req WeightRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Date == "" {
		req.Date = FormatDate(handler.service.now())
	}

	if err := handler.service.LogWeight(ctx, req.Weight, req.Date, session.Username); err != nil {
		WriteFailure(w, err)
		return
	}
	if handler.metricsManager != nil {
		handler.metricsManager.CounterWeighIns.Inc()
	}

	graph, err := handler.service.Graph(ctx, WeightTag, WeightTag, session.Username)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	pkg.WriteJSON(w, graph, http.StatusOK)
}

// HandleGoal selects the workout the user is following and returns its progress graph.
func (handler *Handler) HandleGoal(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.goal")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req GoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Focus == "" {
		req.Focus = WeightTag
	}

	workoutID, err := handler.service.WorkoutID(ctx, req.Name)
	if err != nil {
		WriteFailure(w, err)
		return
	}

	if handler.goalSetter != nil && session.Token != "" {
		if err := handler.goalSetter.SetGoal(ctx, session.Token, req.Name); err != nil {
			log.Errorf("set goal [%s] for [%s]: %s", req.Name, session.Username, err)
			http.Error(w, "failed to set goal", http.StatusInternalServerError)
			return
		}
	}

	resp := GoalResponse{WorkoutID: workoutID}
	graph, err := handler.service.Graph(ctx, workoutID, req.Focus, session.Username)
	switch {
	case errors.Is(err, ErrNoData):
		resp.NoData = true
	case err != nil:
		WriteFailure(w, err)
		return
	default:
		resp.Graph = graph
	}
	pkg.WriteJSON(w, resp, http.StatusOK)
}

func (handler *Handler) HandlePoints(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.points")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	series, err := handler.service.Points(ctx, vars["tag"], vars["focus"], session.Username)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	pkg.WriteJSON(w, series, http.StatusOK)
}

func (handler *Handler) HandleGraph(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.graph")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	graph, err := handler.service.Graph(ctx, vars["tag"], vars["focus"], session.Username)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	pkg.WriteJSON(w, graph, http.StatusOK)
}

func (handler *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.history")
	defer span.End()

	session, ok := sessionOrUnauthorized(w, r)
	if !ok {
		return
	}

	history, err := handler.service.ExerciseHistory(ctx, mux.Vars(r)["workoutId"], session.Username)
	if err != nil {
		WriteFailure(w, err)
		return
	}
	pkg.WriteJSON(w, history, http.StatusOK)
}
