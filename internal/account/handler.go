package account

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=account_test

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/middleware"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workouts"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type sessionManager interface {
	Login(ctx context.Context, username string, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
}

type credentialsService interface {
	Login(ctx context.Context, username, password string) error
	CreateAccount(ctx context.Context, username, password string) error
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type Handler struct {
	credentials    credentialsService
	sessions       sessionManager
	versionInfo    string
	metricsManager *metrics.Manager
}

func NewHandler(
	credentials credentialsService,
	sessions sessionManager,
	versionInfo string,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		credentials:    credentials,
		sessions:       sessions,
		versionInfo:    versionInfo,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	allowedPerMin int,
) {
	mainRouter.HandleFunc("/", handler.handleRoot).Methods("GET", "POST", "OPTIONS").Name("root")
	mainRouter.HandleFunc("/version", handler.handleGetVersionInfo).Methods("GET").Name("version")

	accountSubrouter := mainRouter.PathPrefix("/a").Subrouter()
	accountSubrouter.
		HandleFunc("/login", handler.handleLogin).
		Methods("POST", "OPTIONS").Name("login")
	accountSubrouter.
		HandleFunc("/logout", handler.handleLogout).
		Methods("GET", "OPTIONS").Name("logout")
	accountSubrouter.
		HandleFunc("/account", handler.handleCreateAccount).
		Methods("POST", "OPTIONS").Name("account")

	// rate limit the account endpoints to prevent password guessing
	if rateLimiter != nil {
		accountSubrouter.Use(middleware.RateLimit(rateLimiter, "account", allowedPerMin, handler.metricsManager))
	}
}

func (handler *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
}

func (handler *Handler) handleGetVersionInfo(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, handler.versionInfo)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// readCredentials accepts a JSON body or a form.
func readCredentials(r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	if r.Header.Get("Content-Type") == pkg.ContentType.JSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	return credentialsRequest{
		Username: r.Form.Get("username"),
		Password: r.Form.Get("password"),
	}, nil
}

func (handler *Handler) countLogin(result string) {
	if handler.metricsManager != nil {
		handler.metricsManager.CounterLogins.WithLabelValues(result).Inc()
	}
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "accountHandler.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	req, err := readCredentials(r)
	if err != nil {
		log.Errorf("login, read credentials: %s", err)
		http.Error(w, "login failed", http.StatusBadRequest)
		return
	}

	if err := handler.credentials.Login(ctx, req.Username, req.Password); err != nil {
		log.Tracef("failed login attempt for user [%s]: %s", req.Username, err)
		handler.countLogin("failed")
		span.SetStatus(codes.Error, "login-failed")
		workouts.WriteFailure(w, err)
		return
	}

	token, err := handler.sessions.Login(ctx, req.Username, time.Now())
	if err != nil {
		log.Errorf("login failed, create session error: %s", err)
		http.Error(w, "create session error", http.StatusInternalServerError)
		return
	}

	handler.countLogin("ok")
	log.Tracef("new login success for [%s]", req.Username)
	pkg.WriteJSON(w, LoginResponse{Token: token, Username: req.Username}, http.StatusOK)
}

func (handler *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "accountHandler.createAccount")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	req, err := readCredentials(r)
	if err != nil {
		log.Errorf("create account, read credentials: %s", err)
		http.Error(w, "create account failed", http.StatusBadRequest)
		return
	}

	if err := handler.credentials.CreateAccount(ctx, req.Username, req.Password); err != nil {
		span.SetStatus(codes.Error, "create-account-failed")
		workouts.WriteFailure(w, err)
		return
	}

	if handler.metricsManager != nil {
		handler.metricsManager.CounterAccountsCreated.Inc()
	}
	log.Infof("account created for [%s]", req.Username)
	pkg.WriteJSON(w, map[string]any{"ok": true, "username": req.Username}, http.StatusCreated)
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "accountHandler.logout")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	authToken := r.Header.Get(auth.TokenHeader)
	if authToken == "" {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	loggedOut, err := handler.sessions.Logout(ctx, authToken)
	if err != nil {
		log.Errorf("[failed logout] => %s: %s", r.URL.Path, err)
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	if !loggedOut {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	log.Trace("logout success")
	pkg.WriteTextResponseOK(w, "logged-out")
}
