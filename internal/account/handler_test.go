package account_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/2beens/gymtracker/internal/account"
	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	router         *mux.Router
	credentials    *MockcredentialsService
	sessions       *MocksessionManager
	metricsManager *metrics.Manager
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		router:         mux.NewRouter(),
		credentials:    NewMockcredentialsService(ctrl),
		sessions:       NewMocksessionManager(ctrl),
		metricsManager: metrics.NewTestManager(),
	}
	account.NewHandler(f.credentials, f.sessions, "v1.2.3", f.metricsManager).SetupRoutes(f.router, nil, 0)
	return f
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandler_RootAndVersion(t *testing.T) {
	f := newFixture(t)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, "v1.2.3", rr.Body.String())
}

func TestHandler_Login(t *testing.T) {
	f := newFixture(t)

	f.credentials.EXPECT().Login(gomock.Any(), "ana", "secret").Return(nil)
	f.sessions.EXPECT().Login(gomock.Any(), "ana", gomock.Any()).Return("tkn-123", nil)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, jsonRequest(t, http.MethodPost, "/a/login", map[string]string{
		"username": "ana",
		"password": "secret",
	}))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp account.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "tkn-123", resp.Token)
	assert.Equal(t, "ana", resp.Username)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metricsManager.CounterLogins.WithLabelValues("ok")))
}

func TestHandler_Login_Form(t *testing.T) {
	f := newFixture(t)

	f.credentials.EXPECT().Login(gomock.Any(), "ana", "secret").Return(nil)
	f.sessions.EXPECT().Login(gomock.Any(), "ana", gomock.Any()).Return("tkn-123", nil)

	form := url.Values{"username": {"ana"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/a/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandler_Login_Failures(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		expectedCode int
	}{
		{name: "EmptyUsername", err: workouts.ErrEmptyUsername, expectedCode: 0},
		{name: "EmptyPassword", err: workouts.ErrEmptyPassword, expectedCode: 1},
		{name: "UnknownUser", err: workouts.ErrUserNotFound, expectedCode: 2},
		{name: "WrongPassword", err: workouts.ErrWrongPassword, expectedCode: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.credentials.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any()).Return(tc.err)

			rr := httptest.NewRecorder()
			f.router.ServeHTTP(rr, jsonRequest(t, http.MethodPost, "/a/login", map[string]string{"username": "x"}))
			require.Equal(t, http.StatusBadRequest, rr.Code)

			var failure workouts.Failure
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &failure))
			require.NotNil(t, failure.Code)
			assert.Equal(t, tc.expectedCode, *failure.Code)
			assert.Equal(t, workouts.Message(tc.err), failure.Message)
			assert.Equal(t, float64(1), testutil.ToFloat64(f.metricsManager.CounterLogins.WithLabelValues("failed")))
		})
	}
}

func TestHandler_Login_SessionError(t *testing.T) {
	f := newFixture(t)

	f.credentials.EXPECT().Login(gomock.Any(), "ana", "secret").Return(nil)
	f.sessions.EXPECT().Login(gomock.Any(), "ana", gomock.Any()).Return("", errors.New("redis down"))

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, jsonRequest(t, http.MethodPost, "/a/login", map[string]string{
		"username": "ana",
		"password": "secret",
	}))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHandler_CreateAccount(t *testing.T) {
	f := newFixture(t)

	f.credentials.EXPECT().CreateAccount(gomock.Any(), "ana", "secret").Return(nil)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, jsonRequest(t, http.MethodPost, "/a/account", map[string]string{
		"username": "ana",
		"password": "secret",
	}))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metricsManager.CounterAccountsCreated))

	f.credentials.EXPECT().CreateAccount(gomock.Any(), "ana", "secret").Return(workouts.ErrUsernameTaken)
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, jsonRequest(t, http.MethodPost, "/a/account", map[string]string{
		"username": "ana",
		"password": "secret",
	}))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "That username is taken")
}

func TestHandler_Logout(t *testing.T) {
	f := newFixture(t)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/a/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	f.sessions.EXPECT().Logout(gomock.Any(), "tkn").Return(true, nil)
	req := httptest.NewRequest(http.MethodGet, "/a/logout", nil)
	req.Header.Set(auth.TokenHeader, "tkn")
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "logged-out", rr.Body.String())

	f.sessions.EXPECT().Logout(gomock.Any(), "tkn").Return(false, nil)
	req = httptest.NewRequest(http.MethodGet, "/a/logout", nil)
	req.Header.Set(auth.TokenHeader, "tkn")
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
