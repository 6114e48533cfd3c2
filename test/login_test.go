package test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"testing"

	"github.com/2beens/gymtracker/internal/account"
	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestLogin() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failureCode := func(t *testing.T, resp *http.Response) int {
		var failure workouts.Failure
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&failure))
		require.NotNil(t, failure.Code)
		return *failure.Code
	}

	cases := map[string]struct {
		creds              credentials
		expectedStatusCode int
		assertFunc         func(t *testing.T, resp *http.Response)
	}{
		"good creds": {
			creds:              credentials{testUsername, testPassword},
			expectedStatusCode: http.StatusOK,
			assertFunc: func(t *testing.T, resp *http.Response) {
				var loginResp account.LoginResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
				assert.NotEmpty(t, loginResp.Token)
				assert.Equal(t, testUsername, loginResp.Username)
			},
		},
		"good creds, then logout": {
			creds:              credentials{testUsername, testPassword},
			expectedStatusCode: http.StatusOK,
			assertFunc: func(t *testing.T, resp *http.Response) {
				var loginResp account.LoginResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
				require.NotEmpty(t, loginResp.Token)

				req, err := newRequest(ctx, http.MethodGet, "/a/logout", loginResp.Token, nil)
				require.NoError(t, err)
				logoutResp, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, logoutResp.StatusCode)
				require.NoError(t, logoutResp.Body.Close())

				// the token is no longer valid
				req, err = newRequest(ctx, http.MethodGet, "/workouts/today", loginResp.Token, nil)
				require.NoError(t, err)
				todayResp, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				assert.Equal(t, http.StatusUnauthorized, todayResp.StatusCode)
				require.NoError(t, todayResp.Body.Close())
			},
		},
		"bad password": {
			creds:              credentials{testUsername, "bad-password"},
			expectedStatusCode: http.StatusBadRequest,
			assertFunc: func(t *testing.T, resp *http.Response) {
				assert.Equal(t, 3, failureCode(t, resp))
			},
		},
		"bad username": {
			creds:              credentials{"bad-username", testPassword},
			expectedStatusCode: http.StatusBadRequest,
			assertFunc: func(t *testing.T, resp *http.Response) {
				assert.Equal(t, 2, failureCode(t, resp))
			},
		},
		"empty password": {
			creds:              credentials{testUsername, ""},
			expectedStatusCode: http.StatusBadRequest,
			assertFunc: func(t *testing.T, resp *http.Response) {
				assert.Equal(t, 1, failureCode(t, resp))
			},
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			req, err := newRequest(ctx, http.MethodPost, "/a/login", "", tc.creds)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tc.expectedStatusCode, resp.StatusCode)

			tc.assertFunc(t, resp)
		})
	}

	t.Run("rate limiting", func(t *testing.T) {
		require.NoError(t, s.rateLimitCleanup(ctx))

		// brute force, after the allowed attempts we get 429
		for i := 1; i <= loginRateLimit+5; i++ {
			req, err := newRequest(ctx, http.MethodPost, "/a/login", "", credentials{"test-user", "test-pass"})
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)

			if i <= loginRateLimit {
				require.Equal(t, http.StatusBadRequest, resp.StatusCode, "iteration: %d", i)
				assert.Empty(t, resp.Header.Get("Retry-After"), "iteration: %d", i)
			} else {
				require.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "iteration: %d", i)
				retryAfter, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64)
				require.NoError(t, err, "iteration: %d", i)
				assert.True(t, retryAfter > 0, "iteration: %d", i)
			}

			_, _ = io.Copy(io.Discard, resp.Body)
			assert.NoError(t, resp.Body.Close())
		}

		require.NoError(t, s.rateLimitCleanup(ctx))
	})
}

func (s *IntegrationTestSuite) TestCreateAccount() {
	t := s.T()
	ctx := context.Background()

	require.NoError(t, createAccount(ctx, "newlifter", "secret"))
	assert.Equal(t, 1, s.countRows(`SELECT COUNT(*) FROM app_user WHERE username = $1`, "newlifter"))
	assert.Equal(t, 1, s.countRows(`SELECT COUNT(*) FROM user_record WHERE username = $1`, "newlifter"))

	req, err := newRequest(ctx, http.MethodPost, "/a/account", "", credentials{"newlifter", "other"})
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var failure workouts.Failure
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&failure))
	require.NotNil(t, failure.Code)
	assert.Equal(t, 3, *failure.Code)
}
