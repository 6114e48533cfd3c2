package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/2beens/gymtracker/internal/account"
	"github.com/2beens/gymtracker/internal/auth"

	"github.com/stretchr/testify/require"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func ping(endpoint string) error {
	resp, err := http.Get(endpoint + "/version")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("version status: %d", resp.StatusCode)
	}
	return nil
}

func newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		bodyJson, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(bodyJson)
	}

	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(auth.TokenHeader, token)
	}
	return req, nil
}

func createAccount(ctx context.Context, username, password string) error {
	req, err := newRequest(ctx, http.MethodPost, "/a/account", "", credentials{username, password})
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		respBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("create account status %d: %s", resp.StatusCode, respBytes)
	}
	return nil
}

func doLogin(ctx context.Context, t *testing.T) string {
	return loginAs(ctx, t, testUsername, testPassword)
}

func loginAs(ctx context.Context, t *testing.T, username, password string) string {
	req, err := newRequest(ctx, http.MethodPost, "/a/login", "", credentials{username, password})
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loginResp account.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
	require.NotEmpty(t, loginResp.Token)

	return loginResp.Token
}
