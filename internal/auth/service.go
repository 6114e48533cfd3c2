package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workouts"
	"github.com/2beens/gymtracker/pkg"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	// TokenHeader carries the session token on authenticated requests.
	TokenHeader = "X-GYM-TOKEN"

	DefaultTTL       = 24 * 7 * time.Hour
	TokenLength      = 35
	sessionKeyPrefix = "gymtracker-session||"
	tokensSetKey     = "gymtracker-sessions"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// storedSession is the value kept under a session key.
type storedSession struct {
	Username  string `json:"username"`
	Goal      string `json:"goal,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

type Service struct {
	redisClient *redis.Client
	ttl         time.Duration
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
	now            func() time.Time
}

func NewAuthService(
	ttl time.Duration,
	redisClient *redis.Client,
) *Service {
	return &Service{
		ttl:            ttl,
		redisClient:    redisClient,
		RandStringFunc: pkg.GenerateRandomString,
		now:            time.Now,
	}
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

// Login starts a new session for an already authenticated user and returns its token.
func (as *Service) Login(ctx context.Context, username string, createdAt time.Time) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.auth.login")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	token, err := as.RandStringFunc(TokenLength)
	if err != nil {
		return "", err
	}

	sessionJson, err := json.Marshal(storedSession{
		Username:  username,
		CreatedAt: createdAt.Unix(),
	})
	if err != nil {
		return "", err
	}

	if err := as.redisClient.Set(ctx, sessionKey(token), string(sessionJson), as.ttl).Err(); err != nil {
		return "", fmt.Errorf("set session: %w", err)
	}

	// add token to list of sessions
	if err := as.redisClient.SAdd(ctx, tokensSetKey, token).Err(); err != nil {
		return "", fmt.Errorf("add session token: %w", err)
	}

	return token, nil
}

func (as *Service) get(ctx context.Context, token string) (*storedSession, error) {
	val, err := as.redisClient.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var s storedSession
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (as *Service) expired(s *storedSession) bool {
	return as.now().Sub(time.Unix(s.CreatedAt, 0)) > as.ttl
}

// Session returns the session for token, or ErrSessionNotFound / ErrSessionExpired.
func (as *Service) Session(ctx context.Context, token string) (*workouts.Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	s, err := as.get(ctx, token)
	if err != nil {
		return nil, err
	}
	if as.expired(s) {
		return nil, ErrSessionExpired
	}

	return &workouts.Session{
		Token:    token,
		Username: s.Username,
		Goal:     s.Goal,
	}, nil
}

// SetGoal stores the workout the user is currently tracking in the session.
func (as *Service) SetGoal(ctx context.Context, token, goal string) error {
	s, err := as.get(ctx, token)
	if err != nil {
		return err
	}
	s.Goal = goal

	sessionJson, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := as.redisClient.Set(ctx, sessionKey(token), string(sessionJson), redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("set session goal: %w", err)
	}
	return nil
}

// Logout drops the session, reporting whether there was one.
func (as *Service) Logout(ctx context.Context, token string) (bool, error) {
	deleted, err := as.redisClient.Del(ctx, sessionKey(token)).Result()
	if err != nil {
		return false, err
	}

	// remove token from the list of sessions
	if err := as.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
		return false, err
	}

	return deleted > 0, nil
}

// ScanAndClean will run through all sessions, check the TTL, and clean them if old
func (as *Service) ScanAndClean(ctx context.Context) {
	cmd := as.redisClient.SMembers(ctx, tokensSetKey)
	if err := cmd.Err(); err != nil {
		log.Errorf("!!! auth service, scan and clean, get sessions: %s", err)
		return
	}

	sessionTokens := cmd.Val()
	if len(sessionTokens) == 0 {
		log.Debugln("=> auth service, scan and clean abort, no sessions")
		return
	}

	log.Infof("=> auth service, scan and clean [%d sessions] start ...", len(sessionTokens))
	var toRemove []string
	for _, token := range sessionTokens {
		s, err := as.get(ctx, token)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				// expired by redis already, only the token is left
				toRemove = append(toRemove, token)
				continue
			}
			log.Errorf("=> auth service, scan and clean token %s: %s", token, err)
			continue
		}
		if as.expired(s) {
			log.Debugf("=>\twill clean the session of [%s]", s.Username)
			toRemove = append(toRemove, token)
		}
	}

	for _, token := range toRemove {
		if err := as.redisClient.Del(ctx, sessionKey(token)).Err(); err != nil {
			log.Errorf("=> auth service, clean token %s: %s", token, err)
			continue
		}

		// remove token from the list of sessions
		if err := as.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
			log.Errorf("=> auth service, clean token %s: %s", token, err)
			continue
		}
	}
}

// RunCleanup calls ScanAndClean every interval until ctx is done.
func (as *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			as.ScanAndClean(ctx)
		}
	}
}
