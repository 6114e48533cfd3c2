package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workouts"
	"github.com/2beens/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	LoginFileName    = "login.csv"
	UserDataFileName = "userdata.json"
	CatalogFileName  = "workouts.json"

	filePerm = 0o644
)

var _ workouts.Store = (*Store)(nil)

// Store keeps everything in flat files inside one directory:
// login.csv, userdata.json and the catalog file.
// All mutations are serialized and every file is replaced atomically.
type Store struct {
	loginPath    string
	userDataPath string
	catalogPath  string

	mutex sync.RWMutex
}

// NewStore creates a store rooted at dataDir. An empty catalogPath means
// workouts.json inside dataDir.
func NewStore(dataDir, catalogPath string) *Store {
	if catalogPath == "" {
		catalogPath = filepath.Join(dataDir, CatalogFileName)
	}
	return &Store{
		loginPath:    filepath.Join(dataDir, LoginFileName),
		userDataPath: filepath.Join(dataDir, UserDataFileName),
		catalogPath:  catalogPath,
	}
}

func (s *Store) CatalogPath() string {
	return s.catalogPath
}

// Setup creates an empty login file and user data file when they are missing.
func (s *Store) Setup() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.loginPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	loginExists, err := pkg.PathExists(s.loginPath, false)
	if err != nil {
		return err
	}
	if loginExists {
		log.Debugf("login file present: %s", s.loginPath)
	} else {
		data, err := encodeCredentials(nil)
		if err != nil {
			return err
		}
		if err := pkg.WriteFileAtomic(s.loginPath, data, filePerm); err != nil {
			return fmt.Errorf("create login file: %w", err)
		}
		log.Infof("new login file made: %s", s.loginPath)
	}

	userDataExists, err := pkg.PathExists(s.userDataPath, false)
	if err != nil {
		return err
	}
	if !userDataExists {
		if err := pkg.WriteFileAtomic(s.userDataPath, []byte("{}"), filePerm); err != nil {
			return fmt.Errorf("create user data file: %w", err)
		}
		log.Infof("new user data file made: %s", s.userDataPath)
	}

	catalogExists, err := pkg.PathExists(s.catalogPath, false)
	if err != nil {
		return err
	}
	if !catalogExists {
		log.Warnf("workouts catalog missing: %s", s.catalogPath)
	}

	return nil
}

func (s *Store) readUserData() (map[string]*workouts.UserRecord, error) {
	data, err := os.ReadFile(s.userDataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*workouts.UserRecord{}, nil
		}
		return nil, fmt.Errorf("read user data: %w", err)
	}

	userData := map[string]*workouts.UserRecord{}
	if len(data) == 0 {
		return userData, nil
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return nil, fmt.Errorf("decode user data: %w", err)
	}
	return userData, nil
}

func (s *Store) writeUserData(userData map[string]*workouts.UserRecord) error {
	data, err := json.MarshalIndent(userData, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user data: %w", err)
	}
	return pkg.WriteFileAtomic(s.userDataPath, data, filePerm)
}

func (s *Store) readCredentials() ([]credential, error) {
	creds, err := readCredentials(s.loginPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return creds, nil
}

func (s *Store) GetCredentials(ctx context.Context, username string) (_ string, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "repo.filestore.getCredentials")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	creds, err := s.readCredentials()
	if err != nil {
		return "", err
	}
	for _, c := range creds {
		if c.username == username {
			return c.password, nil
		}
	}
	return "", workouts.ErrUserNotFound
}

func (s *Store) AddUser(ctx context.Context, username, password string, record *workouts.UserRecord) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "repo.filestore.addUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("username", username))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	creds, err := s.readCredentials()
	if err != nil {
		return err
	}
	for _, c := range creds {
		if c.username == username {
			return workouts.ErrUsernameTaken
		}
	}

	userData, err := s.readUserData()
	if err != nil {
		return err
	}
	userData[username] = record

	// record first, so a crash in between never leaves credentials without a record
	if err := s.writeUserData(userData); err != nil {
		return err
	}

	csvData, err := encodeCredentials(append(creds, credential{username: username, password: password}))
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := pkg.WriteFileAtomic(s.loginPath, csvData, filePerm); err != nil {
		return fmt.Errorf("write login file: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (_ *workouts.UserRecord, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "repo.filestore.getUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	userData, err := s.readUserData()
	if err != nil {
		return nil, err
	}
	record, ok := userData[username]
	if !ok || record == nil {
		return nil, workouts.ErrUserNotFound
	}
	return record, nil
}

func (s *Store) UpdateUser(ctx context.Context, username string, fn func(*workouts.UserRecord) error) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "repo.filestore.updateUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	userData, err := s.readUserData()
	if err != nil {
		return err
	}
	record, ok := userData[username]
	if !ok || record == nil {
		return workouts.ErrUserNotFound
	}
	if err := fn(record); err != nil {
		return err
	}
	return s.writeUserData(userData)
}

func (s *Store) Catalog(ctx context.Context) (_ workouts.Catalog, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "repo.filestore.catalog")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return LoadCatalog(s.catalogPath)
}

func (s *Store) Close() error {
	return nil
}
