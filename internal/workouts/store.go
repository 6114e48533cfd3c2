package workouts

import "context"

//go:generate mockgen -source=$GOFILE -destination=store_mocks_test.go -package=workouts_test

// Store persists credentials, user records and the workout catalog.
// GetCredentials and GetUser return ErrUserNotFound for unknown users,
// AddUser returns ErrUsernameTaken when the username exists.
type Store interface {
	GetCredentials(ctx context.Context, username string) (password string, err error)
	AddUser(ctx context.Context, username, password string, record *UserRecord) error
	GetUser(ctx context.Context, username string) (*UserRecord, error)
	// UpdateUser loads the record, applies fn and persists the result in one
	// step. Nothing is written when fn returns an error.
	UpdateUser(ctx context.Context, username string, fn func(record *UserRecord) error) error
	Catalog(ctx context.Context) (Catalog, error)
	Close() error
}

// CatalogCache keeps the decoded catalog between store reads.
type CatalogCache interface {
	Get() (Catalog, bool)
	Set(catalog Catalog) error
	Invalidate()
}

type noCatalogCache struct{}

func (noCatalogCache) Get() (Catalog, bool) { return nil, false }
func (noCatalogCache) Set(Catalog) error    { return nil }
func (noCatalogCache) Invalidate()          {}
