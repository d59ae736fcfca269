// Package store describes the document store the mentor workflow runs on.
//
// Two logical collections exist: mentor codes keyed by code and mentor requests keyed by a
// generated id. Consumers get point reads, atomic read-then-write transactions, ordered range
// queries with a limit, and change feeds. Implementations live in internal/database (MongoDB)
// and internal/sqlstore (SQLite, MySQL).
package store

import (
	"context"
	"errors"

	"mentorgate/entity"
)

const (
	CollectionCodes    = "mentor_codes"
	CollectionRequests = "mentor_requests"
	CollectionUsers    = "users"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Query selects documents of one collection. Ordered asks for newest-first by the
// collection's timestamp (created_at for codes, requested_at for requests).
type Query struct {
	Limit   int
	Ordered bool
}

// Tx is the view of the store inside a transaction. Implementations must make the reads
// and writes of one RunTx call atomic and isolated from concurrent transactions that touch
// the same documents.
type Tx interface {
	GetCode(ctx context.Context, code string) (*entity.MentorCode, error)
	GetRequest(ctx context.Context, id string) (*entity.MentorRequest, error)
	InsertCode(ctx context.Context, code *entity.MentorCode) error
	UpdateCode(ctx context.Context, code *entity.MentorCode) error
	InsertRequest(ctx context.Context, request *entity.MentorRequest) error
	SetRequestStatus(ctx context.Context, id string, status entity.RequestStatus) error
}

// Store is the document store boundary.
type Store interface {
	// CreateCode inserts a new code, failing with ErrDuplicate if it exists.
	CreateCode(ctx context.Context, code *entity.MentorCode) error
	GetCode(ctx context.Context, code string) (*entity.MentorCode, error)
	GetRequest(ctx context.Context, id string) (*entity.MentorRequest, error)
	FindCodes(ctx context.Context, q Query) ([]*entity.MentorCode, error)
	FindRequests(ctx context.Context, q Query) ([]*entity.MentorRequest, error)
	// RunTx runs fn atomically. Any error returned by fn aborts the transaction and is
	// returned unchanged (possibly wrapped).
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Changes opens a change feed on a collection. The feed stops when ctx is done.
	Changes(ctx context.Context, collection string) (*Feed, error)
	// NewId returns a fresh document id for the requests collection.
	NewId() string
	Close() error
}

// UserStore keeps API principals.
type UserStore interface {
	GetUser(token string) (*entity.User, error)
	GetTelegramUsers() ([]*entity.User, error)
	SaveUser(user *entity.User) error
	SetTelegramEnabled(telegramId int64, enabled bool, logLevel int) error
}
