package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mentorgate/entity"
	"mentorgate/internal/config"
	"mentorgate/internal/store"
	"mentorgate/lib/sl"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDB struct {
	client   *mongo.Client
	database string
	timeout  time.Duration
	log      *slog.Logger
}

// NewMongoClient connects to MongoDB and prepares indexes. Transactions and change streams
// need a replica set; a standalone server still serves reads and plain inserts.
func NewMongoClient(conf config.MongoConfig, log *slog.Logger) (*MongoDB, error) {
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Host, conf.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.User,
			Password:   conf.Password,
			AuthSource: conf.Database,
		})
	}
	if conf.ReplicaSet != "" {
		clientOptions.SetReplicaSet(conf.ReplicaSet)
	}
	timeout := time.Duration(conf.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	m := &MongoDB{
		client:   client,
		database: conf.Database,
		timeout:  timeout,
		log:      log.With(sl.Module("database.mongo")),
	}
	m.ensureIndexes()
	return m, nil
}

// ensureIndexes creates the sort indexes. Failure is tolerated: listing falls back to
// unordered reads when an ordered query cannot be served.
func (m *MongoDB) ensureIndexes() {
	ctx, cancel := m.getContext(context.Background())
	defer cancel()

	indexes := map[string]mongo.IndexModel{
		store.CollectionCodes: {
			Keys: bson.D{{"created_at", -1}},
		},
		store.CollectionRequests: {
			Keys: bson.D{{"requested_at", -1}},
		},
		store.CollectionUsers: {
			Keys:    bson.D{{"token", 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	for name, index := range indexes {
		if _, err := m.collection(name).Indexes().CreateOne(ctx, index); err != nil {
			m.log.With(slog.String("collection", name)).Warn("create index", sl.Err(err))
		}
	}
}

func (m *MongoDB) Close() error {
	ctx, cancel := m.getContext(context.Background())
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoDB) NewId() string {
	return uuid.NewString()
}

func (m *MongoDB) collection(name string) *mongo.Collection {
	return m.client.Database(m.database).Collection(name)
}

func (m *MongoDB) getContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, m.timeout)
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return fmt.Errorf("mongodb find: %w", err)
}

func (m *MongoDB) CreateCode(ctx context.Context, code *entity.MentorCode) error {
	ctx, cancel := m.getContext(ctx)
	defer cancel()

	_, err := m.collection(store.CollectionCodes).InsertOne(ctx, code)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("mongodb insert: %w", err)
	}
	return nil
}

func (m *MongoDB) GetCode(ctx context.Context, code string) (*entity.MentorCode, error) {
	ctx, cancel := m.getContext(ctx)
	defer cancel()

	var mc entity.MentorCode
	err := m.collection(store.CollectionCodes).FindOne(ctx, bson.D{{"_id", code}}).Decode(&mc)
	if err != nil {
		return nil, m.findError(err)
	}
	return &mc, nil
}

func (m *MongoDB) GetRequest(ctx context.Context, id string) (*entity.MentorRequest, error) {
	ctx, cancel := m.getContext(ctx)
	defer cancel()

	var r entity.MentorRequest
	err := m.collection(store.CollectionRequests).FindOne(ctx, bson.D{{"_id", id}}).Decode(&r)
	if err != nil {
		return nil, m.findError(err)
	}
	return &r, nil
}

func (m *MongoDB) FindCodes(ctx context.Context, q store.Query) ([]*entity.MentorCode, error) {
	ctx, cancel := m.getContext(ctx)
	defer cancel()

	cursor, err := m.collection(store.CollectionCodes).Find(ctx, bson.D{}, findOptions(q, "created_at"))
	if err != nil {
		return nil, fmt.Errorf("mongodb find codes: %w", err)
	}
	defer cursor.Close(ctx)

	codes := make([]*entity.MentorCode, 0)
	if err = cursor.All(ctx, &codes); err != nil {
		return nil, fmt.Errorf("mongodb decode codes: %w", err)
	}
	return codes, nil
}

func (m *MongoDB) FindRequests(ctx context.Context, q store.Query) ([]*entity.MentorRequest, error) {
	ctx, cancel := m.getContext(ctx)
	defer cancel()

	cursor, err := m.collection(store.CollectionRequests).Find(ctx, bson.D{}, findOptions(q, "requested_at"))
	if err != nil {
		return nil, fmt.Errorf("mongodb find requests: %w", err)
	}
	defer cursor.Close(ctx)

	requests := make([]*entity.MentorRequest, 0)
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("mongodb decode requests: %w", err)
	}
	return requests, nil
}

// findOptions builds the options of a collection read. An unordered read is a plain full scan.
func findOptions(q store.Query, sortField string) *options.FindOptions {
	opts := options.Find()
	if q.Ordered {
		opts.SetSort(bson.D{{sortField, -1}, {"_id", -1}})
		if q.Limit > 0 {
			opts.SetLimit(int64(q.Limit))
		}
	}
	return opts
}

var _ store.Store = (*MongoDB)(nil)
