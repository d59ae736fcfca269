package database

import (
	"context"
	"fmt"

	"mentorgate/entity"
	"mentorgate/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// RunTx runs fn in a multi-document transaction. WithTransaction retries fn on transient
// errors such as write conflicts, so a transaction that lost a race re-reads the current state.
func (m *MongoDB) RunTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongodb start session: %w", err)
	}
	defer session.EndSession(context.Background())

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, &mongoTx{m: m})
	}, opts)
	return err
}

type mongoTx struct {
	m *MongoDB
}

func (t *mongoTx) GetCode(ctx context.Context, code string) (*entity.MentorCode, error) {
	var mc entity.MentorCode
	err := t.m.collection(store.CollectionCodes).FindOne(ctx, bson.D{{"_id", code}}).Decode(&mc)
	if err != nil {
		return nil, t.m.findError(err)
	}
	return &mc, nil
}

func (t *mongoTx) GetRequest(ctx context.Context, id string) (*entity.MentorRequest, error) {
	var r entity.MentorRequest
	err := t.m.collection(store.CollectionRequests).FindOne(ctx, bson.D{{"_id", id}}).Decode(&r)
	if err != nil {
		return nil, t.m.findError(err)
	}
	return &r, nil
}

func (t *mongoTx) InsertCode(ctx context.Context, code *entity.MentorCode) error {
	_, err := t.m.collection(store.CollectionCodes).InsertOne(ctx, code)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return err
}

func (t *mongoTx) UpdateCode(ctx context.Context, code *entity.MentorCode) error {
	filter := bson.D{{"_id", code.Code}}
	res, err := t.m.collection(store.CollectionCodes).ReplaceOne(ctx, filter, code)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *mongoTx) InsertRequest(ctx context.Context, r *entity.MentorRequest) error {
	_, err := t.m.collection(store.CollectionRequests).InsertOne(ctx, r)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return err
}

func (t *mongoTx) SetRequestStatus(ctx context.Context, id string, status entity.RequestStatus) error {
	filter := bson.D{{"_id", id}}
	update := bson.D{{"$set", bson.D{
		{"status", status},
	}}}
	res, err := t.m.collection(store.CollectionRequests).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("request %s: %w", id, store.ErrNotFound)
	}
	return nil
}
