package mentor

import (
	"context"

	"mentorgate/entity"
	"mentorgate/internal/store"
)

// readsFirst wraps a transaction and rejects any read issued after the first write.
// Document stores that follow optimistic transactions require all reads up front.
type readsFirst struct {
	tx    store.Tx
	wrote bool
}

func guard(tx store.Tx) *readsFirst {
	return &readsFirst{tx: tx}
}

func (g *readsFirst) GetCode(ctx context.Context, code string) (*entity.MentorCode, error) {
	if g.wrote {
		return nil, ErrReadAfterWrite
	}
	return g.tx.GetCode(ctx, code)
}

func (g *readsFirst) GetRequest(ctx context.Context, id string) (*entity.MentorRequest, error) {
	if g.wrote {
		return nil, ErrReadAfterWrite
	}
	return g.tx.GetRequest(ctx, id)
}

func (g *readsFirst) InsertCode(ctx context.Context, code *entity.MentorCode) error {
	g.wrote = true
	return g.tx.InsertCode(ctx, code)
}

func (g *readsFirst) UpdateCode(ctx context.Context, code *entity.MentorCode) error {
	g.wrote = true
	return g.tx.UpdateCode(ctx, code)
}

func (g *readsFirst) InsertRequest(ctx context.Context, request *entity.MentorRequest) error {
	g.wrote = true
	return g.tx.InsertRequest(ctx, request)
}

func (g *readsFirst) SetRequestStatus(ctx context.Context, id string, status entity.RequestStatus) error {
	g.wrote = true
	return g.tx.SetRequestStatus(ctx, id, status)
}

var _ store.Tx = (*readsFirst)(nil)
