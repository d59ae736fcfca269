package mentor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mentorgate/entity"
	"mentorgate/internal/store"
	"mentorgate/lib/sl"
	"mentorgate/lib/validate"
)

// Registry issues and lists mentor codes.
type Registry struct {
	store    store.Store
	log      *slog.Logger
	now      func() time.Time
	limit    int
	attempts int
}

func NewRegistry(st store.Store, log *slog.Logger, opts Options) *Registry {
	opts = opts.withDefaults()
	return &Registry{
		store:    st,
		log:      log.With(sl.Module("mentor.registry")),
		now:      opts.Now,
		limit:    opts.CodeLimit,
		attempts: opts.IssueAttempts,
	}
}

// IssueCode creates an unused code. Existing codes are never overwritten.
func (r *Registry) IssueCode(ctx context.Context, code string) (*entity.MentorCode, error) {
	code = NormalizeCode(code)
	if !validate.MentorCode(code) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedCode, code)
	}
	mc := entity.NewMentorCode(code, r.now())
	err := r.store.CreateCode(ctx, mc)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, code)
	}
	if err != nil {
		r.log.With(sl.Code(code)).Error("issue code", sl.Err(err))
		return nil, fmt.Errorf("issue code: %w", err)
	}
	r.log.With(sl.Code(code)).Info("code issued")
	return mc, nil
}

// IssueGenerated issues a freshly generated code, retrying on collisions.
func (r *Registry) IssueGenerated(ctx context.Context) (*entity.MentorCode, error) {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		var mc *entity.MentorCode
		mc, err = r.IssueCode(ctx, GenerateCode())
		if err == nil {
			return mc, nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			return nil, err
		}
		r.log.With(slog.Int("attempt", attempt)).Debug("generated code collision")
	}
	return nil, fmt.Errorf("no unique code after %d attempts: %w", r.attempts, err)
}

// ListCodes returns up to limit codes newest first. When the ordered query fails the whole
// collection is read without ordering and degraded is true.
func (r *Registry) ListCodes(ctx context.Context, limit int) (codes []*entity.MentorCode, degraded bool, err error) {
	if limit <= 0 {
		limit = r.limit
	}
	codes, err = r.store.FindCodes(ctx, store.Query{Limit: limit, Ordered: true})
	if err == nil {
		return codes, false, nil
	}
	if ctx.Err() != nil {
		return nil, false, err
	}
	r.log.Warn("ordered code query failed; reading unordered", sl.Err(err))
	codes, err = r.store.FindCodes(ctx, store.Query{})
	if err != nil {
		return nil, false, fmt.Errorf("list codes: %w", err)
	}
	return codes, true, nil
}

// WatchCodes calls onChange with the current list and again after every change.
// The returned function stops the subscription.
func (r *Registry) WatchCodes(ctx context.Context, limit int, onChange func(Snapshot[*entity.MentorCode]), onError func(error)) func() {
	return watch(ctx, r.store, r.log, subscription[*entity.MentorCode]{
		collection: store.CollectionCodes,
		list: func(ctx context.Context) ([]*entity.MentorCode, bool, error) {
			return r.ListCodes(ctx, limit)
		},
		onChange: onChange,
		onError:  onError,
	})
}
