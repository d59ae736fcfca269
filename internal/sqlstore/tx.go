package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mentorgate/entity"
	"mentorgate/internal/store"
	"mentorgate/lib/clock"
)

// tx runs every statement on the transaction itself; it never touches s.db.
type tx struct {
	tx      *sql.Tx
	s       *SqlStore
	touched map[string]bool
}

func (t *tx) GetCode(ctx context.Context, code string) (*entity.MentorCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE code = ?%s`,
		codeColumns, t.s.table("mentor_codes"), t.s.d.forUpdate)
	mc, err := scanCode(t.tx.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select code: %w", err)
	}
	return mc, nil
}

func (t *tx) GetRequest(ctx context.Context, id string) (*entity.MentorRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?%s`,
		requestColumns, t.s.table("mentor_requests"), t.s.d.forUpdate)
	r, err := scanRequest(t.tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select request: %w", err)
	}
	return r, nil
}

func (t *tx) InsertCode(ctx context.Context, code *entity.MentorCode) error {
	query := fmt.Sprintf(`INSERT INTO %s
		(code, status, created_at, assigned_user_id, assigned_email, assigned_name, used_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, t.s.table("mentor_codes"))
	args := append([]any{code.Code}, codeArgs(code)...)
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		if t.s.d.isDuplicate(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert code: %w", err)
	}
	t.touched[store.CollectionCodes] = true
	return nil
}

func (t *tx) UpdateCode(ctx context.Context, code *entity.MentorCode) error {
	query := fmt.Sprintf(`UPDATE %s SET
		status = ?, created_at = ?, assigned_user_id = ?, assigned_email = ?, assigned_name = ?, used_at = ?, updated_at = ?
		WHERE code = ?`, t.s.table("mentor_codes"))
	args := append(codeArgs(code), code.Code)
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update code: %w", err)
	}
	if err = matched(res); err != nil {
		return fmt.Errorf("code %s: %w", code.Code, err)
	}
	t.touched[store.CollectionCodes] = true
	return nil
}

func (t *tx) InsertRequest(ctx context.Context, r *entity.MentorRequest) error {
	query := fmt.Sprintf(`INSERT INTO %s
		(id, email, user_id, name, code, status, requested_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, t.s.table("mentor_requests"))
	_, err := t.tx.ExecContext(ctx, query,
		r.Id, r.Email, r.UserId, r.Name, r.Code, string(r.Status),
		clock.Millis(r.RequestedAt), clock.Millis(time.Now()))
	if err != nil {
		if t.s.d.isDuplicate(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert request: %w", err)
	}
	t.touched[store.CollectionRequests] = true
	return nil
}

func (t *tx) SetRequestStatus(ctx context.Context, id string, status entity.RequestStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, updated_at = ? WHERE id = ?`, t.s.table("mentor_requests"))
	res, err := t.tx.ExecContext(ctx, query, string(status), clock.Millis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if err = matched(res); err != nil {
		return fmt.Errorf("request %s: %w", id, err)
	}
	t.touched[store.CollectionRequests] = true
	return nil
}

// matched turns an update that hit no row into store.ErrNotFound.
func matched(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
