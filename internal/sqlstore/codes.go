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

// CreateCode inserts a new unused code. The primary key rejects an existing code, so
// concurrent creates of one code end in exactly one row and store.ErrDuplicate for the rest.
func (s *SqlStore) CreateCode(ctx context.Context, code *entity.MentorCode) error {
	return s.RunTx(ctx, func(ctx context.Context, t store.Tx) error {
		return t.InsertCode(ctx, code)
	})
}

func (s *SqlStore) GetCode(ctx context.Context, code string) (*entity.MentorCode, error) {
	stmt, err := s.stmtSelectCode()
	if err != nil {
		return nil, err
	}
	mc, err := scanCode(stmt.QueryRowContext(ctx, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return mc, err
}

func (s *SqlStore) FindCodes(ctx context.Context, q store.Query) ([]*entity.MentorCode, error) {
	var rows *sql.Rows
	if q.Ordered {
		stmt, err := s.stmtSelectCodesOrdered()
		if err != nil {
			return nil, err
		}
		rows, err = stmt.QueryContext(ctx, q.Limit)
		if err != nil {
			return nil, fmt.Errorf("select codes: %w", err)
		}
	} else {
		stmt, err := s.stmtSelectCodesAll()
		if err != nil {
			return nil, err
		}
		rows, err = stmt.QueryContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("select codes: %w", err)
		}
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	codes := make([]*entity.MentorCode, 0)
	for rows.Next() {
		mc, err := scanCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("after scanning rows: %w", err)
	}
	return codes, nil
}

func scanCode(row rowScanner) (*entity.MentorCode, error) {
	var mc entity.MentorCode
	var status string
	var createdAt int64
	var userId, email, name sql.NullString
	var usedAt sql.NullInt64
	if err := row.Scan(&mc.Code, &status, &createdAt, &userId, &email, &name, &usedAt); err != nil {
		return nil, err
	}
	mc.Status = entity.CodeStatus(status)
	mc.CreatedAt = clock.FromMillis(createdAt)
	if userId.Valid {
		mc.AssignedTo = &entity.Applicant{
			UserId: userId.String,
			Email:  email.String,
			Name:   name.String,
		}
	}
	if usedAt.Valid {
		t := clock.FromMillis(usedAt.Int64)
		mc.UsedAt = &t
	}
	return &mc, nil
}

// codeArgs flattens a code into column values after the key column.
func codeArgs(mc *entity.MentorCode) []any {
	var userId, email, name sql.NullString
	if mc.AssignedTo != nil {
		userId = sql.NullString{String: mc.AssignedTo.UserId, Valid: true}
		email = sql.NullString{String: mc.AssignedTo.Email, Valid: true}
		name = sql.NullString{String: mc.AssignedTo.Name, Valid: true}
	}
	var usedAt sql.NullInt64
	if mc.UsedAt != nil {
		usedAt = sql.NullInt64{Int64: clock.Millis(*mc.UsedAt), Valid: true}
	}
	return []any{
		string(mc.Status),
		clock.Millis(mc.CreatedAt),
		userId,
		email,
		name,
		usedAt,
		clock.Millis(time.Now()),
	}
}
