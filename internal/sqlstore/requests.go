package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mentorgate/entity"
	"mentorgate/internal/store"
	"mentorgate/lib/clock"
)

func (s *SqlStore) GetRequest(ctx context.Context, id string) (*entity.MentorRequest, error) {
	stmt, err := s.stmtSelectRequest()
	if err != nil {
		return nil, err
	}
	r, err := scanRequest(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return r, err
}

func (s *SqlStore) FindRequests(ctx context.Context, q store.Query) ([]*entity.MentorRequest, error) {
	var rows *sql.Rows
	if q.Ordered {
		stmt, err := s.stmtSelectRequestsOrdered()
		if err != nil {
			return nil, err
		}
		rows, err = stmt.QueryContext(ctx, q.Limit)
		if err != nil {
			return nil, fmt.Errorf("select requests: %w", err)
		}
	} else {
		stmt, err := s.stmtSelectRequestsAll()
		if err != nil {
			return nil, err
		}
		rows, err = stmt.QueryContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("select requests: %w", err)
		}
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	requests := make([]*entity.MentorRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("after scanning rows: %w", err)
	}
	return requests, nil
}

func scanRequest(row rowScanner) (*entity.MentorRequest, error) {
	var r entity.MentorRequest
	var status string
	var requestedAt int64
	if err := row.Scan(&r.Id, &r.Email, &r.UserId, &r.Name, &r.Code, &status, &requestedAt); err != nil {
		return nil, err
	}
	r.Status = entity.RequestStatus(status)
	r.RequestedAt = clock.FromMillis(requestedAt)
	return &r, nil
}
