package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"

	"mentorgate/entity"
	"mentorgate/internal/store"
	"mentorgate/lib/clock"
)

func (s *SqlStore) GetUser(token string) (*entity.User, error) {
	stmt, err := s.stmtSelectUserByToken()
	if err != nil {
		return nil, err
	}
	user, err := scanUser(stmt.QueryRow(token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return user, err
}

func (s *SqlStore) GetTelegramUsers() ([]*entity.User, error) {
	stmt, err := s.stmtSelectTelegramUsers()
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query()
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SaveUser inserts the user or refreshes identity, token and role of an existing one.
// Telegram preferences of an existing user are kept.
func (s *SqlStore) SaveUser(user *entity.User) error {
	stmt, err := s.stmtUpsertUser()
	if err != nil {
		return err
	}
	_, err = stmt.Exec(
		user.Username,
		user.Name,
		user.Email,
		user.Token,
		string(user.Role),
		user.TelegramId,
		user.TelegramUsername,
		user.TelegramEnabled,
		user.LogLevel,
		clock.Millis(user.RegisteredAt),
	)
	if err != nil {
		if s.d.isDuplicate(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *SqlStore) SetTelegramEnabled(telegramId int64, enabled bool, logLevel int) error {
	stmt, err := s.stmtUpdateTelegramEnabled()
	if err != nil {
		return err
	}
	_, err = stmt.Exec(enabled, logLevel, telegramId)
	return err
}

func scanUser(row rowScanner) (*entity.User, error) {
	var u entity.User
	var role string
	var registeredAt int64
	if err := row.Scan(
		&u.Username,
		&u.Name,
		&u.Email,
		&u.Token,
		&role,
		&u.TelegramId,
		&u.TelegramUsername,
		&u.TelegramEnabled,
		&u.LogLevel,
		&registeredAt,
	); err != nil {
		return nil, err
	}
	u.Role = entity.Role(role)
	u.RegisteredAt = clock.FromMillis(registeredAt)
	return &u, nil
}
