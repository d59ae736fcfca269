package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mentorgate/entity"
	"mentorgate/internal/config"
	"mentorgate/internal/store"
	"mentorgate/lib/sl"
)

var (
	ErrUnknownToken = errors.New("unknown token")
	ErrNoRole       = errors.New("user has no role")
)

type Database interface {
	GetUser(token string) (*entity.User, error)
	SaveUser(user *entity.User) error
}

type Auth struct {
	db  Database
	log *slog.Logger
}

func New(db Database, log *slog.Logger) *Auth {
	return &Auth{
		db:  db,
		log: log.With(sl.Module("impl.auth")),
	}
}

func (a *Auth) UserByToken(token string) (*entity.User, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	user, err := a.db.GetUser(token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownToken
	}
	if err != nil {
		return nil, err
	}
	if user.Role == entity.RoleNone {
		return nil, ErrNoRole
	}
	return user, nil
}

// Seed upserts the principals listed in the configuration. Invalid entries are skipped
// and reported; the number of saved users is returned.
func (a *Auth) Seed(users []config.UserConfig) (int, error) {
	if a.db == nil {
		return 0, fmt.Errorf("database not connected")
	}
	var errs []error
	saved := 0
	for _, uc := range users {
		user := &entity.User{
			Username:     strings.TrimSpace(uc.Username),
			Name:         uc.Name,
			Email:        uc.Email,
			Token:        uc.Token,
			Role:         entity.Role(uc.Role),
			TelegramId:   uc.TelegramId,
			RegisteredAt: time.Now().UTC(),
		}
		log := a.log.With(slog.String("user", user.Username), sl.Secret("token", user.Token))
		if err := user.Bind(nil); err != nil {
			log.Warn("invalid user in config", sl.Err(err))
			errs = append(errs, fmt.Errorf("user %q: %w", user.Username, err))
			continue
		}
		if err := a.db.SaveUser(user); err != nil {
			log.Error("save user", sl.Err(err))
			errs = append(errs, fmt.Errorf("user %q: %w", user.Username, err))
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}
