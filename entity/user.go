package entity

import (
	"net/http"
	"time"

	"mentorgate/lib/validate"
)

// Role controls which API operations a principal may call.
type Role string

const (
	RoleNone    Role = ""        // unknown or revoked
	RoleService Role = "service" // sign-up layer; may only redeem codes
	RoleAdmin   Role = "admin"   // issues codes and decides requests
)

// User is an API principal (Token-based auth) and, for admins, a Telegram bot subscriber.
type User struct {
	Username         string    `json:"username" bson:"username" validate:"required"`
	Name             string    `json:"name" bson:"name" validate:"omitempty"`
	Email            string    `json:"email" bson:"email" validate:"omitempty,email"`
	Token            string    `json:"token" bson:"token" validate:"required,min=16"`
	Role             Role      `json:"role" bson:"role" validate:"oneof=admin service"`
	TelegramId       int64     `json:"telegram_id" bson:"telegram_id" validate:"omitempty"`
	TelegramUsername string    `json:"telegram_username" bson:"telegram_username"`
	TelegramEnabled  bool      `json:"telegram_enabled" bson:"telegram_enabled"`
	LogLevel         int       `json:"log_level" bson:"log_level"`
	RegisteredAt     time.Time `json:"registered_at" bson:"registered_at"`
}

func (u *User) Bind(_ *http.Request) error {
	return validate.Struct(u)
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanRedeem reports whether the user may submit redemptions on behalf of applicants.
func (u *User) CanRedeem() bool {
	return u.Role == RoleAdmin || u.Role == RoleService
}
