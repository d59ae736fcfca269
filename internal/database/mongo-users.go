package database

import (
	"context"
	"fmt"

	"mentorgate/entity"
	"mentorgate/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *MongoDB) GetUser(token string) (*entity.User, error) {
	ctx, cancel := m.getContext(context.Background())
	defer cancel()

	filter := bson.D{{"token", token}}
	var user entity.User
	if err := m.collection(store.CollectionUsers).FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, m.findError(err)
	}
	return &user, nil
}

func (m *MongoDB) GetTelegramUsers() ([]*entity.User, error) {
	ctx, cancel := m.getContext(context.Background())
	defer cancel()

	filter := bson.D{{"telegram_id", bson.D{{"$gt", 0}}}}
	cursor, err := m.collection(store.CollectionUsers).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*entity.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SaveUser upserts by username. Telegram preferences of an existing user are kept.
func (m *MongoDB) SaveUser(user *entity.User) error {
	ctx, cancel := m.getContext(context.Background())
	defer cancel()

	filter := bson.D{{"username", user.Username}}
	update := bson.D{
		{"$set", bson.D{
			{"name", user.Name},
			{"email", user.Email},
			{"token", user.Token},
			{"role", user.Role},
			{"telegram_id", user.TelegramId},
		}},
		{"$setOnInsert", bson.D{
			{"telegram_username", user.TelegramUsername},
			{"telegram_enabled", user.TelegramEnabled},
			{"log_level", user.LogLevel},
			{"registered_at", user.RegisteredAt},
		}},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := m.collection(store.CollectionUsers).UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("mongodb save user: %w", err)
	}
	return nil
}

func (m *MongoDB) SetTelegramEnabled(id int64, isActive bool, logLevel int) error {
	ctx, cancel := m.getContext(context.Background())
	defer cancel()

	filter := bson.D{{"telegram_id", id}}
	update := bson.D{{"$set", bson.D{
		{"telegram_enabled", isActive},
		{"log_level", logLevel},
	}}}
	_, err := m.collection(store.CollectionUsers).UpdateOne(ctx, filter, update)
	return err
}

var _ store.UserStore = (*MongoDB)(nil)
