package database

import (
	"context"
	"fmt"
	"log/slog"

	"mentorgate/internal/store"
	"mentorgate/lib/sl"

	"go.mongodb.org/mongo-driver/mongo"
)

// Changes opens a change stream on the collection. Each event becomes one (coalesced) feed
// signal; consumers re-read the collection to build a snapshot.
func (m *MongoDB) Changes(ctx context.Context, collection string) (*store.Feed, error) {
	if collection != store.CollectionCodes && collection != store.CollectionRequests {
		return nil, fmt.Errorf("changes: unknown collection %q", collection)
	}
	stream, err := m.collection(collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("mongodb watch %s: %w", collection, err)
	}

	feed := store.NewFeed()
	log := m.log.With(slog.String("collection", collection))

	go func() {
		defer func() {
			_ = stream.Close(context.Background())
		}()
		for stream.Next(ctx) {
			feed.Notify()
		}
		if ctx.Err() != nil {
			feed.Stop(nil)
			return
		}
		err := stream.Err()
		if err != nil {
			log.Warn("change stream ended", sl.Err(err))
		}
		feed.Stop(err)
	}()
	return feed, nil
}
