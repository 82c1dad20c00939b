package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	appName     = "fulfillment-service"
	pingTimeout = 5 * time.Second
)

// ConnectMongoDB opens a client for uri and returns database once the
// primary answers a ping.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName(appName).
		SetRetryWrites(true).
		SetConnectTimeout(10*time.Second).
		SetServerSelectionTimeout(pingTimeout).
		SetMaxPoolSize(100).
		SetMinPoolSize(10))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", database, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping %s: %w", database, err)
	}

	return client.Database(database), nil
}
