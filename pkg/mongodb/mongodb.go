package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Config struct {
	URI      string        `yaml:"MONGODB_URI"      env:"MONGODB_URI"      env-default:"mongodb://localhost:27017"`
	Database string        `yaml:"MONGODB_DATABASE" env:"MONGODB_DATABASE" env-default:"messenger"`
	Timeout  time.Duration `yaml:"MONGODB_TIMEOUT"  env:"MONGODB_TIMEOUT"  env-default:"10s"`
}

// New connects and pings the server, returning the configured database.
func New(ctx context.Context, config Config) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI).SetTimeout(config.Timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongodb: ping: %w", err)
	}
	return client, client.Database(config.Database), nil
}
