package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/campaignly/auth-service/internal/config"
)

const connectTimeout = 15 * time.Second

// ConnectMongo dials the cluster, verifies it with a ping and returns the
// service database plus the client for shutdown.
func ConnectMongo(cfg config.MongoCfg, logger *zap.SugaredLogger) (*mongo.Database, *mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Infow("MongoDB connected", "database", cfg.Database)
	return client.Database(cfg.Database), client, nil
}
