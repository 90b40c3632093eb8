package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Connector owns the process-wide client. It connects on first use and
// reuses the connection afterwards.
type Connector struct {
	uri      string
	database string

	mu     sync.Mutex
	client *mongo.Client
}

func NewConnector(uri, database string) *Connector {
	return &Connector{uri: uri, database: database}
}

// Database returns the configured database, connecting if needed.
func (c *Connector) Database(ctx context.Context) (*mongo.Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client.Database(c.database), nil
	}

	opts := options.Client().
		ApplyURI(c.uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	log.WithField("database", c.database).Info("connected to mongo")
	c.client = client
	return client.Database(c.database), nil
}

// Disconnect closes the client if one was opened.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Disconnect(ctx)
	c.client = nil
	return err
}
