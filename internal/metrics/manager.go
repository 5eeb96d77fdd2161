// Package metrics reads traffic measurements from MongoDB and shapes them
// into chart-ready payloads. Documents are written by the detection
// pipeline; this package only aggregates.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smartcitybq/traffic-admin/internal/config"
)

// connectTimeout bounds Mongo server selection and the initial ping.
const connectTimeout = 5 * time.Second

// Manager owns the Mongo client for the metrics collection. Connection is
// established lazily on first use so the HTTP server can start while Mongo
// is unreachable; each request retries until a connection sticks.
type Manager struct {
	cfg config.MongoConfig

	mu     sync.Mutex
	client *mongo.Client
	coll   *mongo.Collection
}

// NewManager builds a Manager from Mongo settings. No connection is made.
func NewManager(cfg config.MongoConfig) *Manager {
	return &Manager{cfg: cfg}
}

// collection returns the metrics collection, connecting on first use. The
// double check under the mutex keeps concurrent first requests from racing
// a second connect.
func (m *Manager) collection(ctx context.Context) (*mongo.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.coll != nil {
		return m.coll, nil
	}
	if m.cfg.URI == "" {
		return nil, fmt.Errorf("metrics: mongo uri not configured")
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(m.cfg.URI).
		SetServerSelectionTimeout(connectTimeout).
		SetConnectTimeout(connectTimeout).
		SetMaxPoolSize(10).
		SetRetryWrites(true)

	client, errConnect := mongo.Connect(connectCtx, opts)
	if errConnect != nil {
		return nil, fmt.Errorf("metrics: connect mongo: %w", errConnect)
	}
	if errPing := client.Ping(connectCtx, nil); errPing != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("metrics: ping mongo: %w", errPing)
	}

	m.client = client
	m.coll = client.Database(m.cfg.Database).Collection(m.cfg.Collection)
	log.Infof("connected to mongo database %s", m.cfg.Database)

	if errIndexes := m.ensureIndexes(connectCtx); errIndexes != nil {
		log.WithError(errIndexes).Warn("mongo index creation failed")
	}
	return m.coll, nil
}

// ensureIndexes creates the query indexes used by the chart aggregations.
func (m *Manager) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "location_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_location_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "location_id", Value: 1}},
			Options: options.Index().SetName("idx_location_id"),
		},
		{
			Keys:    bson.D{{Key: "vehicle_count", Value: -1}},
			Options: options.Index().SetName("idx_vehicle_count"),
		},
		{
			Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
			Options: options.Index().SetName("idx_location_geo"),
		},
	}
	if _, errCreate := m.coll.Indexes().CreateMany(ctx, indexes); errCreate != nil {
		return fmt.Errorf("metrics: create indexes: %w", errCreate)
	}
	return nil
}

// Ping verifies the Mongo connection, connecting first when needed.
func (m *Manager) Ping(ctx context.Context) error {
	if _, errColl := m.collection(ctx); errColl != nil {
		return errColl
	}
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return fmt.Errorf("metrics: mongo client closed")
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if errPing := client.Ping(pingCtx, nil); errPing != nil {
		return fmt.Errorf("metrics: ping mongo: %w", errPing)
	}
	return nil
}

// Close disconnects the Mongo client.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	errDisconnect := m.client.Disconnect(ctx)
	m.client = nil
	m.coll = nil
	return errDisconnect
}
