package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/fa-sharp/rschat-relay/internal/catalog"
)

const (
	defaultProvidersCollection = "providers"
	defaultToolsCollection     = "tools"
)

type providerDocument struct {
	ID              string    `bson:"_id"`
	UserID          string    `bson:"user_id"`
	Name            string    `bson:"name"`
	Kind            string    `bson:"kind"`
	EncryptedAPIKey string    `bson:"encrypted_api_key"`
	BaseURL         string    `bson:"base_url,omitempty"`
	CreatedAt       time.Time `bson:"created_at"`
}

func (doc providerDocument) toProvider() catalog.Provider {
	return catalog.Provider{
		ID: doc.ID, UserID: doc.UserID, Name: doc.Name, Kind: doc.Kind,
		EncryptedAPIKey: doc.EncryptedAPIKey, BaseURL: doc.BaseURL, CreatedAt: doc.CreatedAt.UTC(),
	}
}

type toolDocument struct {
	ID       string `bson:"_id"`
	UserID   string `bson:"user_id,omitempty"`
	Name     string `bson:"name"`
	ToolType string `bson:"tool_type"`
	Config   []byte `bson:"config,omitempty"`
}

func (doc toolDocument) toToolConfig() catalog.ToolConfig {
	return catalog.ToolConfig{ID: doc.ID, UserID: doc.UserID, Name: doc.Name, ToolType: doc.ToolType, Config: doc.Config}
}

// CatalogStore implements catalog.Store against MongoDB, mirroring
// MongoStore's collection-wrapper and index-on-startup pattern.
type CatalogStore struct {
	providers collection
	tools     collection
	timeout   time.Duration
}

// NewCatalogStore returns a catalog.Store backed by MongoDB, ensuring its
// indexes exist.
func NewCatalogStore(ctx context.Context, opts Options) (*CatalogStore, error) {
	if opts.Client == nil {
		return nil, errors.New("store: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("store: database name is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	providersColl := mongoCollection{coll: opts.Client.Database(opts.Database).Collection(defaultProvidersCollection)}
	toolsColl := mongoCollection{coll: opts.Client.Database(opts.Database).Collection(defaultToolsCollection)}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	userIndex := mongodriver.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}}
	if _, err := providersColl.Indexes().CreateOne(ctxTimeout, userIndex); err != nil {
		return nil, err
	}
	if _, err := toolsColl.Indexes().CreateOne(ctxTimeout, userIndex); err != nil {
		return nil, err
	}
	return &CatalogStore{providers: providersColl, tools: toolsColl, timeout: timeout}, nil
}

func (s *CatalogStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// CreateProvider inserts a new provider record.
func (s *CatalogStore) CreateProvider(ctx context.Context, p catalog.Provider) (catalog.Provider, error) {
	if p.ID == "" {
		return catalog.Provider{}, errors.New("store: provider id is required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	doc := providerDocument{
		ID: p.ID, UserID: p.UserID, Name: p.Name, Kind: p.Kind,
		EncryptedAPIKey: p.EncryptedAPIKey, BaseURL: p.BaseURL, CreatedAt: p.CreatedAt,
	}
	if _, err := s.providers.InsertOne(ctxT, doc); err != nil {
		return catalog.Provider{}, err
	}
	return p, nil
}

// GetProvider fetches a provider scoped to userID.
func (s *CatalogStore) GetProvider(ctx context.Context, userID, providerID string) (catalog.Provider, error) {
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc providerDocument
	filter := bson.M{"_id": providerID, "user_id": userID}
	if err := s.providers.FindOne(ctxT, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return catalog.Provider{}, catalog.ErrProviderNotFound
		}
		return catalog.Provider{}, err
	}
	return doc.toProvider(), nil
}

// ListProviders returns every provider owned by userID.
func (s *CatalogStore) ListProviders(ctx context.Context, userID string) ([]catalog.Provider, error) {
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.providers.Find(ctxT, bson.M{"user_id": userID}, options.Find())
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctxT) }()
	var out []catalog.Provider
	for cur.Next(ctxT) {
		var doc providerDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toProvider())
	}
	return out, cur.Err()
}

// DeleteProvider removes a provider scoped to userID.
func (s *CatalogStore) DeleteProvider(ctx context.Context, userID, providerID string) error {
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.providers.DeleteOne(ctxT, bson.M{"_id": providerID, "user_id": userID})
	return err
}

// CreateTool inserts a new tool configuration record.
func (s *CatalogStore) CreateTool(ctx context.Context, t catalog.ToolConfig) (catalog.ToolConfig, error) {
	if t.ID == "" {
		return catalog.ToolConfig{}, errors.New("store: tool id is required")
	}
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	doc := toolDocument{ID: t.ID, UserID: t.UserID, Name: t.Name, ToolType: t.ToolType, Config: t.Config}
	if _, err := s.tools.InsertOne(ctxT, doc); err != nil {
		return catalog.ToolConfig{}, err
	}
	return t, nil
}

// ListTools returns every tool configuration owned by userID.
func (s *CatalogStore) ListTools(ctx context.Context, userID string) ([]catalog.ToolConfig, error) {
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.tools.Find(ctxT, bson.M{"user_id": userID}, options.Find())
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctxT) }()
	var out []catalog.ToolConfig
	for cur.Next(ctxT) {
		var doc toolDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toToolConfig())
	}
	return out, cur.Err()
}

// DeleteTool removes a tool configuration scoped to userID.
func (s *CatalogStore) DeleteTool(ctx context.Context, userID, toolID string) error {
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.tools.DeleteOne(ctxT, bson.M{"_id": toolID, "user_id": userID})
	return err
}
