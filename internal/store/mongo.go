// Package store provides the MongoDB-backed session.Store implementation,
// adapted from the teacher's features/session/mongo client: the same
// testability-wrapper-interface shape and $setOnInsert idempotent-upsert
// pattern, applied to the Session/Message documents this spec defines.
//
// The teacher's own client.go imports the pre-v2 "go.mongodb.org/mongo-driver/
// {bson,mongo}" paths despite its go.mod declaring the v2 module; this
// implementation uses the correct ".../mongo-driver/v2/..." import paths
// throughout (see DESIGN.md).
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/fa-sharp/rschat-relay/internal/session"
)

const (
	defaultSessionsCollection = "chat_sessions"
	defaultMessagesCollection = "chat_messages"
	defaultOpTimeout          = 5 * time.Second
)

// Options configures the Mongo-backed Store.
type Options struct {
	Client             *mongodriver.Client
	Database           string
	SessionsCollection string
	MessagesCollection string
	Timeout            time.Duration
}

// MongoStore implements session.Store against MongoDB.
type MongoStore struct {
	sessions collection
	messages collection
	timeout  time.Duration
}

// New returns a session.Store backed by MongoDB, ensuring its indexes exist.
func New(ctx context.Context, opts Options) (*MongoStore, error) {
	if opts.Client == nil {
		return nil, errors.New("store: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("store: database name is required")
	}
	sessionsName := opts.SessionsCollection
	if sessionsName == "" {
		sessionsName = defaultSessionsCollection
	}
	messagesName := opts.MessagesCollection
	if messagesName == "" {
		messagesName = defaultMessagesCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	sessColl := mongoCollection{coll: opts.Client.Database(opts.Database).Collection(sessionsName)}
	msgColl := mongoCollection{coll: opts.Client.Database(opts.Database).Collection(messagesName)}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ensureIndexes(ctxTimeout, sessColl, msgColl); err != nil {
		return nil, err
	}
	return &MongoStore{sessions: sessColl, messages: msgColl, timeout: timeout}, nil
}

func ensureIndexes(ctx context.Context, sessions, messages collection) error {
	userIndex := mongodriver.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}}
	if _, err := sessions.Indexes().CreateOne(ctx, userIndex); err != nil {
		return err
	}
	messageOrderIndex := mongodriver.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}},
	}
	if _, err := messages.Indexes().CreateOne(ctx, messageOrderIndex); err != nil {
		return err
	}
	return nil
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// CreateSession is an idempotent insert: calling it twice with the same ID
// returns the existing session without modifying it, mirroring the teacher's
// $setOnInsert-only pattern.
func (s *MongoStore) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	if sess.ID == "" {
		return session.Session{}, errors.New("store: session id is required")
	}
	now := time.Now().UTC()
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": sess.ID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        sess.ID,
			"user_id":    sess.UserID,
			"title":      sess.Title,
			"meta":       sess.Meta,
			"created_at": now,
			"updated_at": now,
		},
	}
	if _, err := s.sessions.UpdateOne(ctxT, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return session.Session{}, err
	}
	return s.GetSession(ctx, sess.UserID, sess.ID)
}

func (s *MongoStore) GetSession(ctx context.Context, userID, sessionID string) (session.Session, error) {
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc sessionDocument
	filter := bson.M{"_id": sessionID, "user_id": userID}
	if err := s.sessions.FindOne(ctxT, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return session.Session{}, session.ErrSessionNotFound
		}
		return session.Session{}, err
	}
	return doc.toSession(), nil
}

func (s *MongoStore) ListSessions(ctx context.Context, userID string) ([]session.Session, error) {
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.sessions.Find(ctxT, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctxT) }()
	var out []session.Session
	for cur.Next(ctxT) {
		var doc sessionDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toSession())
	}
	return out, cur.Err()
}

func (s *MongoStore) DeleteSession(ctx context.Context, userID, sessionID string) error {
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.sessions.DeleteOne(ctxT, bson.M{"_id": sessionID, "user_id": userID})
	return err
}

func (s *MongoStore) UpdateSessionTitle(ctx context.Context, userID, sessionID, title string) error {
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"_id": sessionID, "user_id": userID}
	update := bson.M{"$set": bson.M{"title": title, "updated_at": time.Now().UTC()}}
	_, err := s.sessions.UpdateOne(ctxT, filter, update)
	return err
}

func (s *MongoStore) AppendMessage(ctx context.Context, m session.Message) (session.Message, error) {
	if m.ID == "" {
		return session.Message{}, errors.New("store: message id is required")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	doc := fromMessage(m)
	if _, err := s.messages.InsertOne(ctxT, doc); err != nil {
		return session.Message{}, err
	}
	ctxT2, cancel2 := s.withTimeout(ctx)
	defer cancel2()
	_, _ = s.sessions.UpdateOne(ctxT2, bson.M{"_id": m.SessionID},
		bson.M{"$set": bson.M{"updated_at": m.CreatedAt}})
	return m, nil
}

func (s *MongoStore) GetMessage(ctx context.Context, sessionID, messageID string) (session.Message, error) {
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc messageDocument
	filter := bson.M{"_id": messageID, "session_id": sessionID}
	if err := s.messages.FindOne(ctxT, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return session.Message{}, session.ErrMessageNotFound
		}
		return session.Message{}, err
	}
	return doc.toMessage(), nil
}

func (s *MongoStore) ListMessages(ctx context.Context, sessionID string) ([]session.Message, error) {
	ctxT, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.messages.Find(ctxT, bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctxT) }()
	var out []session.Message
	for cur.Next(ctxT) {
		var doc messageDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toMessage())
	}
	return out, cur.Err()
}
