package store

import (
	"time"

	"github.com/fa-sharp/rschat-relay/internal/session"
)

type sessionDocument struct {
	ID        string         `bson:"_id"`
	UserID    string         `bson:"user_id"`
	Title     string         `bson:"title"`
	Meta      map[string]any `bson:"meta,omitempty"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

func (doc sessionDocument) toSession() session.Session {
	return session.Session{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Title:     doc.Title,
		Meta:      doc.Meta,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
}

type messageDocument struct {
	ID        string              `bson:"_id"`
	SessionID string              `bson:"session_id"`
	Role      session.Role        `bson:"role"`
	Content   string              `bson:"content"`
	Meta      session.MessageMeta `bson:"meta,omitempty"`
	CreatedAt time.Time           `bson:"created_at"`
}

func fromMessage(m session.Message) messageDocument {
	return messageDocument{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      m.Role,
		Content:   m.Content,
		Meta:      m.Meta,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func (doc messageDocument) toMessage() session.Message {
	return session.Message{
		ID:        doc.ID,
		SessionID: doc.SessionID,
		Role:      doc.Role,
		Content:   doc.Content,
		Meta:      doc.Meta,
		CreatedAt: doc.CreatedAt.UTC(),
	}
}
