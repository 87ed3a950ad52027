package types

import (
	"context"

	"github.com/xhad/soilreport/internal/models"
)

// StreamFunc receives reply fragments as the model produces them.
type StreamFunc func(chunk string)

// Core interfaces
type Extractor interface {
	Extract(path string) (string, error)
}

type Analyst interface {
	Summarize(ctx context.Context, document string) (string, error)
	Answer(ctx context.Context, summary, question string, stream StreamFunc) (string, error)
	Recommend(ctx context.Context, summary string, stream StreamFunc) (string, error)
}

type SessionStore interface {
	Get(ctx context.Context, id string) (models.Session, bool, error)
	Set(ctx context.Context, id, summary, source string) error
	Delete(ctx context.Context, id string) error
	Close()
}
