// Package archive stores sealed snapshots of organizations before they are
// hard-deleted.
package archive

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agricoop/pkg/config"
)

// Archiver writes one object and returns where it landed.
type Archiver interface {
	Name() string
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// New builds the archiver selected by cfg.Provider.
func New(ctx context.Context, cfg config.ArchiveConfig) (Archiver, error) {
	switch cfg.Provider {
	case "", "none":
		return Discard{}, nil
	case "s3":
		return NewS3(ctx, cfg)
	case "gcs":
		return NewGCS(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Provider)
	}
}

// Key names the archive object of an organization.
func Key(prefix string, orgID uuid.UUID, subdomain string, at time.Time) string {
	return path.Join(prefix, subdomain, fmt.Sprintf("%s-%s.json.age", at.UTC().Format("20060102T150405Z"), orgID))
}

// Discard accepts and drops every object.
type Discard struct{}

func (Discard) Name() string { return "none" }

func (Discard) Put(_ context.Context, key string, _ []byte) (string, error) {
	return "discard://" + key, nil
}

// Memory keeps objects in process, for tests and local runs.
type Memory struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{Objects: make(map[string][]byte)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Put(_ context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = append([]byte(nil), data...)
	return "memory://" + key, nil
}
