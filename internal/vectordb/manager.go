// Package vectordb owns the process's connection to the vector store and
// exposes the collection-scoped operations the rest of the system is built
// on. Exactly one client is constructed per process: [Manager] dials lazily
// on first use and every component receives the same handle by injection,
// never through a package-level global. Creating parallel clients exhausts
// the backend's connection pool, which is the failure mode this layout
// exists to prevent.
package vectordb

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

// Config holds connection parameters for the vector store.
type Config struct {
	// Host is the vector store hostname.
	Host string

	// Port is the vector store gRPC port.
	Port int

	// APIKey is the optional API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Manager provides the single shared vector store client. The zero value is
// not usable; construct with [NewManager].
type Manager struct {
	cfg Config

	once   sync.Once
	client *qdrant.Client
	err    error
}

// NewManager returns a Manager that will dial cfg on first use. No network
// activity happens until [Manager.Client] is called.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Client returns the shared client, constructing it on first call. The
// construction outcome is latched: a failed first attempt is returned to
// every subsequent caller rather than retried, so retry policy stays with
// the invoking workflow.
func (m *Manager) Client(ctx context.Context) (*qdrant.Client, error) {
	m.once.Do(func() {
		client, err := qdrant.NewClient(&qdrant.Config{
			Host:   m.cfg.Host,
			Port:   m.cfg.Port,
			APIKey: m.cfg.APIKey,
			UseTLS: m.cfg.UseTLS,
		})
		if err != nil {
			m.err = fmt.Errorf("vectordb: failed to create client for %s:%d: %w", m.cfg.Host, m.cfg.Port, err)
			return
		}
		m.client = client
	})
	if m.err != nil {
		return nil, m.err
	}
	return m.client, nil
}

// Ping verifies the backend is reachable. Satisfies the server's readiness
// check interface.
func (m *Manager) Ping(ctx context.Context) error {
	client, err := m.Client(ctx)
	if err != nil {
		return err
	}
	if _, err := client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("vectordb: health check against %s:%d failed: %w", m.cfg.Host, m.cfg.Port, err)
	}
	return nil
}

// Name identifies this dependency in readiness reports.
func (m *Manager) Name() string { return "vectordb" }

// Addr returns the configured host:port for logging.
func (m *Manager) Addr() string {
	return fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
}

// Close releases the underlying connection if one was ever established.
func (m *Manager) Close() error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}
