package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mechevo/simulator/internal/config"
	"github.com/mechevo/simulator/internal/database"
	"github.com/mechevo/simulator/internal/logging"
	"github.com/mechevo/simulator/internal/storage/memory"
	pgstorage "github.com/mechevo/simulator/internal/storage/postgres"
	sqlitestorage "github.com/mechevo/simulator/internal/storage/sqlite"
	wsstorage "github.com/mechevo/simulator/internal/storage/websocket"
)

// Dependencies holds what the backends need besides their config.
type Dependencies struct {
	LogManager *logging.SlogManager
	DBManager  *database.Manager
	Tag        string
	// ServerURL is the viewer's http address, used when no stream url is configured.
	ServerURL  string
}

// StreamPath is where the viewer accepts live runs.
const StreamPath = "/api/v1/stream"

// NewBackend creates a storage backend based on configuration.
// The backend is not initialized; callers must call Init.
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.DBManager == nil {
		deps.DBManager = database.NewManager(deps.LogManager.Zerolog())
	}

	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return memory.New(cfg.Memory, deps.Tag), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     cfg.SQLite.Path,
			Tag:          deps.Tag,
		}, deps.DBManager, deps.LogManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return backend, nil

	case "postgres":
		return pgstorage.New(pgstorage.Config{
			Connection: cfg.Postgres,
			Tag:        deps.Tag,
		}, deps.DBManager, deps.LogManager), nil

	case "websocket":
		url, err := StreamURL(cfg.WebSocket, deps.ServerURL)
		if err != nil {
			return nil, err
		}
		wsCfg := cfg.WebSocket
		wsCfg.URL = url
		return wsstorage.New(wsCfg, deps.Tag, deps.LogManager.Logger()), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// StreamURL returns the configured websocket url, or the viewer's stream
// endpoint derived from serverURL when none is set.
func StreamURL(cfg config.WebSocketConfig, serverURL string) (string, error) {
	if cfg.URL != "" {
		return cfg.URL, nil
	}
	if serverURL == "" {
		return "", errors.New("websocket storage needs storage.websocket.url or api.serverUrl")
	}
	return HTTPToWS(serverURL) + StreamPath, nil
}

// HTTPToWS converts an HTTP(S) URL to a WebSocket URL.
func HTTPToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
