package lambda

import (
	"context"
	"fmt"
	"sync"
	"time"

	"message-functions/internal/config"
	"message-functions/pkg/server"
)

// IdleRecheckAfter is how long a container may sit unused before its store is
// health checked again on the next invocation
const IdleRecheckAfter = 5 * time.Minute

// ConnectionManager keeps one dependency container per Lambda execution
// environment so warm invocations reuse the store client
type ConnectionManager struct {
	container *server.Container
	lastUsed  time.Time
	mu        sync.Mutex

	// loadConfig defaults to config.GetOptimizedConfig
	loadConfig func() (*config.Config, error)
}

var (
	globalConnectionManager *ConnectionManager
	connectionManagerOnce   sync.Once
)

// GetConnectionManager returns the global connection manager instance
func GetConnectionManager() *ConnectionManager {
	connectionManagerOnce.Do(func() {
		globalConnectionManager = &ConnectionManager{}
	})
	return globalConnectionManager
}

// GetContainer returns the service container, building it on first use.
// A container idle for longer than IdleRecheckAfter is reused only if its store
// still passes a health check; otherwise it is closed and rebuilt. A failed build
// is retried on the next invocation.
func (cm *ConnectionManager) GetContainer(ctx context.Context) (*server.Container, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.container != nil {
		if cm.isHealthy(ctx) {
			cm.lastUsed = time.Now()
			return cm.container, nil
		}

		cm.container.Logger.Warn("Store health check failed after idle period, rebuilding container")
		if err := cm.cleanup(); err != nil {
			cm.container = nil
			return nil, fmt.Errorf("failed to close stale container: %w", err)
		}
	}

	load := cm.loadConfig
	if load == nil {
		load = config.GetOptimizedConfig
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	container, err := server.NewContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cm.container = container
	cm.lastUsed = time.Now()
	return container, nil
}

// isHealthy reports whether the cached container can serve this invocation
func (cm *ConnectionManager) isHealthy(ctx context.Context) bool {
	if time.Since(cm.lastUsed) < IdleRecheckAfter {
		return true
	}
	return cm.container.Store.HealthCheck(ctx) == nil
}

// Cleanup closes the container. The next GetContainer builds a new one.
func (cm *ConnectionManager) Cleanup() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	return cm.cleanup()
}

func (cm *ConnectionManager) cleanup() error {
	if cm.container == nil {
		return nil
	}

	err := cm.container.Close()
	cm.container = nil
	return err
}
