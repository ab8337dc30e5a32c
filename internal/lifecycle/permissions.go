package lifecycle

import (
	"context"
	"sync"

	"github.com/safe-mobile/safe-push/internal/logger"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// ManagedPermissions is the notification permission of a headless device.
// There is nobody to prompt, so the operator sets the status and
// RequestAuthorization reports it.
type ManagedPermissions struct {
	mu         sync.Mutex
	status     types.AuthorizationStatus
	registered bool
}

// NewManagedPermissions starts with the given platform status
func NewManagedPermissions(status types.AuthorizationStatus) *ManagedPermissions {
	if status == "" {
		status = types.AuthorizationUndetermined
	}
	return &ManagedPermissions{status: status}
}

// SetStatus changes the platform status
func (p *ManagedPermissions) SetStatus(status types.AuthorizationStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

func (p *ManagedPermissions) Settings(ctx context.Context) (types.AuthorizationStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, nil
}

func (p *ManagedPermissions) RequestAuthorization(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status.HasPermission(), nil
}

func (p *ManagedPermissions) RegisterForRemoteNotifications(ctx context.Context) {
	p.mu.Lock()
	p.registered = true
	p.mu.Unlock()
	logger.Debug(ctx, "registered for remote notifications")
}

// Registered reports whether RegisterForRemoteNotifications was called
func (p *ManagedPermissions) Registered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registered
}
