// Package api exposes the control surface an operator or host application
// uses to feed device events into the push lifecycle.
package api

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/safe-mobile/safe-push/internal/config"
	"github.com/safe-mobile/safe-push/internal/logger"
	"github.com/safe-mobile/safe-push/internal/metrics"
	"github.com/safe-mobile/safe-push/internal/middleware"
	"github.com/safe-mobile/safe-push/internal/notification"
	"github.com/safe-mobile/safe-push/internal/storage"
	"github.com/safe-mobile/safe-push/pkg/address"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// Lifecycle is the subset of lifecycle.Lifecycle driven over HTTP
type Lifecycle interface {
	PushTokenUpdated(ctx context.Context, token string) error
	SafeAdded(ctx context.Context, safe address.Address) error
	SafeRemoved(ctx context.Context, safe address.Address)
	PermissionGranted(ctx context.Context) error
	RequestPermissionAndRegister(ctx context.Context)
	NeedsPermissionRequest(ctx context.Context) (bool, error)
	NotificationReceived(ctx context.Context, payload notification.Payload)
	AppEnteredForeground(ctx context.Context)
}

// KeyManager stores owner keys
type KeyManager interface {
	Import(ctx context.Context, privateKeyHex, name string) (address.Address, error)
	Generate(ctx context.Context, name string) (address.Address, error)
	Delete(ctx context.Context, addr address.Address) error
	Addresses(ctx context.Context) ([]address.Address, error)
}

// TransactionSigner confirms Safe transactions with a stored owner key
type TransactionSigner interface {
	SignSafeTransaction(ctx context.Context, tx *types.SafeTransaction, owner address.Address) ([]byte, error)
}

// PermissionSetter lets the operator decide the notification permission
type PermissionSetter interface {
	SetStatus(status types.AuthorizationStatus)
	Settings(ctx context.Context) (types.AuthorizationStatus, error)
}

// Chain answers on-chain questions about safes. It is optional.
type Chain interface {
	ChainID() *big.Int
	IsContract(ctx context.Context, addr address.Address) (bool, error)
	SafeVersion(ctx context.Context, safe address.Address) (string, error)
}

// Breaker reports the transaction service circuit state
type Breaker interface {
	State() gobreaker.State
}

// Queue reports pending registration jobs
type Queue interface {
	Pending() int
}

// Deps are the collaborators of a Server. Chain and Breaker may be nil.
type Deps struct {
	Lifecycle   Lifecycle
	States      storage.StateRepository
	Safes       storage.SafeRepository
	Keys        KeyManager
	Signer      TransactionSigner
	Permissions PermissionSetter
	Chain       Chain
	Breaker     Breaker
	Queue       Queue
	Metrics     *metrics.Metrics
}

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	deps       Deps
	httpServer *http.Server
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Deps) *Server {
	return &Server{
		config: cfg,
		deps:   deps,
	}
}

// Handler builds the routed and middleware-wrapped handler
func (s *Server) Handler() http.Handler {
	v1 := http.NewServeMux()
	v1.HandleFunc("GET /v1/status", s.handleStatus)
	v1.HandleFunc("POST /v1/push-token", s.handlePushToken)
	v1.HandleFunc("POST /v1/permission", s.handlePermission)
	v1.HandleFunc("GET /v1/safes", s.handleListSafes)
	v1.HandleFunc("POST /v1/safes", s.handleAddSafe)
	v1.HandleFunc("DELETE /v1/safes/{address}", s.handleRemoveSafe)
	v1.HandleFunc("GET /v1/keys", s.handleListKeys)
	v1.HandleFunc("POST /v1/keys", s.handleAddKey)
	v1.HandleFunc("DELETE /v1/keys/{address}", s.handleDeleteKey)
	v1.HandleFunc("POST /v1/notifications", s.handleNotification)
	v1.HandleFunc("POST /v1/foreground", s.handleForeground)
	v1.HandleFunc("POST /v1/transactions/sign", s.handleSignTransaction)

	mux := http.NewServeMux()

	// Health check and metrics (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}
	mux.Handle("/v1/", middleware.TokenAuth(s.config.ControlTokenHash)(v1))

	limiter := middleware.NewRateLimiter(s.config.ControlRPS, int(s.config.ControlRPS)*2)

	// Chain: RequestID -> AccessLog -> LimitBody -> RateLimit -> Routes
	return middleware.RequestID(
		middleware.AccessLog(
			middleware.LimitBody(
				limiter.Limit(mux))))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info(context.Background(), "starting control api", "port", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
