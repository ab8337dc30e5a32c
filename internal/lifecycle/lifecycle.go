// Package lifecycle keeps the transaction service's push registration in
// sync with the device: its identity, push token, notification permission,
// tracked safes and owner keys.
package lifecycle

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/safe-mobile/safe-push/internal/keystore"
	"github.com/safe-mobile/safe-push/internal/logger"
	"github.com/safe-mobile/safe-push/internal/metrics"
	"github.com/safe-mobile/safe-push/internal/notification"
	"github.com/safe-mobile/safe-push/internal/signer"
	"github.com/safe-mobile/safe-push/internal/storage"
	"github.com/safe-mobile/safe-push/internal/worker"
	"github.com/safe-mobile/safe-push/pkg/address"
	apperrors "github.com/safe-mobile/safe-push/pkg/errors"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// SafeReader lists the safes tracked on the device
type SafeReader interface {
	All(ctx context.Context) ([]*types.Safe, error)
	Exists(ctx context.Context, addr address.Address) (bool, error)
}

// Backend is the transaction service
type Backend interface {
	Register(ctx context.Context, req *types.RegistrationRequest) error
	Unregister(ctx context.Context, deviceID string, safe address.Address) error
}

// Permissions is the platform notification permission API
type Permissions interface {
	Settings(ctx context.Context) (types.AuthorizationStatus, error)
	RequestAuthorization(ctx context.Context) (bool, error)
	RegisterForRemoteNotifications(ctx context.Context)
}

// MainThread runs user-interaction callbacks on a single loop
type MainThread interface {
	IsMain(ctx context.Context) bool
	Async(fn func(ctx context.Context))
}

// Queue runs jobs one at a time in submission order
type Queue interface {
	Submit(name string, job worker.Job) error
}

// Publisher receives application events
type Publisher interface {
	Publish(ev notification.Event)
}

// Deps are the collaborators of a Lifecycle
type Deps struct {
	States      storage.StateRepository
	Safes       SafeReader
	Keys        keystore.KeyStore
	Backend     Backend
	Permissions Permissions
	Main        MainThread
	Queue       Queue
	Events      Publisher
	Signer      *signer.RegistrationSigner
	Metrics     *metrics.Metrics
}

// Lifecycle reacts to device events by scheduling registration and
// unregistration jobs. Jobs read the token, device id, safes and keys when
// they run, so a burst of events converges on the latest state.
type Lifecycle struct {
	Deps
	app        types.AppInfo
	deviceType string

	newDeviceID func() string
}

// New creates a Lifecycle for the given client build
func New(deps Deps, app types.AppInfo, deviceType string) *Lifecycle {
	if deps.Signer == nil {
		deps.Signer = signer.NewRegistrationSigner(signer.WithMetrics(deps.Metrics))
	}
	return &Lifecycle{
		Deps:        deps,
		app:         app,
		deviceType:  deviceType,
		newDeviceID: uuid.NewString,
	}
}

// AppStarted assigns a device id on first launch and reconciles the recorded
// permission with the platform setting.
func (l *Lifecycle) AppStarted(ctx context.Context) error {
	logger.Debug(ctx, "app started")

	if _, ok, err := l.States.DeviceID(ctx); err != nil {
		return err
	} else if !ok {
		if err := l.States.SetDeviceID(ctx, l.newDeviceID()); err != nil {
			return err
		}
	}

	previous, recorded, err := l.States.AuthorizationStatus(ctx)
	if err != nil {
		return err
	}
	if !recorded {
		return nil
	}

	current, err := l.Permissions.Settings(ctx)
	if err != nil {
		return err
	}
	logger.Debug(ctx, "authorization status", "previous", previous, "current", current)

	if current.HasPermission() && !previous.HasPermission() {
		l.RequestPermissionAndRegister(ctx)
		return nil
	}
	if err := l.setStatus(ctx, current); err != nil {
		return err
	}
	if current.HasPermission() {
		l.RegisterAll(ctx)
	}
	return nil
}

// AppEnteredForeground asks the UI to clear delivered notifications
func (l *Lifecycle) AppEnteredForeground(ctx context.Context) {
	logger.Debug(ctx, "app entered foreground")
	l.publish(notification.Event{Type: notification.EventClearDelivered})
}

// PushTokenUpdated stores token and re-registers once a permission decision
// has been recorded.
func (l *Lifecycle) PushTokenUpdated(ctx context.Context, token string) error {
	logger.Debug(ctx, "push token updated")
	if err := l.States.SetPushToken(ctx, token); err != nil {
		return err
	}
	_, recorded, err := l.States.AuthorizationStatus(ctx)
	if err != nil {
		return err
	}
	if recorded {
		l.RegisterAll(ctx)
	}
	return nil
}

// SafeAdded registers a newly tracked safe, asking for permission first if
// it was never asked.
func (l *Lifecycle) SafeAdded(ctx context.Context, safe address.Address) error {
	logger.Debug(ctx, "safe added", "safe", safe.Checksummed())
	_, recorded, err := l.States.AuthorizationStatus(ctx)
	if err != nil {
		return err
	}
	if !recorded {
		l.RequestPermissionAndRegister(ctx)
		return nil
	}
	l.register(ctx, "register", func(context.Context) ([]address.Address, error) {
		return []address.Address{safe}, nil
	})
	return nil
}

// SafeRemoved unregisters the device for safe. Every call schedules its own
// request.
func (l *Lifecycle) SafeRemoved(ctx context.Context, safe address.Address) {
	logger.Debug(ctx, "safe removed", "safe", safe.Checksummed())
	l.unregister(ctx, safe)
}

// SigningKeyUpdated re-registers every safe so the signature set follows the
// stored keys.
func (l *Lifecycle) SigningKeyUpdated(ctx context.Context) {
	logger.Debug(ctx, "signing key updated")
	l.RegisterAll(ctx)
}

// PermissionGranted records a grant made outside RequestPermissionAndRegister
func (l *Lifecycle) PermissionGranted(ctx context.Context) error {
	logger.Debug(ctx, "permission granted")
	if err := l.setStatus(ctx, types.AuthorizationGranted); err != nil {
		return err
	}
	l.RegisterAll(ctx)
	return nil
}

// NeedsPermissionRequest reports whether the user should be asked for
// notification permission.
func (l *Lifecycle) NeedsPermissionRequest(ctx context.Context) (bool, error) {
	_, recorded, err := l.States.AuthorizationStatus(ctx)
	if err != nil || recorded {
		return false, err
	}
	safes, err := l.Safes.All(ctx)
	if err != nil {
		return false, err
	}
	return len(safes) > 0, nil
}

// RequestPermissionAndRegister asks for notification permission on the main
// thread, registers everything when granted and records the resulting
// platform status. Called off the main thread it re-dispatches itself and
// returns at once.
func (l *Lifecycle) RequestPermissionAndRegister(ctx context.Context) {
	if !l.Main.IsMain(ctx) {
		l.Main.Async(l.RequestPermissionAndRegister)
		return
	}
	logger.Debug(ctx, "requesting permission for notifications")

	granted, err := l.Permissions.RequestAuthorization(ctx)
	if err != nil {
		logger.Error(ctx, "notification authorization error", "error", err)
		return
	}
	if granted {
		logger.Debug(ctx, "user gave permission for notifications")
		l.Permissions.RegisterForRemoteNotifications(ctx)
		l.RegisterAll(ctx)
	}

	status, err := l.Permissions.Settings(ctx)
	if err != nil {
		logger.Error(ctx, "failed to read notification settings", "error", err)
		return
	}
	if err := l.setStatus(ctx, status); err != nil {
		logger.Error(ctx, "failed to save authorization status", "error", err)
	}
}

// NotificationReceived routes an opened push notification. Notifications for
// safes no longer on the device unregister that safe.
func (l *Lifecycle) NotificationReceived(ctx context.Context, payload notification.Payload) {
	logger.Debug(ctx, "received notification", "type", payload.Type)
	l.publish(notification.Event{Type: notification.EventClearDelivered})

	safe, ok := payload.SafeAddress()
	if !ok {
		return
	}

	exists, err := l.Safes.Exists(ctx, safe)
	if err != nil {
		logger.Error(ctx, "error during opening notification", "error", err)
		return
	}
	if !exists {
		l.unregister(ctx, safe)
		return
	}

	l.publish(notification.Event{Type: notification.EventSafeSelected, Safe: safe})

	switch payload.Classify() {
	case notification.KindConfirmation:
		hash, _ := payload.TxHash()
		l.publish(notification.Event{Type: notification.EventConfirmationRequested, Safe: safe, SafeTxHash: hash})
	case notification.KindIncoming:
		l.publish(notification.Event{Type: notification.EventIncomingTransaction, Safe: safe})
	case notification.KindQueued:
		l.publish(notification.Event{Type: notification.EventQueuedTransaction, Safe: safe})
	}
}

// RegisterAll schedules a registration covering every stored safe
func (l *Lifecycle) RegisterAll(ctx context.Context) {
	l.register(ctx, "register_all", func(ctx context.Context) ([]address.Address, error) {
		safes, err := l.Safes.All(ctx)
		if err != nil {
			return nil, err
		}
		addrs := make([]address.Address, len(safes))
		for i, s := range safes {
			addrs[i] = s.Address
		}
		return addrs, nil
	})
}

func (l *Lifecycle) setStatus(ctx context.Context, status types.AuthorizationStatus) error {
	if err := l.States.SetAuthorizationStatus(ctx, status); err != nil {
		return err
	}
	l.publish(notification.Event{Type: notification.EventTrackingChanged, Tracking: status.TrackingState()})
	return nil
}

func (l *Lifecycle) register(ctx context.Context, name string, safes func(ctx context.Context) ([]address.Address, error)) {
	l.submit(ctx, name, func(ctx context.Context) error {
		token, ok, err := l.States.PushToken(ctx)
		if err != nil {
			return err
		}
		if !ok {
			logger.Debug(ctx, "no push token, skipping registration")
			return nil
		}
		deviceID, err := l.deviceID(ctx)
		if err != nil {
			return err
		}
		ctx = logger.WithDeviceID(ctx, deviceID)

		addrs, err := safes(ctx)
		if err != nil {
			return err
		}
		keys, err := l.Keys.Keys(ctx)
		if err != nil {
			return err
		}
		signed, err := l.Signer.BuildAndSign(ctx, addrs, deviceID, token, keys, nil)
		if err != nil {
			l.Metrics.Registration(metrics.ResultFailure)
			return err
		}

		req := signer.BuildRequest(l.app, l.deviceType, deviceID, token, addrs, signed)
		err = l.Backend.Register(ctx, req)
		l.Metrics.Registration(result(err))
		if err != nil {
			return err
		}
		logger.Info(ctx, "device registered", "safes", len(req.Safes), "signatures", len(req.Signatures))
		return nil
	})
}

func (l *Lifecycle) unregister(ctx context.Context, safe address.Address) {
	l.submit(ctx, "unregister", func(ctx context.Context) error {
		deviceID, err := l.deviceID(ctx)
		if err != nil {
			return err
		}
		ctx = logger.WithDeviceID(ctx, deviceID)

		err = l.Backend.Unregister(ctx, deviceID, safe)
		l.Metrics.Unregistration(result(err))
		if err != nil {
			return err
		}
		logger.Info(ctx, "device unregistered", "safe", safe.Checksummed())
		return nil
	})
}

// deviceID returns the stored id in lowercase. A missing id means
// AppStarted never ran.
func (l *Lifecycle) deviceID(ctx context.Context) (string, error) {
	id, ok, err := l.States.DeviceID(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperrors.ErrMissingDeviceID
	}
	return strings.ToLower(id), nil
}

func (l *Lifecycle) submit(ctx context.Context, name string, job worker.Job) {
	if err := l.Queue.Submit(name, job); err != nil {
		logger.Warn(ctx, "failed to schedule job", "job", name, "error", err)
	}
}

func (l *Lifecycle) publish(ev notification.Event) {
	if l.Events != nil {
		l.Events.Publish(ev)
	}
}

func result(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case apperrors.IsCancellation(err):
		return metrics.ResultCancelled
	default:
		return metrics.ResultFailure
	}
}
