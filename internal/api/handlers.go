package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/safe-mobile/safe-push/internal/logger"
	"github.com/safe-mobile/safe-push/internal/notification"
	"github.com/safe-mobile/safe-push/internal/validation"
	"github.com/safe-mobile/safe-push/pkg/address"
	apperrors "github.com/safe-mobile/safe-push/pkg/errors"
	"github.com/safe-mobile/safe-push/pkg/types"
)

// StatusResponse summarizes the push state of the device
type StatusResponse struct {
	DeviceID               string                    `json:"device_id,omitempty"`
	PushTokenSet           bool                      `json:"push_token_set"`
	AuthorizationStatus    types.AuthorizationStatus `json:"authorization_status,omitempty"`
	Tracking               types.TrackingState       `json:"tracking"`
	NeedsPermissionRequest bool                      `json:"needs_permission_request"`
	PendingJobs            int                       `json:"pending_jobs"`
	TxServiceState         string                    `json:"tx_service_state,omitempty"`
}

// PushTokenRequest carries a new cloud messaging token
type PushTokenRequest struct {
	Token string `json:"token"`
}

// PermissionRequest carries the operator's permission decision
type PermissionRequest struct {
	Status types.AuthorizationStatus `json:"status"`
}

// AddSafeRequest starts tracking a safe. Address may be an EIP-681 URI.
type AddSafeRequest struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// AddKeyRequest imports PrivateKey, or generates a key when it is empty
type AddKeyRequest struct {
	PrivateKey string `json:"private_key,omitempty"`
	Name       string `json:"name,omitempty"`
}

// KeyResponse represents an owner key in API responses
type KeyResponse struct {
	Address address.Address `json:"address"`
}

// SignTransactionRequest asks an owner key to confirm a Safe transaction
type SignTransactionRequest struct {
	Owner       address.Address        `json:"owner"`
	Transaction *types.SafeTransaction `json:"transaction"`
}

// SignTransactionResponse carries the owner's signature
type SignTransactionResponse struct {
	Owner      address.Address `json:"owner"`
	SafeTxHash string          `json:"safe_tx_hash"`
	Signature  hexutil.Bytes   `json:"signature"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	states := s.deps.States

	var resp StatusResponse
	deviceID, _, err := states.DeviceID(ctx)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	resp.DeviceID = deviceID

	_, resp.PushTokenSet, err = states.PushToken(ctx)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	status, recorded, err := states.AuthorizationStatus(ctx)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	resp.Tracking = types.TrackingUnknown
	if recorded {
		resp.AuthorizationStatus = status
		resp.Tracking = status.TrackingState()
	}

	resp.NeedsPermissionRequest, err = s.deps.Lifecycle.NeedsPermissionRequest(ctx)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if s.deps.Queue != nil {
		resp.PendingJobs = s.deps.Queue.Pending()
	}
	if s.deps.Breaker != nil {
		resp.TxServiceState = s.deps.Breaker.State().String()
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := validation.ValidatePushToken(req.Token); err != nil {
		s.badRequest(w, "Invalid push token", err)
		return
	}

	if err := s.deps.Lifecycle.PushTokenUpdated(r.Context(), req.Token); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handlePermission applies the operator's decision. A full grant is recorded
// directly; anything else goes through the request flow, which records the
// resulting platform status.
func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	var req PermissionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !req.Status.IsValid() {
		s.writeError(w, apperrors.NewWithDetail(
			apperrors.ErrCodeBadRequest,
			"Invalid authorization status",
			string(req.Status),
			http.StatusBadRequest,
		))
		return
	}

	ctx := r.Context()
	s.deps.Permissions.SetStatus(req.Status)
	if req.Status == types.AuthorizationGranted {
		if err := s.deps.Lifecycle.PermissionGranted(ctx); err != nil {
			s.handleError(w, r, err)
			return
		}
	} else {
		s.deps.Lifecycle.RequestPermissionAndRegister(ctx)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleListSafes(w http.ResponseWriter, r *http.Request) {
	safes, err := s.deps.Safes.All(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if safes == nil {
		safes = []*types.Safe{}
	}
	s.writeJSON(w, http.StatusOK, safes)
}

func (s *Server) handleAddSafe(w http.ResponseWriter, r *http.Request) {
	var req AddSafeRequest
	if !s.decode(w, r, &req) {
		return
	}
	addr, err := address.ParseERC681(req.Address)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := validation.ValidateName(req.Name); err != nil {
		s.badRequest(w, "Invalid safe name", err)
		return
	}

	ctx := r.Context()
	if s.deps.Chain != nil {
		isContract, err := s.deps.Chain.IsContract(ctx, addr)
		if err != nil {
			s.handleError(w, r, apperrors.Wrap(apperrors.ErrNetworkFailure, err))
			return
		}
		if !isContract {
			s.writeError(w, apperrors.NewWithDetail(
				apperrors.ErrCodeInvalidAddress,
				"Address is not a contract on this chain",
				addr.Checksummed(),
				http.StatusBadRequest,
			))
			return
		}
	}

	safe := &types.Safe{Address: addr, Name: req.Name}
	if err := s.deps.Safes.Add(ctx, safe); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.deps.Lifecycle.SafeAdded(ctx, addr); err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, safe)
}

func (s *Server) handleRemoveSafe(w http.ResponseWriter, r *http.Request) {
	addr, err := address.Parse(r.PathValue("address"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	ctx := r.Context()
	removed, err := s.deps.Safes.Remove(ctx, addr)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if !removed {
		s.writeError(w, apperrors.ErrNotFound)
		return
	}
	s.deps.Lifecycle.SafeRemoved(ctx, addr)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	addrs, err := s.deps.Keys.Addresses(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	keys := make([]KeyResponse, len(addrs))
	for i, a := range addrs {
		keys[i] = KeyResponse{Address: a}
	}
	s.writeJSON(w, http.StatusOK, keys)
}

func (s *Server) handleAddKey(w http.ResponseWriter, r *http.Request) {
	var req AddKeyRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := validation.ValidateName(req.Name); err != nil {
		s.badRequest(w, "Invalid key name", err)
		return
	}

	var (
		addr address.Address
		err  error
	)
	if req.PrivateKey == "" {
		addr, err = s.deps.Keys.Generate(r.Context(), req.Name)
	} else {
		addr, err = s.deps.Keys.Import(r.Context(), req.PrivateKey, req.Name)
	}
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, KeyResponse{Address: addr})
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	addr, err := address.Parse(r.PathValue("address"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.deps.Keys.Delete(r.Context(), addr); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		s.badRequest(w, "Invalid request body", err)
		return
	}
	payload, err := notification.Parse(raw)
	if err != nil {
		s.badRequest(w, "Invalid notification payload", err)
		return
	}
	s.deps.Lifecycle.NotificationReceived(r.Context(), payload)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleForeground(w http.ResponseWriter, r *http.Request) {
	s.deps.Lifecycle.AppEnteredForeground(r.Context())
	w.WriteHeader(http.StatusAccepted)
}

// handleSignTransaction fills the chain id and Safe version from the chain
// when the caller leaves them out, then signs.
func (s *Server) handleSignTransaction(w http.ResponseWriter, r *http.Request) {
	var req SignTransactionRequest
	if !s.decode(w, r, &req) {
		return
	}
	tx := req.Transaction
	if err := validation.ValidateSafeTransaction(tx); err != nil {
		s.badRequest(w, "Invalid transaction", err)
		return
	}
	if req.Owner.IsZero() {
		s.writeError(w, apperrors.InvalidAddress(""))
		return
	}

	ctx := r.Context()
	if s.deps.Chain != nil {
		if tx.ChainID == nil {
			tx.ChainID = (*math.HexOrDecimal256)(s.deps.Chain.ChainID())
		}
		if tx.SafeVersion == "" {
			v, err := s.deps.Chain.SafeVersion(ctx, tx.Safe)
			if err != nil {
				s.handleError(w, r, apperrors.Wrap(apperrors.ErrNetworkFailure, err))
				return
			}
			tx.SafeVersion = v
		}
	}

	sig, err := s.deps.Signer.SignSafeTransaction(ctx, tx, req.Owner)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SignTransactionResponse{
		Owner:      req.Owner,
		SafeTxHash: tx.SafeTxHash.Hex(),
		Signature:  sig,
	})
}

// decode reads a JSON body into v, writing a 400 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.badRequest(w, "Invalid request body", err)
		return false
	}
	return true
}

func (s *Server) badRequest(w http.ResponseWriter, message string, err error) {
	s.writeError(w, apperrors.NewWithDetail(
		apperrors.ErrCodeBadRequest,
		message,
		err.Error(),
		http.StatusBadRequest,
	))
}

// handleError renders application errors as is and hides everything else
// behind a 500.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := apperrors.IsAppError(err); ok {
		if appErr.StatusCode >= http.StatusInternalServerError {
			logger.Error(r.Context(), "request error", "error", err)
		}
		s.writeError(w, appErr)
		return
	}
	logger.Error(r.Context(), "unexpected error", "error", err)
	s.writeError(w, apperrors.ErrInternalError)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(err)
}
