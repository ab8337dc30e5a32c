package types

// NotificationType is the "type" tag of a push payload sent by the
// transaction service.
type NotificationType string

const (
	NotificationIncomingEther               NotificationType = "INCOMING_ETHER"
	NotificationIncomingToken               NotificationType = "INCOMING_TOKEN"
	NotificationExecutedMultisigTransaction NotificationType = "EXECUTED_MULTISIG_TRANSACTION"
	NotificationNewConfirmation             NotificationType = "NEW_CONFIRMATION"
	NotificationConfirmationRequest         NotificationType = "CONFIRMATION_REQUEST"
)

// AllNotificationTypes returns the full vocabulary
func AllNotificationTypes() []NotificationType {
	return []NotificationType{
		NotificationIncomingEther,
		NotificationIncomingToken,
		NotificationExecutedMultisigTransaction,
		NotificationNewConfirmation,
		NotificationConfirmationRequest,
	}
}

// IsIncoming reports whether the notification is about received funds
func (t NotificationType) IsIncoming() bool {
	return t == NotificationIncomingEther || t == NotificationIncomingToken
}

// IsQueued reports whether the notification is about a multisig transaction
// in the queue or just executed
func (t NotificationType) IsQueued() bool {
	switch t {
	case NotificationExecutedMultisigTransaction, NotificationNewConfirmation, NotificationConfirmationRequest:
		return true
	}
	return false
}
