package types

// RegistrationRequest is the body sent to the transaction service to
// associate a device and push token with a set of safes.
//
// Safes holds checksummed addresses sorted lexicographically; the same list
// feeds the signed preimage.
type RegistrationRequest struct {
	UUID                string   `json:"uuid"`
	Safes               []string `json:"safes"`
	CloudMessagingToken string   `json:"cloudMessagingToken"`
	Bundle              string   `json:"bundle"`
	Version             string   `json:"version"`
	BuildNumber         string   `json:"buildNumber"`
	DeviceType          string   `json:"deviceType,omitempty"`
	Timestamp           *string  `json:"timestamp,omitempty"`
	Signatures          []string `json:"signatures,omitempty"`
}

// SignedRegistration is the signature block produced for a registration.
type SignedRegistration struct {
	// Preimage is the exact string that was hashed
	Preimage string
	// Hash is the 0x-prefixed Keccak-256 of Preimage
	Hash string
	// Timestamp is the decimal Unix seconds string embedded in Preimage
	Timestamp string
	// Signatures are 0x-prefixed hex, one per key, in key order
	Signatures []string
}
