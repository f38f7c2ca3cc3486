package access

import (
	"context"
	"errors"
	"log"
	"strings"
)

// DenialReason distinguishes why a verification failed. Device conflict and
// connectivity each need different user remediation than a plain bad key, so
// they are never conflated.
type DenialReason string

const (
	DenialNone               DenialReason = ""
	DenialLocalValidation    DenialReason = "local_validation"
	DenialNotRegistered      DenialReason = "not_registered"
	DenialInvalidCredentials DenialReason = "invalid_credentials"
	DenialDeviceConflict     DenialReason = "device_conflict"
	DenialConnectivity       DenialReason = "connectivity"
)

// Verdict is the outcome of a license check.
type Verdict struct {
	Authorized bool         `json:"authorized"`
	Reason     DenialReason `json:"reason,omitempty"`
	Message    string       `json:"message,omitempty"`
}

var denialMessages = map[DenialReason]string{
	DenialLocalValidation:    "Email and license key are required.",
	DenialNotRegistered:      "This email is not registered.",
	DenialInvalidCredentials: "Invalid license key or unpaid account.",
	DenialDeviceConflict:     "This license is bound to another device. Contact the license holder to move it.",
	DenialConnectivity:       "Could not reach the license server. Check your connection and try again.",
}

func denied(reason DenialReason) Verdict {
	return Verdict{Reason: reason, Message: denialMessages[reason]}
}

// Verifier performs the one-shot device-locked license check.
type Verifier struct {
	records     RecordStore
	fingerprint string
	logger      *log.Logger
}

// NewVerifier creates a verifier bound to this device's fingerprint.
func NewVerifier(records RecordStore, fingerprint string, logger *log.Logger) *Verifier {
	if logger == nil {
		logger = log.Default()
	}
	return &Verifier{records: records, fingerprint: fingerprint, logger: logger}
}

// Verify checks (identity, key) against the authorization records, binding
// this device on first use.
func (v *Verifier) Verify(ctx context.Context, identity, key string) Verdict {
	identity = strings.ToLower(strings.TrimSpace(identity))
	key = strings.TrimSpace(key)
	if identity == "" || key == "" {
		return denied(DenialLocalValidation)
	}

	record, err := v.records.Fetch(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return denied(DenialNotRegistered)
		}
		v.logger.Printf("License lookup failed for %s: %v", identity, err)
		return denied(DenialConnectivity)
	}

	if record.LicenseKey != key || !record.Paid {
		return denied(DenialInvalidCredentials)
	}

	if record.DeviceID == "" {
		// First use: bind this device.
		if err := v.records.BindDevice(ctx, identity, v.fingerprint); err != nil {
			v.logger.Printf("Device binding failed for %s: %v", identity, err)
			return denied(DenialConnectivity)
		}
		return Verdict{Authorized: true}
	}

	if record.DeviceID == v.fingerprint {
		return Verdict{Authorized: true}
	}

	return denied(DenialDeviceConflict)
}
