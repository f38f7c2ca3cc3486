package access

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

// Fingerprint derives the device identifier a license gets bound to: a
// SHA-256 digest of the OS machine id, falling back to the hostname when no
// machine id is available.
//
// The identifier inherits the platform's stability guarantees and nothing
// more: it resets with the OS install and can be spoofed by a motivated
// user. Strengthening it would change the binding behavior users see, so it
// is kept as-is.
func Fingerprint() string {
	return fingerprintFrom(rawMachineID())
}

func fingerprintFrom(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func rawMachineID() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if b, err := os.ReadFile(path); err == nil {
			if id := strings.TrimSpace(string(b)); id != "" {
				return id
			}
		}
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown-device"
	}
	return host
}
