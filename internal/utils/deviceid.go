package utils

import (
	"fmt"

	"github.com/denisbrodbeck/machineid"
)

const deviceIDLen = 7

// DeviceID derives a short stable identifier for this install from the
// machine id. The id is hashed with an app-specific key, so it cannot be
// traced back to the raw machine id.
func DeviceID() (string, error) {
	id, err := machineid.ProtectedID("vaultsync")
	if err != nil {
		return "", fmt.Errorf("derive device id: %w", err)
	}
	return id[:deviceIDLen], nil
}
