package reconcile

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// adminCredsSecret is the name of the admin credentials secret for an
// identity owner (CA bootstrap admin or MSP org admin).
func adminCredsSecret(owner string) string {
	return jobName(owner, "admin-creds")
}

// adminMSPSecret is the name of the secret holding an enrolled org
// admin's MSP material (signing certificate and private key). The enroll
// job writes it; peers and further tooling mount it.
func adminMSPSecret(owner string) string {
	return jobName(owner, "admin-msp")
}

// generatePassword returns a random hex password for a registered
// identity. Passwords are generated once and then live only in the
// cluster secret; re-runs reuse the existing secret.
func generatePassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
