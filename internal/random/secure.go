// Package random provides cryptographically secure randomization for
// outgoing query identifiers, to prevent an off-path attacker from
// guessing a transaction ID and spoofing a response.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// TransactionID generates a cryptographically random 16-bit transaction ID.
// NEVER use math/rand here — a predictable transaction ID defeats the one
// piece of spoofing resistance a stub resolver has over UDP.
func TransactionID() uint16 {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return binary.BigEndian.Uint16(buf[:])
}
