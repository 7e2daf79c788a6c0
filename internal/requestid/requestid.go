// Package requestid generates identifiers that tag outbound evaluation
// requests so a response can be matched against the latest intent for its
// target.
package requestid

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

var newRandom = uuid.NewRandom

// Generate returns a random UUIDv4. If the entropy source fails it falls back
// to a timestamp plus a pseudo-random suffix.
func Generate() string {
	id, err := newRandom()
	if err == nil {
		return id.String()
	}
	return fmt.Sprintf("%d-%016x", time.Now().UnixNano(), rand.Uint64())
}
