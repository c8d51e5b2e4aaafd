// Package ids generates the two identifier kinds the engine needs: random
// root task ids and monotonic event ids. Both generators are mockable
// function values so tests can make id allocation deterministic (spec §9).
package ids

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// crockford is the lowercase Crockford base32 alphabet with I, L, O, U
// removed, matching the root task id grammar in spec §3.1. oklog/ulid
// uses the same alphabet internally (uppercase) for its own 26-char
// encoding; task ids need a different length and no timestamp component,
// so we encode independently rather than repurpose ulid's internal table.
const crockford = "0123456789abcdefghjkmnpqrstvwxyz"

// TaskIDLen is the number of base32 digits following the "tsq-" prefix.
// 40 random bits need 8 base32 digits (5 bits each).
const TaskIDLen = 8

// NewRootID returns a fresh "tsq-xxxxxxxx" id built from 40 random bits.
// It is a variable so tests can substitute a deterministic generator.
var NewRootID = func() (string, error) {
	bits, err := rand.Int(rand.Reader, big.NewInt(1<<40))
	if err != nil {
		return "", fmt.Errorf("ids: read random bits: %w", err)
	}
	return "tsq-" + encodeCrockford(bits.Uint64(), TaskIDLen), nil
}

func encodeCrockford(v uint64, width int) string {
	var b strings.Builder
	b.Grow(width)
	digits := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		digits[i] = crockford[v&0x1f]
		v >>= 5
	}
	b.Write(digits)
	return b.String()
}

// ChildID derives a deterministic child id from its parent and counter.
func ChildID(parentID string, n int) string {
	return fmt.Sprintf("%s.%d", parentID, n)
}

// EventIDGen returns a fresh monotonic ULID string for an event, given a
// wall-clock instant. ULIDs are lexicographically time-ordered, which is
// what the merge driver (§4.7) relies on for a consistent total order.
type EventIDGen func(ts time.Time) (string, error)

// NewEventIDGen returns the default ULID-backed generator. It is a
// constructor (not a bare function) so each generator owns its own
// ulid.Monotonic entropy source; tests substitute a whole EventIDGen.
func NewEventIDGen() EventIDGen {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return func(ts time.Time) (string, error) {
		id, err := ulid.New(ulid.Timestamp(ts), entropy)
		if err != nil {
			return "", fmt.Errorf("ids: generate event id: %w", err)
		}
		return id.String(), nil
	}
}
