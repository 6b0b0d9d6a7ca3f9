// Package crypto wraps the one hash primitive the accumulation core
// depends on. The contract is deliberately small: 32-byte output,
// deterministic.
package crypto

import (
	"golang.org/x/crypto/blake2b"

	"github.com/probeum/jampvm/common"
)

// Blake2b256 returns the 32-byte blake2b-256 digest of data, the hash
// `provide` checks a preimage blob against its pending
// request key.
func Blake2b256(data []byte) common.Hash {
	return blake2b.Sum256(data)
}
