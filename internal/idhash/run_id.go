// Package idhash computes deterministic identifiers for runs and folds.
// Identical inputs always produce identical IDs, which replay verification
// and duplicate detection in the run store rely on.
package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// idBytes is how much of the SHA256 digest feeds the encoded ID. 16 bytes
// keep collisions negligible while the base58 form stays short enough for
// log lines and file names.
const idBytes = 16

// ComputeRunID computes a deterministic run identifier.
// Formula: base58(SHA256(pool|strategy_name|config_json|from|to)[:16]).
func ComputeRunID(pool, strategyName, configJSON string, from, to int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d",
		pool,
		strategyName,
		configJSON,
		from,
		to,
	)
	return encode(data)
}

func encode(data string) string {
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:idBytes])
}
