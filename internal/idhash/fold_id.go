package idhash

import "fmt"

// ComputeFoldID computes a deterministic fold identifier within a run.
// Formula: base58(SHA256(run_id|fold_index)[:16]).
func ComputeFoldID(runID string, index int) string {
	return encode(fmt.Sprintf("%s|%d", runID, index))
}
