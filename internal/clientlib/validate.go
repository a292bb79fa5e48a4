package clientlib

import (
	"context"
	"fmt"

	"github.com/wasabipesto/niceengine/pkg/models"
)

// ValidateAgainstCanon implements the client's optional cross-validation
// mode: before submitting, fetch the field's current canonical
// submission (if any) and confirm the candidate about to be sent agrees
// with it. A mismatch means this worker's own scan is suspect (bad
// hardware, a miscompiled kernel, a residue-filter bug) and the candidate
// submission should be discarded rather than sent to the server.
//
// If the field has no canon submission yet, there is nothing to validate
// against and the candidate passes through unchecked — it may well become
// the canon itself.
func ValidateAgainstCanon(ctx context.Context, client *APIClient, fieldID int64, mode models.Mode, candidate models.SubmitRequest) error {
	canon, err := client.GetCanonSubmission(ctx, fieldID)
	if err == ErrNoCanonSubmission {
		return nil
	}
	if err != nil {
		return fmt.Errorf("validate: fetch canon submission: %v", err)
	}
	if canon.SearchMode != mode {
		// The canon was promoted under a different (stricter or looser)
		// mode's contract; nothing directly comparable to check here.
		return nil
	}

	if mode == models.ModeDetailed {
		if !distributionsEqual(canon.Distribution, candidate.UniqueDistribution) {
			return fmt.Errorf("validate: distribution mismatch against canon submission %d for field %d", canon.ID, fieldID)
		}
	}
	if !numbersEqual(canon.Numbers, candidate.NiceNumbers) {
		return fmt.Errorf("validate: nice_numbers mismatch against canon submission %d for field %d", canon.ID, fieldID)
	}
	return nil
}

// distributionsEqual compares histograms by bucket, skipping zero counts so
// a complete (zero-padded) encoding and a sparse one compare equal.
func distributionsEqual(a, b []models.DistEntry) bool {
	am := make(map[int]int64, len(a))
	for _, e := range a {
		if e.Count != 0 {
			am[e.NumUniques] = e.Count
		}
	}
	bm := make(map[int]int64, len(b))
	for _, e := range b {
		if e.Count != 0 {
			bm[e.NumUniques] = e.Count
		}
	}
	if len(am) != len(bm) {
		return false
	}
	for k, v := range am {
		if bm[k] != v {
			return false
		}
	}
	return true
}

func numbersEqual(a, b []models.NiceNumber) bool {
	am := make(map[string]int, len(a))
	for _, n := range a {
		am[n.Number.String()] = n.NumUniques
	}
	bm := make(map[string]int, len(b))
	for _, n := range b {
		bm[n.Number.String()] = n.NumUniques
	}
	if len(am) != len(bm) {
		return false
	}
	for k, v := range am {
		if bm[k] != v {
			return false
		}
	}
	return true
}
