// Package models holds the wire and persistence types shared by the
// coordination service and the client pipeline.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mode selects which search contract a Field is claimed and submitted under.
type Mode string

const (
	ModeDetailed Mode = "detailed"
	ModeNiceOnly Mode = "niceonly"
)

// RequiredLevel returns the check_level a single valid submission of this
// mode warrants: detailed 2, niceonly 1. A field can still reach level 2
// without any detailed submission, via two independently-claimed agreeing
// niceonly submissions; that promotion lives in the coordinator.
func (m Mode) RequiredLevel() int {
	if m == ModeDetailed {
		return 2
	}
	return 1
}

// Base is one search space b, spanning every candidate n whose n^2 and n^3
// together could have exactly b digits.
type Base struct {
	ID              int64           `json:"id"`
	B               uint64          `json:"b"`
	RangeStart      decimal.Decimal `json:"range_start"`
	RangeEnd        decimal.Decimal `json:"range_end"`
	CheckedDetailed decimal.Decimal `json:"checked_detailed"`
	CheckedNiceOnly decimal.Decimal `json:"checked_niceonly"`
	MinimumCL       int             `json:"minimum_cl"`
	NicenessMean    float64         `json:"niceness_mean"`
	NicenessStdev   float64         `json:"niceness_stdev"`
	Distribution    []DistEntry     `json:"distribution"`
	Numbers         []NiceNumber    `json:"numbers"`
}

// Chunk is an administrative grouping of contiguous Fields within a Base,
// carrying the same roll-up shape as Base.
type Chunk struct {
	ID              int64           `json:"id"`
	BaseID          int64           `json:"base_id"`
	RangeStart      decimal.Decimal `json:"range_start"`
	RangeEnd        decimal.Decimal `json:"range_end"`
	CheckedDetailed decimal.Decimal `json:"checked_detailed"`
	CheckedNiceOnly decimal.Decimal `json:"checked_niceonly"`
	MinimumCL       int             `json:"minimum_cl"`
	NicenessMean    float64         `json:"niceness_mean"`
	NicenessStdev   float64         `json:"niceness_stdev"`
	Distribution    []DistEntry     `json:"distribution"`
	Numbers         []NiceNumber    `json:"numbers"`
}

// Field is the unit of work handed to one client: a contiguous sub-range of
// a Chunk, plus the verification state the coordination service tracks.
type Field struct {
	ID                int64           `json:"id"`
	BaseID            int64           `json:"base_id"`
	ChunkID           int64           `json:"chunk_id"`
	RangeStart        decimal.Decimal `json:"range_start"`
	RangeEnd          decimal.Decimal `json:"range_end"`
	CheckLevel        int             `json:"check_level"`
	CanonSubmissionID *int64          `json:"canon_submission_id,omitempty"`
	LastClaimTime     *time.Time      `json:"last_claim_time,omitempty"`
	Prioritize        bool            `json:"prioritize"`
}

// RangeSize returns range_end - range_start as a decimal (never negative for
// a well-formed Field).
func (f Field) RangeSize() decimal.Decimal {
	return f.RangeEnd.Sub(f.RangeStart)
}

// Claim is an append-only lease record binding a Field to a client for a
// bounded time.
type Claim struct {
	ID         int64     `json:"id"`
	FieldID    int64     `json:"field_id"`
	SearchMode Mode      `json:"search_mode"`
	ClaimTime  time.Time `json:"claim_time"`
	UserIP     string    `json:"user_ip"`
}

// Submission is a client's returned result for a claimed Field.
type Submission struct {
	ID            int64           `json:"id"`
	ClaimID       int64           `json:"claim_id"`
	FieldID       int64           `json:"field_id"`
	SearchMode    Mode            `json:"search_mode"`
	SubmitTime    time.Time       `json:"submit_time"`
	ElapsedSecs   float64         `json:"elapsed_secs"`
	Username      string          `json:"username"`
	ClientVersion string          `json:"client_version"`
	Disqualified  bool            `json:"disqualified"`
	Distribution  []DistEntry     `json:"unique_distribution,omitempty"`
	Numbers       []NiceNumber    `json:"nice_numbers"`
}

// DistEntry is one bucket of a num_uniques histogram.
type DistEntry struct {
	NumUniques int   `json:"num_uniques"`
	Count      int64 `json:"count"`
}

// NiceNumber is a nice (or near-nice, "notable") number found by a search,
// carried as a decimal string since n can exceed 2^53.
type NiceNumber struct {
	Number     decimal.Decimal `json:"number"`
	NumUniques int             `json:"num_uniques"`
}

// ClaimResponse is returned by POST /claim/{mode}.
type ClaimResponse struct {
	ClaimID    int64           `json:"claim_id"`
	FieldID    int64           `json:"field_id"`
	Base       uint64          `json:"base"`
	RangeStart decimal.Decimal `json:"range_start"`
	RangeEnd   decimal.Decimal `json:"range_end"`
	RangeSize  decimal.Decimal `json:"range_size"`
}

// SubmitRequest is the body of POST /submit.
type SubmitRequest struct {
	ClaimID            int64        `json:"claim_id"`
	Username           string       `json:"username"`
	ClientVersion      string       `json:"client_version"`
	ElapsedSecs        float64      `json:"elapsed_secs"`
	UniqueDistribution []DistEntry  `json:"unique_distribution"`
	NiceNumbers        []NiceNumber `json:"nice_numbers"`
}
