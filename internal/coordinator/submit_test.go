package coordinator

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wasabipesto/niceengine/pkg/models"
)

func testField() models.Field {
	return models.Field{
		ID:         1,
		BaseID:     1,
		RangeStart: decimal.NewFromInt(0),
		RangeEnd:   decimal.NewFromInt(100),
	}
}

func testBase() models.Base {
	return models.Base{ID: 1, B: 10}
}

// fullDistribution builds a complete histogram over [1, b] with every count
// zero except the buckets passed in.
func fullDistribution(b int, counts map[int]int64) []models.DistEntry {
	dist := make([]models.DistEntry, 0, b)
	for u := 1; u <= b; u++ {
		dist = append(dist, models.DistEntry{NumUniques: u, Count: counts[u]})
	}
	return dist
}

func TestValidateSubmissionDetailedRequiresMatchingSum(t *testing.T) {
	sub := models.Submission{
		SearchMode:   models.ModeDetailed,
		Distribution: fullDistribution(10, map[int]int64{5: 50, 10: 49}),
	}
	if err := validateSubmission(sub, testField(), testBase()); err == nil {
		t.Fatalf("expected error for distribution sum not matching range size")
	}
}

func TestValidateSubmissionDetailedAcceptsMatchingSum(t *testing.T) {
	sub := models.Submission{
		SearchMode:   models.ModeDetailed,
		Distribution: fullDistribution(10, map[int]int64{5: 50, 10: 50}),
	}
	if err := validateSubmission(sub, testField(), testBase()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateSubmissionDetailedRequiresCompleteHistogram(t *testing.T) {
	// Sum matches the range size but buckets 1..4 and 6..9 are missing.
	sub := models.Submission{
		SearchMode:   models.ModeDetailed,
		Distribution: []models.DistEntry{{NumUniques: 5, Count: 50}, {NumUniques: 10, Count: 50}},
	}
	if err := validateSubmission(sub, testField(), testBase()); err == nil {
		t.Fatalf("expected error for histogram missing buckets")
	}
}

func TestValidateSubmissionRejectsNumberOutsideField(t *testing.T) {
	sub := models.Submission{
		SearchMode:   models.ModeDetailed,
		Distribution: fullDistribution(10, map[int]int64{10: 100}),
		Numbers:      []models.NiceNumber{{Number: decimal.NewFromInt(200), NumUniques: 10}},
	}
	if err := validateSubmission(sub, testField(), testBase()); err == nil {
		t.Fatalf("expected error for number outside field range")
	}
}

func TestValidateSubmissionRejectsBelowNotableThreshold(t *testing.T) {
	sub := models.Submission{
		SearchMode:   models.ModeDetailed,
		Distribution: fullDistribution(10, map[int]int64{5: 100}),
		Numbers:      []models.NiceNumber{{Number: decimal.NewFromInt(50), NumUniques: 5}},
	}
	if err := validateSubmission(sub, testField(), testBase()); err == nil {
		t.Fatalf("expected error for number below notable threshold")
	}
}

func TestValidateSubmissionNiceOnlyRequiresExactBase(t *testing.T) {
	sub := models.Submission{
		SearchMode: models.ModeNiceOnly,
		Numbers:    []models.NiceNumber{{Number: decimal.NewFromInt(50), NumUniques: 9}},
	}
	if err := validateSubmission(sub, testField(), testBase()); err == nil {
		t.Fatalf("expected error for niceonly number with num_uniques != base")
	}
}

func TestValidateSubmissionNiceOnlyAcceptsExactBase(t *testing.T) {
	sub := models.Submission{
		SearchMode: models.ModeNiceOnly,
		Numbers:    []models.NiceNumber{{Number: decimal.NewFromInt(50), NumUniques: 10}},
	}
	if err := validateSubmission(sub, testField(), testBase()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubmissionsAgreeIgnoresMetadata(t *testing.T) {
	a := models.Submission{
		Username:      "alice",
		ClientVersion: "1.0",
		ElapsedSecs:   12.5,
		Distribution:  []models.DistEntry{{NumUniques: 10, Count: 3}},
		Numbers:       []models.NiceNumber{{Number: decimal.NewFromInt(69), NumUniques: 10}},
	}
	b := models.Submission{
		Username:      "bob",
		ClientVersion: "2.0",
		ElapsedSecs:   40.0,
		Distribution:  []models.DistEntry{{NumUniques: 10, Count: 3}},
		Numbers:       []models.NiceNumber{{Number: decimal.NewFromInt(69), NumUniques: 10}},
	}
	if !submissionsAgree(a, b, 10) {
		t.Fatalf("expected agreement ignoring metadata-only differences")
	}
}

func TestSubmissionsDisagreeOnDifferentDistribution(t *testing.T) {
	a := models.Submission{Distribution: []models.DistEntry{{NumUniques: 10, Count: 3}}}
	b := models.Submission{Distribution: []models.DistEntry{{NumUniques: 10, Count: 4}}}
	if submissionsAgree(a, b, 10) {
		t.Fatalf("expected disagreement on differing counts")
	}
}

func TestSubmissionsDisagreeOnDifferentNiceNumbers(t *testing.T) {
	a := models.Submission{Numbers: []models.NiceNumber{{Number: decimal.NewFromInt(69), NumUniques: 10}}}
	b := models.Submission{Numbers: []models.NiceNumber{{Number: decimal.NewFromInt(70), NumUniques: 10}}}
	if submissionsAgree(a, b, 10) {
		t.Fatalf("expected disagreement on differing nice numbers")
	}
}

func TestSubmissionsAgreeWhenBothEmpty(t *testing.T) {
	if !submissionsAgree(models.Submission{}, models.Submission{}, 10) {
		t.Fatalf("two empty submissions should agree")
	}
}

// Two submissions that find the same nice number (num_uniques == b) but
// report different near-miss notable entries (num_uniques < b) must still
// agree, since only actual nice numbers are part of the consensus check.
func TestSubmissionsAgreeDespiteDifferingNotableEntries(t *testing.T) {
	a := models.Submission{
		Numbers: []models.NiceNumber{
			{Number: decimal.NewFromInt(69), NumUniques: 10},
			{Number: decimal.NewFromInt(42), NumUniques: 9},
		},
	}
	b := models.Submission{
		Numbers: []models.NiceNumber{
			{Number: decimal.NewFromInt(69), NumUniques: 10},
			{Number: decimal.NewFromInt(17), NumUniques: 8},
		},
	}
	if !submissionsAgree(a, b, 10) {
		t.Fatalf("submissions agreeing on nice numbers should agree despite differing notable entries")
	}
}

// A detailed submission landing on a field whose canon came from a niceonly
// scan has no distribution to compare against, but the actual nice-number
// sets must still match.
func TestAgreeOnNiceNumbersAcrossModes(t *testing.T) {
	niceonlyCanon := models.Submission{
		SearchMode: models.ModeNiceOnly,
		Numbers:    []models.NiceNumber{{Number: decimal.NewFromInt(69), NumUniques: 10}},
	}
	detailed := models.Submission{
		SearchMode:   models.ModeDetailed,
		Distribution: fullDistribution(10, map[int]int64{10: 1}),
		Numbers: []models.NiceNumber{
			{Number: decimal.NewFromInt(69), NumUniques: 10},
			{Number: decimal.NewFromInt(42), NumUniques: 9},
		},
	}
	if !agreeOnNiceNumbers(niceonlyCanon, detailed, 10) {
		t.Fatalf("detailed submission finding the same nice number should agree with a niceonly canon")
	}

	missing := models.Submission{
		SearchMode:   models.ModeDetailed,
		Distribution: fullDistribution(10, map[int]int64{9: 1}),
	}
	if agreeOnNiceNumbers(niceonlyCanon, missing, 10) {
		t.Fatalf("detailed submission missing the canon's nice number must disagree")
	}
}

func TestIndependentNiceOnlyClaimsCountsDistinctClaims(t *testing.T) {
	existing := []models.Submission{{ClaimID: 7}}
	if got := independentNiceOnlyClaims(existing, 9); got != 2 {
		t.Fatalf("two submissions under distinct claims should count as 2, got %d", got)
	}
	// A re-submission under the same claim is a replay, not independent
	// verification.
	if got := independentNiceOnlyClaims(existing, 7); got != 1 {
		t.Fatalf("a re-submission under the same claim should count as 1, got %d", got)
	}
	if got := independentNiceOnlyClaims(nil, 3); got != 1 {
		t.Fatalf("first submission should count as 1, got %d", got)
	}
}

func TestSubmissionsDisagreeWhenNiceNumberSetsDiffer(t *testing.T) {
	a := models.Submission{
		Numbers: []models.NiceNumber{
			{Number: decimal.NewFromInt(69), NumUniques: 10},
			{Number: decimal.NewFromInt(42), NumUniques: 9},
		},
	}
	b := models.Submission{
		Numbers: []models.NiceNumber{
			{Number: decimal.NewFromInt(42), NumUniques: 9},
		},
	}
	if submissionsAgree(a, b, 10) {
		t.Fatalf("expected disagreement when the actual nice-number sets differ")
	}
}
