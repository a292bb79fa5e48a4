package clientlib

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wasabipesto/niceengine/pkg/models"
)

func TestDistributionsEqualIgnoresOrder(t *testing.T) {
	a := []models.DistEntry{{NumUniques: 9, Count: 4}, {NumUniques: 10, Count: 1}}
	b := []models.DistEntry{{NumUniques: 10, Count: 1}, {NumUniques: 9, Count: 4}}
	if !distributionsEqual(a, b) {
		t.Fatalf("expected equal distributions regardless of slice order")
	}
}

func TestDistributionsEqualDetectsMismatch(t *testing.T) {
	a := []models.DistEntry{{NumUniques: 9, Count: 4}}
	b := []models.DistEntry{{NumUniques: 9, Count: 5}}
	if distributionsEqual(a, b) {
		t.Fatalf("expected mismatched counts to compare unequal")
	}
}

func TestNumbersEqualComparesByValue(t *testing.T) {
	a := []models.NiceNumber{{Number: decimal.RequireFromString("69"), NumUniques: 10}}
	b := []models.NiceNumber{{Number: decimal.RequireFromString("69"), NumUniques: 10}}
	if !numbersEqual(a, b) {
		t.Fatalf("expected identical nice-number sets to compare equal")
	}
	c := []models.NiceNumber{{Number: decimal.RequireFromString("70"), NumUniques: 10}}
	if numbersEqual(a, c) {
		t.Fatalf("expected different numbers to compare unequal")
	}
}
