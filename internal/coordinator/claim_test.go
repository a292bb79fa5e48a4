package coordinator

import (
	"strings"
	"testing"
)

func TestSelectFieldSQLPrioritizedFiltersOnFlag(t *testing.T) {
	sql := selectFieldSQL(policyPrioritized)
	if !strings.Contains(sql, "f.prioritize = TRUE") {
		t.Fatalf("prioritized policy must filter on prioritize flag, got: %s", sql)
	}
}

func TestSelectFieldSQLThinJoinsChunks(t *testing.T) {
	sql := selectFieldSQL(policyThin)
	if !strings.Contains(sql, "JOIN chunks") {
		t.Fatalf("thin policy must join chunks to evaluate checked fraction, got: %s", sql)
	}
}

func TestSelectFieldSQLEveryPolicyUsesSkipLocked(t *testing.T) {
	for _, p := range []string{policyNormal, policyThin, policyPrioritized} {
		sql := selectFieldSQL(p)
		if !strings.Contains(sql, "FOR UPDATE SKIP LOCKED") {
			t.Fatalf("policy %q must use FOR UPDATE SKIP LOCKED to avoid double-assignment, got: %s", p, sql)
		}
	}
}
