package env

import "testing"

func TestFirstPrefersEarlierKeys(t *testing.T) {
	t.Setenv("LD_TEST_A", "")
	t.Setenv("LD_TEST_B", "b")
	t.Setenv("LD_TEST_C", "c")

	if got := First("z", "LD_TEST_A", "LD_TEST_B", "LD_TEST_C"); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
	if got := First("z", "LD_TEST_MISSING"); got != "z" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := Get("LD_TEST_C", "x"); got != "c" {
		t.Fatalf("expected c, got %q", got)
	}
}
