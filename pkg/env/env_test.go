package env

import "testing"

func TestGetTrimsAndFallsBack(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_VALUE", "   ")
	if got := Get("STOREFRONT_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("blank value should fall back, got %q", got)
	}
	t.Setenv("STOREFRONT_TEST_VALUE", " console ")
	if got := Get("STOREFRONT_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestFirstPicksEarliestSetKey(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_A", "")
	t.Setenv("STOREFRONT_TEST_B", "b")
	t.Setenv("STOREFRONT_TEST_C", "c")
	if got := First("STOREFRONT_TEST_A", "STOREFRONT_TEST_B", "STOREFRONT_TEST_C"); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
	if got := First("STOREFRONT_TEST_MISSING"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
