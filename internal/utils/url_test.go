package utils

import "testing"

func TestNormalizeURL(t *testing.T) {
	normalized, domain, err := NormalizeURL("https://Example.com/path?utm_source=test&x=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if domain != "example.com" {
		t.Fatalf("unexpected domain: %s", domain)
	}
	if normalized != "https://example.com/path?x=1" {
		t.Fatalf("unexpected normalized url: %s", normalized)
	}
}

func TestNormalizeURLAddsScheme(t *testing.T) {
	normalized, domain, err := NormalizeURL("example.com/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if domain != "example.com" || normalized != "https://example.com/x" {
		t.Fatalf("unexpected result %s %s", normalized, domain)
	}
}

func TestFirstURL(t *testing.T) {
	if got := FirstURL("check https://a.example and https://b.example"); got != "https://a.example" {
		t.Fatalf("unexpected first url %q", got)
	}
	if got := FirstURL("no links"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
