package auth

import "testing"

func TestHashAndVerifyToken(t *testing.T) {
	t.Parallel()

	hash, err := HashToken("vantage-api-token-1")
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !VerifyToken("vantage-api-token-1", hash) {
		t.Fatalf("expected token verification to succeed")
	}
	if VerifyToken("wrong-token", hash) {
		t.Fatalf("did not expect wrong token to verify")
	}
	if VerifyToken("", hash) || VerifyToken("vantage-api-token-1", "") {
		t.Fatalf("empty token or hash must not verify")
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	token, ok := BearerToken("Bearer abc123")
	if !ok || token != "abc123" {
		t.Fatalf("BearerToken = %q %v", token, ok)
	}
	if _, ok := BearerToken("bearer xyz"); !ok {
		t.Fatalf("scheme should match case-insensitively")
	}
	for _, header := range []string{"", "Bearer ", "Basic abc", "abc123"} {
		if _, ok := BearerToken(header); ok {
			t.Fatalf("header %q should not parse", header)
		}
	}
}
