package usertoken

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestNewVerifierRequiresJWKSURL(t *testing.T) {
	if _, err := NewVerifier(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing jwks url to fail")
	}
}

func TestVerifyIdentityAndRefreshOnUnknownKid(t *testing.T) {
	key1 := generateKey(t)
	key2 := generateKey(t)

	active := "kid-1"
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=1")
		pub := key1.PublicKey
		if active == "kid-2" {
			pub = key2.PublicKey
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{toJWK(active, pub)}})
	}))
	defer jwksServer.Close()

	ctx := context.Background()
	v, err := NewVerifier(ctx, Config{JWKSURL: jwksServer.URL, Issuer: "issuer-a", Audience: "aud-a"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	signed1 := signToken(t, key1, "kid-1", claimsFor("user-a", time.Now()))
	identity, err := v.VerifyIdentity(ctx, signed1)
	if err != nil {
		t.Fatalf("verify token1: %v", err)
	}
	if !identity.Authenticated || identity.ID != "user-a" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if identity.Name != "Ada" || identity.Picture != "https://example.com/a.png" {
		t.Fatalf("expected profile claims, got %+v", identity)
	}

	// Rotate to kid-2; the unknown kid triggers a refresh.
	active = "kid-2"
	signed2 := signToken(t, key2, "kid-2", claimsFor("user-b", time.Now()))
	identity, err = v.VerifyIdentity(ctx, signed2)
	if err != nil || identity.ID != "user-b" {
		t.Fatalf("verify token2 failed: id=%s err=%v", identity.ID, err)
	}
}

func TestVerifyIdentityRejectsFutureIssuedAt(t *testing.T) {
	key := generateKey(t)
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{toJWK("kid-1", key.PublicKey)}})
	}))
	defer jwksServer.Close()

	ctx := context.Background()
	v, err := NewVerifier(ctx, Config{
		JWKSURL:  jwksServer.URL,
		Issuer:   "issuer-a",
		Audience: "aud-a",
		Leeway:   5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	signed := signToken(t, key, "kid-1", claimsFor("user-1", time.Now().Add(2*time.Minute)))
	if _, err := v.VerifyIdentity(ctx, signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyIdentityRejectsWrongAudience(t *testing.T) {
	key := generateKey(t)
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{toJWK("kid-1", key.PublicKey)}})
	}))
	defer jwksServer.Close()

	ctx := context.Background()
	v, err := NewVerifier(ctx, Config{JWKSURL: jwksServer.URL, Issuer: "issuer-a", Audience: "aud-other"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	signed := signToken(t, key, "kid-1", claimsFor("user-1", time.Now()))
	if _, err := v.VerifyIdentity(ctx, signed); err == nil {
		t.Fatalf("expected audience mismatch to fail")
	}
}

func TestParseCacheMaxAge(t *testing.T) {
	if got := parseCacheMaxAge("public, max-age=60"); got != time.Minute {
		t.Fatalf("unexpected max-age: %s", got)
	}
	if got := parseCacheMaxAge("no-store"); got != 0 {
		t.Fatalf("expected zero for missing max-age, got %s", got)
	}
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func claimsFor(subject string, issuedAt time.Time) identityClaims {
	return identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "issuer-a",
			Audience:  jwt.ClaimStrings{"aud-a"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Second)),
		},
		Name:    "Ada",
		Picture: "https://example.com/a.png",
	}
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims identityClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func toJWK(kid string, key rsa.PublicKey) map[string]string {
	return map[string]string{
		"kty": "RSA",
		"kid": kid,
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}
