package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/greengrocer/storefront/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	accountID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{AccountID: accountID, Username: "ana", JTI: "jti-1"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.AccountID != accountID {
		t.Fatalf("expected account_id %s, got %s", accountID, claims.AccountID)
	}
	if claims.Username != "ana" {
		t.Fatalf("unexpected username %q", claims.Username)
	}
	if claims.ID != "jti-1" {
		t.Fatalf("unexpected jti %q", claims.ID)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 30*time.Minute {
		t.Fatalf("unexpected ttl %v", got)
	}
}

func TestMintAccessTokenGeneratesJTI(t *testing.T) {
	token, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{AccountID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := ParseAccessToken(testJWTConfig(), token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		t.Fatalf("expected uuid jti, got %q", claims.ID)
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{AccountID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	token, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{AccountID: uuid.New()})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := testJWTConfig()
	other.Secret = "other"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestMintAccessTokenRequiresAccount(t *testing.T) {
	if _, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{}); err == nil {
		t.Fatalf("expected error for missing account id")
	}
}
