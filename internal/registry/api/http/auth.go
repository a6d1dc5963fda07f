package http

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/formledger/formledger/internal/platform/errors"
	"github.com/formledger/formledger/internal/registry"
)

// identityEnv holds raw env values before post-parse validation.
type identityEnv struct {
	Issuer    string `env:"FORMLEDGER_IDENTITY_ISSUER"`
	Audience  string `env:"FORMLEDGER_IDENTITY_AUDIENCE"`
	PublicKey string `env:"FORMLEDGER_IDENTITY_PUBLIC_KEY"`
}

// IdentityConfig defines how identity tokens are verified.
type IdentityConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// identityClaims is the internal claims type used for JWT parsing.
type identityClaims struct {
	jwt.RegisteredClaims
}

// LoadIdentityConfigFromEnv reads identity token verification configuration.
func LoadIdentityConfigFromEnv(now func() time.Time) (IdentityConfig, error) {
	var raw identityEnv
	if err := env.Parse(&raw); err != nil {
		return IdentityConfig{}, fmt.Errorf("parse identity env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return IdentityConfig{}, fmt.Errorf("FORMLEDGER_IDENTITY_ISSUER is required")
	}
	if audience == "" {
		return IdentityConfig{}, fmt.Errorf("FORMLEDGER_IDENTITY_AUDIENCE is required")
	}
	if publicKey == "" {
		return IdentityConfig{}, fmt.Errorf("FORMLEDGER_IDENTITY_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return IdentityConfig{}, fmt.Errorf("decode identity public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return IdentityConfig{}, fmt.Errorf("identity public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return IdentityConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// VerifyIdentityToken verifies a bearer token and returns the caller
// identity carried in the subject claim.
func VerifyIdentityToken(token string, cfg IdentityConfig) (registry.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.New(apperrors.CodeIdentityTokenInvalid, "identity token is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return "", errors.New("identity verifier is not configured")
	}

	var parsed identityClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return "", apperrors.WithMetadata(
			apperrors.CodeIdentityTokenInvalid,
			"identity token issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return "", apperrors.WithMetadata(
			apperrors.CodeIdentityTokenInvalid,
			"identity token audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ExpiresAt == nil {
		return "", apperrors.New(apperrors.CodeIdentityTokenInvalid, "identity token exp is required")
	}

	now := cfg.Now().UTC()
	if !parsed.ExpiresAt.Time.UTC().After(now) {
		return "", apperrors.New(apperrors.CodeIdentityTokenExpired, "identity token is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return "", apperrors.New(apperrors.CodeIdentityTokenInvalid, "identity token not active yet")
	}

	identity, err := registry.NormalizeIdentity(parsed.Subject)
	if err != nil {
		return "", apperrors.New(apperrors.CodeIdentityTokenInvalid, "identity token subject is required")
	}
	return identity, nil
}

// bearerIdentity extracts and verifies the Authorization header of a request.
func bearerIdentity(r *http.Request, cfg IdentityConfig) (registry.Identity, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", apperrors.New(apperrors.CodeIdentityTokenInvalid, "authorization header is required")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", apperrors.New(apperrors.CodeIdentityTokenInvalid, "authorization header must use the Bearer scheme")
	}
	return VerifyIdentityToken(token, cfg)
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeIdentityTokenInvalid, "identity token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeIdentityTokenInvalid, "identity token alg is invalid")
	}
	return apperrors.New(apperrors.CodeIdentityTokenInvalid, "identity token is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
