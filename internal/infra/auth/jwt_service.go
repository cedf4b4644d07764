// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/rand"
	"math/big"
	"time"

	"gateway/config"
	domainerrors "gateway/internal/domain/errors"
	"gateway/internal/domain/service"
	"gateway/internal/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTTL is the lifetime of an access token when none is configured.
	DefaultAccessTTL = 5 * time.Minute
	// DefaultRefreshTTL is the lifetime of a refresh token when none is configured.
	DefaultRefreshTTL = 365 * 24 * time.Hour

	// MinSecretLength is the shortest accepted HS256 signing secret, in bytes.
	MinSecretLength = 32

	nonceLength   = 10
	nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Registered claim names written by the codec. Caller payloads cannot override them.
const (
	claimExpiresAt = "exp"
	claimIssuedAt  = "iat"
	claimTokenID   = "jti"
	claimType      = "typ"
	claimNonce     = "data"
)

// jwtCodec is the TokenCodec implementation using HS256-signed JWTs.
type jwtCodec struct {
	secret     []byte           // Process-wide signing secret, injected from config.
	accessTTL  time.Duration    // Default lifetime of access tokens.
	refreshTTL time.Duration    // Default lifetime of refresh tokens.
	now        func() time.Time // Clock, read once per issue or verify.
}

// NewJWTCodec is the constructor for jwtCodec.
// It takes the signing secret and token lifetimes from the auth config section.
func NewJWTCodec(cfg *config.Config) (service.TokenCodec, error) {
	return newJWTCodec(cfg.Auth.Secret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, time.Now)
}

func newJWTCodec(secret string, accessTTL, refreshTTL time.Duration, now func() time.Time) (*jwtCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, errors.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	if now == nil {
		now = time.Now
	}

	return &jwtCodec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
	}, nil
}

// IssueAccess signs payload together with an expiry.
func (c *jwtCodec) IssueAccess(payload map[string]any, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.accessTTL
	}

	claims := make(jwt.MapClaims, len(payload)+4)
	for k, v := range payload {
		claims[k] = v
	}

	return c.sign(claims, service.TokenTypeAccess, ttl)
}

// IssueRefresh signs a random nonce together with an expiry.
func (c *jwtCodec) IssueRefresh(ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.refreshTTL
	}

	nonce, err := randomNonce(nonceLength)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate refresh nonce")
	}

	return c.sign(jwt.MapClaims{claimNonce: nonce}, service.TokenTypeRefresh, ttl)
}

// Verify parses the token and checks its signature and expiry against a single clock read.
func (c *jwtCodec) Verify(tokenString string) (claims service.Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims = nil
			err = domainerrors.ErrInvalidToken.WrapMessage("token decoding panicked")
		}
	}()

	now := c.now()
	mapClaims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, mapClaims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, domainerrors.ErrInvalidToken.WrapMessage(describeParseError(err))
	}
	if !token.Valid {
		return nil, domainerrors.ErrInvalidToken.WrapMessage("token is not valid")
	}

	return service.Claims(mapClaims), nil
}

// VerifyAccess rejects anything that is not an access token.
func (c *jwtCodec) VerifyAccess(tokenString string) (service.Claims, error) {
	return c.verifyType(tokenString, service.TokenTypeAccess)
}

// VerifyRefresh rejects anything that is not a refresh token.
func (c *jwtCodec) VerifyRefresh(tokenString string) (service.Claims, error) {
	return c.verifyType(tokenString, service.TokenTypeRefresh)
}

func (c *jwtCodec) verifyType(tokenString, want string) (service.Claims, error) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	if typ, _ := claims[claimType].(string); typ != want {
		return nil, domainerrors.ErrInvalidToken.WrapMessage("unexpected token type")
	}

	return claims, nil
}

func (c *jwtCodec) keyFunc(token *jwt.Token) (any, error) {
	// Ensure the signing method is what we expect.
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, jwt.ErrSignatureInvalid
	}

	return c.secret, nil
}

func (c *jwtCodec) sign(claims jwt.MapClaims, tokenType string, ttl time.Duration) (string, error) {
	now := c.now()
	claims[claimIssuedAt] = now.Unix()
	claims[claimExpiresAt] = now.Add(ttl).Unix()
	claims[claimTokenID] = uuid.NewString()
	claims[claimType] = tokenType

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", errors.Wrapf(err, "failed to sign %s token", tokenType)
	}

	return signed, nil
}

func describeParseError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "token has no expiry"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return "token signature is invalid"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "token is malformed"
	default:
		return "token could not be verified"
	}
}

func randomNonce(n int) (string, error) {
	limit := big.NewInt(int64(len(nonceAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", errors.WithStack(err)
		}
		buf[i] = nonceAlphabet[idx.Int64()]
	}

	return string(buf), nil
}
