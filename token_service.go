package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenServiceImpl signs session claims with an HMAC key
type TokenServiceImpl struct {
	signingKey []byte
	method     jwt.SigningMethod
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance. Only HMAC methods
// (HS256, HS384, HS512) are accepted, anything else falls back to HS256.
func NewTokenService(signingKey []byte, signingMethod, issuer string, audience []string, logger Logger) *TokenServiceImpl {
	method, ok := jwt.GetSigningMethod(signingMethod).(*jwt.SigningMethodHMAC)
	if !ok {
		method = jwt.SigningMethodHS256
	}

	return &TokenServiceImpl{
		signingKey: signingKey,
		method:     method,
		issuer:     issuer,
		audience:   audience,
		logger:     normalizeLogger(logger),
	}
}

// Sign signs the claims using the configured signing key.
func (ts *TokenServiceImpl) Sign(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(ts.method, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ts.method.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, sentinelError(ErrTokenExpired, nil)
		}
		return nil, sentinelError(ErrTokenMalformed, err)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("token validate could not decode or validate claims")
	return nil, sentinelError(ErrUnableToDecodeSession, nil)
}
