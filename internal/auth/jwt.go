package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthFailure is the common sentinel for every token verification failure.
// The concrete reasons below all wrap it, so callers can match either the
// class or the specific cause with errors.Is.
var (
	AuthFailure = errors.New("authentication failure")

	ErrMissingToken     = fmt.Errorf("%w: missing token", AuthFailure)
	ErrMalformedToken   = fmt.Errorf("%w: malformed token", AuthFailure)
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", AuthFailure)
	ErrTokenExpired     = fmt.Errorf("%w: token expired", AuthFailure)
)

// Claims are the JWT claims bound to an issued credential.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// JWTConfig holds token issuance and verification settings.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// GenerateToken issues a signed credential for the given user.
func GenerateToken(cfg *JWTConfig, userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// VerifyToken validates a credential and returns the user it is bound to.
// Failures map onto the AuthFailure taxonomy; no I/O is performed.
func VerifyToken(cfg *JWTConfig, tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", ErrInvalidSignature
		default:
			return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", ErrMalformedToken
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return "", ErrInvalidSignature
	}

	if cfg.Audience != "" {
		validAudience := false
		for _, aud := range claims.Audience {
			if aud == cfg.Audience {
				validAudience = true
				break
			}
		}
		if !validAudience {
			return "", ErrInvalidSignature
		}
	}

	return claims.UserID, nil
}
