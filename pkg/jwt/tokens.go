package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const issuer = "reframe"

var (
	// ErrTokenExpired reports a well-formed token whose exp claim has passed.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenInvalid reports a token that is malformed, forged or signed with another method.
	ErrTokenInvalid = errors.New("jwt: token invalid")
)

// Claims defines JWT payload. The subject carries the user id.
type Claims struct {
	jwtlib.RegisteredClaims
}

// GenerateToken issues a signed JWT for userID valid for ttl.
func GenerateToken(userID, secret string, ttl time.Duration) (string, error) {
	return generateToken(userID, secret, ttl, time.Now())
}

func generateToken(userID, secret string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse validates token and returns the embedded user id. Failures are
// reported as ErrTokenExpired or ErrTokenInvalid.
func Parse(token, secret string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrTokenInvalid
	}
	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}), jwtlib.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
