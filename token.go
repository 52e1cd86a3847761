package main

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims binds a player identity to an issue/expiry window. The
// token only asserts continuity of identity within one process lifetime;
// it is not an authentication credential.
type sessionClaims struct {
	PlayerID string `json:"id"`
	jwt.RegisteredClaims
}

type sessionTokens struct {
	secret   []byte
	lifetime time.Duration
}

func newSessionTokens(secret string, lifetime time.Duration) *sessionTokens {
	return &sessionTokens{
		secret:   []byte(secret),
		lifetime: lifetime,
	}
}

func (s *sessionTokens) issue(playerID string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// verify returns the player identity encoded in the token, or
// errInvalidToken if the signature or validity window does not hold.
// Callers receiving errInvalidToken must discard the token.
func (s *sessionTokens) verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return "", errInvalidToken
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid || claims.PlayerID == "" {
		return "", errInvalidToken
	}

	return claims.PlayerID, nil
}
