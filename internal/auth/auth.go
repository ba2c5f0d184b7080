package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingAuthHeader = errors.New("authorization header required")
	ErrInvalidToken      = errors.New("invalid token")
)

// Verifier issues and validates the HS256 access tokens used by both the
// HTTP API and the gateway handshake. The secret is injected at
// construction instead of read from the environment per call, so tests
// can run with their own verifiers.
type Verifier struct {
	secret   []byte
	tokenTTL time.Duration
}

func NewVerifier(secret string, tokenTTL time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret cannot be empty")
	}
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &Verifier{secret: []byte(secret), tokenTTL: tokenTTL}, nil
}

// Generate signs an access token for the user.
func (v *Verifier) Generate(userID uint) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(v.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseUserID validates the token and returns the user id it carries.
func (v *Verifier) ParseUserID(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}

	// JWT numbers decode as float64; reject anything that is not a
	// positive integral value.
	raw, ok := claims["user_id"]
	if !ok {
		return 0, fmt.Errorf("%w: user_id claim missing", ErrInvalidToken)
	}
	userIDFloat, ok := raw.(float64)
	if !ok || userIDFloat <= 0 || userIDFloat != float64(uint(userIDFloat)) {
		return 0, fmt.Errorf("%w: user_id claim is not a valid id", ErrInvalidToken)
	}
	return uint(userIDFloat), nil
}

// FromRequest extracts and validates the bearer token of an HTTP request.
func (v *Verifier) FromRequest(r *http.Request) (uint, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return 0, ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return 0, fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
	}
	return v.ParseUserID(parts[1])
}
