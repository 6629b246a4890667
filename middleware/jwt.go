package middleware

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// jwtSecret signs every issued token. Set JWT_SECRET in production.
func jwtSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "secret"
	}
	return []byte(secret)
}

const tokenLifetime = 72 * time.Hour

// GenerateJWT issues a signed token carrying the user's email.
func GenerateJWT(email string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(tokenLifetime).Unix(),
	})
	return token.SignedString(jwtSecret())
}

// parseJWT validates a raw token string and returns the email claim.
func parseJWT(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret(), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return "", errors.New("token has no email claim")
	}
	return email, nil
}

// stripBearer removes the "Bearer " prefix clients send in the
// Authorization header.
func stripBearer(header string) string {
	return strings.TrimPrefix(header, "Bearer ")
}

// JWT_decoder extracts and validates the token from a request's
// Authorization header, returning the email it was issued to.
func JWT_decoder(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errors.New("missing Authorization header")
	}
	return parseJWT(stripBearer(header))
}

// Socketio_JWT_decoder validates the token a socket.io client sends in
// its handshake auth data.
func Socketio_JWT_decoder(authData map[string]interface{}) (string, error) {
	raw, ok := authData["authorization"].(string)
	if !ok || raw == "" {
		return "", errors.New("missing authorization in handshake auth")
	}
	return parseJWT(stripBearer(raw))
}
