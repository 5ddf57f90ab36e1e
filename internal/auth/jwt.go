package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/intima-health/backend/internal/config"
)

const (
	accessTokenLifetime  = 24 * time.Hour
	refreshTokenLifetime = 7 * 24 * time.Hour

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenPair is the bearer token pair issued on login and refresh.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// GenerateTokenPair issues an access/refresh pair for the given user.
func GenerateTokenPair(userID int64) (*TokenPair, error) {
	access, err := generateToken(userID, TokenTypeAccess, accessTokenLifetime)
	if err != nil {
		return nil, err
	}
	refresh, err := generateToken(userID, TokenTypeRefresh, refreshTokenLifetime)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func generateToken(userID int64, tokenType string, lifetime time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"typ": tokenType,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(lifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

// ValidateToken parses the token, verifies the signature and the expected
// token type, and returns the user ID it was issued for.
func ValidateToken(tokenString, expectedType string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	if typ, _ := claims["typ"].(string); typ != expectedType {
		return 0, fmt.Errorf("token is not a %s token", expectedType)
	}

	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject claim: %w", err)
	}
	return userID, nil
}
