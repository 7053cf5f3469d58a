// server/internal/auth/auth.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"blooddoc-api-server/internal/models"
)

const bcryptCost = 10

var ErrInvalidToken = errors.New("invalid or expired token")

// Principal is the authenticated caller, rebuilt from token claims on every request.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// JWTClaims defines the payload for the JWT.
type JWTClaims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Hashing
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// TokenManager signs and verifies HS256 tokens with an injected secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenManager) Generate(p Principal) (string, error) {
	now := m.now()
	claims := &JWTClaims{
		ID:    p.ID,
		Email: p.Email,
		Name:  p.Name,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *TokenManager) Parse(tokenString string) (Principal, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	if claims.ID == "" || claims.Role == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{ID: claims.ID, Email: claims.Email, Name: claims.Name, Role: claims.Role}, nil
}

// Authorize reports whether p may act on resources owned by ownerID.
func Authorize(p Principal, ownerID string) bool {
	if p.Role == models.RoleAdmin {
		return true
	}
	return p.ID != "" && p.ID == ownerID
}
