package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/lorrc/order-relay-backend/internal/core/domain"
	apperrors "github.com/lorrc/order-relay-backend/internal/core/errors"
)

// Claims defines the structured data we store in the JWT
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secretKey []byte
	tokenTTL  time.Duration
}

func NewTokenManager(secret string, tokenTTL time.Duration) *TokenManager {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &TokenManager{secretKey: []byte(secret), tokenTTL: tokenTTL}
}

// GenerateToken creates a new signed service token carrying the role.
func (tm *TokenManager) GenerateToken(role domain.Role) (string, error) {
	expirationTime := time.Now().Add(tm.tokenTTL)
	claims := &Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   string(role),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// ValidateToken parses and validates the token string
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// RoleFromToken validates a token and resolves its role claim. The role
// must be one of the authenticatable tags.
func (tm *TokenManager) RoleFromToken(tokenString string) (domain.Role, error) {
	claims, err := tm.ValidateToken(tokenString)
	if err != nil {
		return domain.RoleGuest, apperrors.ErrInvalidToken
	}

	role, ok := domain.ParseRole(claims.Role)
	if !ok {
		return domain.RoleGuest, apperrors.ErrInvalidRole
	}
	return role, nil
}

// VerifyAccessKey compares a plaintext access key against its bcrypt hash.
func VerifyAccessKey(hash, key string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return apperrors.ErrInvalidAPIKey
	}
	return nil
}

// HashAccessKey produces a bcrypt hash for an access key. Used by
// operators to provision the per-role keys in configuration.
func HashAccessKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
