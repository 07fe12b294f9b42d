package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pix-server/internal/utils"
)

// AuthService hashes account secrets and, when a signing key is configured,
// issues signed session tokens.
type AuthService struct {
	jwtSecret     []byte
	jwtExpiration time.Duration
	cost          int
}

// NewAuthService builds the service. A zero expiration issues tokens
// without an exp claim.
func NewAuthService(secret string, expiration time.Duration) *AuthService {
	utils.LogSuccess("AuthService", "Authentication service ready (token TTL: %v)", expiration)
	return &AuthService{
		jwtSecret:     []byte(secret),
		jwtExpiration: expiration,
		cost:          bcrypt.DefaultCost,
	}
}

// SetHashCost overrides the bcrypt cost used for new hashes.
func (s *AuthService) SetHashCost(cost int) {
	s.cost = cost
}

func (s *AuthService) HashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hashed), nil
}

func (s *AuthService) CheckSecret(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

type Claims struct {
	CPF string `json:"cpf"`
	jwt.RegisteredClaims
}

// Generate signs a token for the identity. Every call gets a fresh jti so
// two logins never share a token.
func (s *AuthService) Generate(identity string) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}

	now := time.Now()
	claims := &Claims{
		CPF: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.jwtExpiration != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.jwtExpiration))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		utils.LogError("AuthService", "Token signing failed", err)
		return "", err
	}
	return signed, nil
}

// Verify checks signature and expiry. It does not know whether the session
// was revoked; the session store decides that.
func (s *AuthService) Verify(tokenString string) error {
	_, err := s.parse(tokenString)
	return err
}

func (s *AuthService) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		utils.LogDebug("AuthService", "Rejected token: %v", err)
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
