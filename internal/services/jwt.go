package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"lulacoin-miner-backend/internal/clock"
	"lulacoin-miner-backend/internal/models"
)

const tokenIssuer = "lulacoin-miner"

type Claims struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

func (c *Claims) Player() models.Player {
	return models.Player{ID: c.UserID, Username: c.Username}
}

// JWTService verifies the access tokens issued by the account service. GenerateToken
// exists for tooling and tests; accounts are not created here.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewJWTService(secret string, ttl time.Duration, clk clock.Clock) *JWTService {
	return &JWTService{secret: []byte(secret), ttl: ttl, clock: clk}
}

func (s *JWTService) GenerateToken(player models.Player) (string, error) {
	now := s.clock.Now()
	claims := &Claims{
		UserID:    player.ID,
		Username:  player.Username,
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   player.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}
	return claims, nil
}
