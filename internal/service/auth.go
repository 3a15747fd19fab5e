package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
)

// ParticipantClaims - a token is valid for exactly one seat in one room.
type ParticipantClaims struct {
	RoomCode      string      `json:"roomCode"`
	ParticipantID string      `json:"participantId"`
	Role          entity.Role `json:"role"`
	jwt.RegisteredClaims
}

type AuthService interface {
	GenerateParticipantToken(roomCode, participantID string, role entity.Role) (string, error)
	ValidateParticipantToken(tokenString string) (*ParticipantClaims, error)
}

type authServiceImpl struct {
	secretKey []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewAuthService(secretKey string, tokenTTL time.Duration) AuthService {
	return &authServiceImpl{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

func (that *authServiceImpl) GenerateParticipantToken(roomCode, participantID string, role entity.Role) (string, error) {
	now := that.now()

	claims := &ParticipantClaims{
		RoomCode:      roomCode,
		ParticipantID: participantID,
		Role:          role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  participantID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	if that.tokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(that.tokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(that.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

func (that *authServiceImpl) ValidateParticipantToken(tokenString string) (*ParticipantClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ParticipantClaims{}, func(*jwt.Token) (any, error) {
		return that.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(that.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*ParticipantClaims)
	if !ok || !token.Valid || claims.RoomCode == "" || claims.ParticipantID == "" {
		return nil, apperror.ErrInvalidToken
	}

	return claims, nil
}
