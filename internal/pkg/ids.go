package pkg

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	RoomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var ErrInvalidRoomCode = errors.New("invalid room code")

// NewParticipantID - generates a random anonymous identity scoped to a single room.
func NewParticipantID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate participant id: %w", err)
	}

	return id.String(), nil
}

// NewRecordID - generates an id for rooms and archived games.
func NewRecordID() string {
	return uuid.NewString()
}

// GenerateRoomCode - generates a short uppercase alphanumeric room code.
func GenerateRoomCode() (string, error) {
	limit := big.NewInt(int64(len(roomCodeAlphabet)))

	code := make([]byte, RoomCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		code[i] = roomCodeAlphabet[n.Int64()]
	}

	return string(code), nil
}

// NormalizeRoomCode - room codes are case-insensitive; the canonical form is uppercase.
func NormalizeRoomCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != RoomCodeLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, code)
	}

	for _, r := range normalized {
		if !strings.ContainsRune(roomCodeAlphabet, r) {
			return "", fmt.Errorf("%w: %q", ErrInvalidRoomCode, code)
		}
	}

	return normalized, nil
}
