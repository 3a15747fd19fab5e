package rest

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rocketscienceinc/tictactoe-online/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-online/internal/entity"
	"github.com/rocketscienceinc/tictactoe-online/internal/service"
)

const bearerPrefix = "Bearer "

type authService interface {
	GenerateParticipantToken(roomCode, participantID string, role entity.Role) (string, error)
	ValidateParticipantToken(tokenString string) (*service.ParticipantClaims, error)
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}

// participant - the claims of the request's token, which must belong to the room with code.
func (that *handlers) participant(r *http.Request, code string) (*service.ParticipantClaims, error) {
	token := extractBearerToken(r)
	if token == "" {
		return nil, fmt.Errorf("%w: missing authorization header", apperror.ErrInvalidToken)
	}

	claims, err := that.auth.ValidateParticipantToken(token)
	if err != nil {
		return nil, err
	}

	if claims.RoomCode != code {
		return nil, fmt.Errorf("%w: token is not valid for room %s", apperror.ErrNotRoomMember, code)
	}

	return claims, nil
}
