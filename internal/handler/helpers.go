package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"joinus/partyboard/internal/handler/middleware"
	"joinus/partyboard/internal/service"
	"joinus/partyboard/pkg/response"
)

var ErrNoActor = errors.New("acting member not found in context")

// actor returns the member and guild set by JWTAuth.
func actor(c *gin.Context) (memberID, guildID string, err error) {
	memberID = c.GetString(middleware.ContextKeyMemberID)
	guildID = c.GetString(middleware.ContextKeyGuildID)
	if memberID == "" || guildID == "" {
		return "", "", ErrNoActor
	}
	return memberID, guildID, nil
}

func recruitmentIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recruitment id")
		return uuid.Nil, false
	}
	return id, true
}

// respondError writes err with its display message. msg falls back to the
// catalogue message when empty.
func respondError(c *gin.Context, err error, msg string) {
	if msg == "" {
		msg = service.MessageFor(err)
	}
	if errors.Is(err, service.ErrNotCreator) {
		response.Forbidden(c, msg)
		return
	}
	switch service.KindOf(err) {
	case service.KindValidation:
		response.BadRequest(c, msg)
	case service.KindNotFound:
		response.NotFound(c, msg)
	case service.KindConflict:
		response.Conflict(c, msg)
	case service.KindExternal:
		response.Error(c, http.StatusBadGateway, http.StatusBadGateway, msg)
	default:
		response.InternalError(c, msg)
	}
}
