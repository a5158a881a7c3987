package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"joinus/partyboard/internal/model"
	"joinus/partyboard/internal/service"
	"joinus/partyboard/pkg/response"
)

type AdminHandler struct {
	activity service.ActivityService
	ranks    service.RankService
	now      func() time.Time
}

func NewAdminHandler(activity service.ActivityService, ranks service.RankService) *AdminHandler {
	return &AdminHandler{activity: activity, ranks: ranks, now: time.Now}
}

func guildParam(c *gin.Context) (string, bool) {
	guildID := c.Param("guild_id")
	if !model.ValidSnowflake(guildID) {
		response.BadRequest(c, "invalid guild id")
		return "", false
	}
	return guildID, true
}

// RunActivityPass runs one scoring pass now and returns its report.
func (h *AdminHandler) RunActivityPass(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	report, err := h.activity.RunScoringPass(c.Request.Context(), guildID, h.now())
	if err != nil {
		respondError(c, err, "activity scoring failed")
		return
	}
	response.Success(c, report)
}

// RefreshRanks re-reads every linked member's rank now.
func (h *AdminHandler) RefreshRanks(c *gin.Context) {
	guildID, ok := guildParam(c)
	if !ok {
		return
	}
	report, err := h.ranks.RefreshMemberRanks(c.Request.Context(), guildID, h.now())
	if err != nil {
		respondError(c, err, "rank refresh failed")
		return
	}
	response.Success(c, report)
}
