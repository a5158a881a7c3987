package handler

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"joinus/partyboard/internal/model"
	"joinus/partyboard/internal/service"
	"joinus/partyboard/pkg/response"
)

type RecruitmentHandler struct {
	recruitments  service.RecruitmentService
	notifications service.NotificationService
	logger        *zap.Logger
}

func NewRecruitmentHandler(recruitments service.RecruitmentService, notifications service.NotificationService, logger *zap.Logger) *RecruitmentHandler {
	return &RecruitmentHandler{recruitments: recruitments, notifications: notifications, logger: logger.Named("recruitment_handler")}
}

type CreateRecruitmentRequest struct {
	PartyType       string   `json:"party_type" binding:"required"`
	AdditionalSlots int      `json:"additional_slots"`
	Deadline        string   `json:"deadline" binding:"required"`
	CoMembers       []string `json:"co_members"`
	VoiceMembers    []string `json:"voice_members"`
}

type EditRecruitmentRequest struct {
	PartyType       *string `json:"party_type"`
	MaxParticipants *int    `json:"max_participants"`
	Deadline        *string `json:"deadline"`
}

type AttachMessageRequest struct {
	MessageRef string `json:"message_ref" binding:"required"`
}

// RecruitmentView is a recruitment with its live roster.
type RecruitmentView struct {
	*model.Recruitment
	Participants []string `json:"participants"`
	Remaining    int      `json:"remaining"`
}

func (h *RecruitmentHandler) view(ctx context.Context, rec *model.Recruitment) (*RecruitmentView, error) {
	participants, err := h.recruitments.Roster(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	ids := model.MemberIDs(participants)
	remaining := rec.MaxParticipants - len(ids)
	if remaining < 0 {
		remaining = 0
	}
	return &RecruitmentView{Recruitment: rec, Participants: ids, Remaining: remaining}, nil
}

// respondView renders rec with its roster, or the error reading it.
func (h *RecruitmentHandler) respondView(c *gin.Context, msg string, rec *model.Recruitment) {
	v, err := h.view(c.Request.Context(), rec)
	if err != nil {
		respondError(c, err, "")
		return
	}
	response.SuccessMessage(c, msg, v)
}

func (h *RecruitmentHandler) Create(c *gin.Context) {
	memberID, guildID, err := actor(c)
	if err != nil {
		response.Unauthorized(c, "invalid member context")
		return
	}
	var req CreateRecruitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	rec, msg, err := h.recruitments.Create(c.Request.Context(), service.CreateInput{
		GuildID:         guildID,
		CreatorID:       memberID,
		PartyType:       req.PartyType,
		AdditionalSlots: req.AdditionalSlots,
		DeadlineText:    req.Deadline,
		CoMembers:       req.CoMembers,
		VoiceMembers:    req.VoiceMembers,
	})
	if err != nil {
		respondError(c, err, msg)
		return
	}
	h.respondView(c, msg, rec)
}

// GetOpen returns the actor's open recruitment.
func (h *RecruitmentHandler) GetOpen(c *gin.Context) {
	memberID, guildID, err := actor(c)
	if err != nil {
		response.Unauthorized(c, "invalid member context")
		return
	}
	rec, err := h.recruitments.GetOpenByCreator(c.Request.Context(), guildID, memberID)
	if err != nil {
		respondError(c, err, "")
		return
	}
	h.respondView(c, "ok", rec)
}

// EditOpen edits the actor's open recruitment.
func (h *RecruitmentHandler) EditOpen(c *gin.Context) {
	memberID, guildID, err := actor(c)
	if err != nil {
		response.Unauthorized(c, "invalid member context")
		return
	}
	var req EditRecruitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	rec, err := h.recruitments.GetOpenByCreator(ctx, guildID, memberID)
	if err != nil {
		respondError(c, err, "")
		return
	}
	updated, msg, err := h.recruitments.Edit(ctx, rec.ID, service.EditInput{
		PartyType:       req.PartyType,
		MaxParticipants: req.MaxParticipants,
		DeadlineText:    req.Deadline,
	})
	if err != nil {
		respondError(c, err, msg)
		return
	}
	h.respondView(c, msg, updated)
}

// CancelOpen cancels the actor's open recruitment and tells everyone else
// on the roster.
func (h *RecruitmentHandler) CancelOpen(c *gin.Context) {
	memberID, guildID, err := actor(c)
	if err != nil {
		response.Unauthorized(c, "invalid member context")
		return
	}

	ctx := c.Request.Context()
	result, msg, err := h.recruitments.Cancel(ctx, guildID, memberID)
	if err != nil {
		respondError(c, err, msg)
		return
	}

	text := fmt.Sprintf("The %s recruitment you joined has been cancelled.", result.Recruitment.PartyType)
	sent, failed := h.notifications.Broadcast(ctx, result.ParticipantIDs, memberID, text)
	response.SuccessMessage(c, msg, gin.H{
		"recruitment":     result.Recruitment,
		"participants":    result.ParticipantIDs,
		"notified":        sent,
		"notify_failures": failed,
	})
}

func (h *RecruitmentHandler) Get(c *gin.Context) {
	id, ok := recruitmentIDParam(c)
	if !ok {
		return
	}
	rec, err := h.recruitments.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "")
		return
	}
	h.respondView(c, "ok", rec)
}

func (h *RecruitmentHandler) GetByMessage(c *gin.Context) {
	rec, err := h.recruitments.GetByMessageRef(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err, "")
		return
	}
	h.respondView(c, "ok", rec)
}

func (h *RecruitmentHandler) AttachMessage(c *gin.Context) {
	memberID, _, err := actor(c)
	if err != nil {
		response.Unauthorized(c, "invalid member context")
		return
	}
	id, ok := recruitmentIDParam(c)
	if !ok {
		return
	}
	var req AttachMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	rec, msg, err := h.recruitments.AttachMessage(c.Request.Context(), id, memberID, req.MessageRef)
	if err != nil {
		respondError(c, err, msg)
		return
	}
	response.SuccessMessage(c, msg, rec)
}

func (h *RecruitmentHandler) Join(c *gin.Context) {
	memberID, guildID, err := actor(c)
	if err != nil {
		response.Unauthorized(c, "invalid member context")
		return
	}
	id, ok := recruitmentIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if !h.inGuild(c, id, guildID) {
		return
	}
	msg, err := h.recruitments.Join(ctx, id, memberID)
	if err != nil {
		respondError(c, err, msg)
		return
	}
	rec, err := h.recruitments.GetByID(ctx, id)
	if err != nil {
		respondError(c, err, "")
		return
	}
	h.respondView(c, msg, rec)
}

func (h *RecruitmentHandler) Leave(c *gin.Context) {
	memberID, guildID, err := actor(c)
	if err != nil {
		response.Unauthorized(c, "invalid member context")
		return
	}
	id, ok := recruitmentIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if !h.inGuild(c, id, guildID) {
		return
	}
	_, msg, err := h.recruitments.Leave(ctx, id, memberID)
	if err != nil {
		respondError(c, err, msg)
		return
	}
	rec, err := h.recruitments.GetByID(ctx, id)
	if err != nil {
		respondError(c, err, "")
		return
	}
	h.respondView(c, msg, rec)
}

// inGuild reports whether recruitment id belongs to guildID. Recruitments of
// other guilds answer as not found.
func (h *RecruitmentHandler) inGuild(c *gin.Context, id uuid.UUID, guildID string) bool {
	rec, err := h.recruitments.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "")
		return false
	}
	if rec.GuildID != guildID {
		respondError(c, service.ErrRecruitmentNotFound, "")
		return false
	}
	return true
}
