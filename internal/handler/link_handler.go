package handler

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"joinus/partyboard/internal/service"
	"joinus/partyboard/pkg/response"
)

var callbackPage = template.Must(template.New("callback").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Riot account link</title></head>
<body>
<h1>{{if .OK}}Linked{{else}}Link failed{{end}}</h1>
<p>{{.Message}}</p>
<p>You can close this window and return to Discord.</p>
</body>
</html>
`))

type LinkHandler struct {
	links service.LinkService
}

func NewLinkHandler(links service.LinkService) *LinkHandler {
	return &LinkHandler{links: links}
}

// Begin returns the authorize URL the adapter sends to the member.
func (h *LinkHandler) Begin(c *gin.Context) {
	memberID, _, err := actor(c)
	if err != nil {
		response.Unauthorized(c, "invalid member context")
		return
	}
	authURL, err := h.links.BeginLink(c.Request.Context(), memberID)
	if err != nil {
		respondError(c, err, "")
		return
	}
	response.Success(c, gin.H{"authorize_url": authURL})
}

// Callback completes the flow the browser was redirected into.
func (h *LinkHandler) Callback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		renderCallback(c, http.StatusBadRequest, false, "Authorization was denied.")
		return
	}
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		renderCallback(c, http.StatusBadRequest, false, "Missing code or state.")
		return
	}

	_, msg, err := h.links.CompleteLink(c.Request.Context(), code, state)
	if err != nil {
		status := http.StatusInternalServerError
		switch service.KindOf(err) {
		case service.KindValidation:
			status = http.StatusBadRequest
		case service.KindExternal:
			status = http.StatusBadGateway
		}
		renderCallback(c, status, false, msg)
		return
	}
	renderCallback(c, http.StatusOK, true, msg)
}

func renderCallback(c *gin.Context, status int, ok bool, message string) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := callbackPage.Execute(c.Writer, gin.H{"OK": ok, "Message": message}); err != nil {
		_ = c.Error(err)
	}
}
