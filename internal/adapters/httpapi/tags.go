package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"growcore/internal/core"
)

func (h *Handler) importTags(c *gin.Context) {
	var in core.ImportTagsInput
	if !bind(c, &in) {
		return
	}
	in.Actor = actor(c)
	res, err := h.svc.ImportMetrcTags(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusCreated
	if res.CreatedCount == 0 {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

func (h *Handler) listTags(c *gin.Context) {
	var filter core.TagFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, "invalid query: %v", err)
		return
	}
	tags, err := h.svc.ListMetrcTags(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tags})
}

func (h *Handler) getTag(c *gin.Context) {
	tag, err := h.svc.GetMetrcTag(c.Request.Context(), c.Param("tag"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

func (h *Handler) retireTag(c *gin.Context) {
	in := core.RetireTagInput{Tag: c.Param("tag"), Actor: actor(c)}
	h.respond(c, func() (core.CommandResult, error) { return h.svc.RetireMetrcTag(c.Request.Context(), in) })
}

// EventPageResponse is the audit listing body: one page plus the match count.
type EventPageResponse struct {
	Data []core.PlantEvent `json:"data"`
	Meta PageMeta          `json:"meta"`
}

// PageMeta carries the number of matches across all pages.
type PageMeta struct {
	Total int `json:"total"`
}

func (h *Handler) listEvents(c *gin.Context) {
	var filter core.EventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, "invalid query: %v", err)
		return
	}
	page, err := h.svc.ListEvents(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, EventPageResponse{Data: page.Data, Meta: PageMeta{Total: page.Total}})
}

func (h *Handler) addNote(c *gin.Context) {
	var in core.AddNoteInput
	if !bind(c, &in) {
		return
	}
	in.Actor = actor(c)
	res, err := h.svc.AddNote(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
