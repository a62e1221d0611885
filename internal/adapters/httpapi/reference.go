package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"growcore/internal/core"
)

func (h *Handler) createFacility(c *gin.Context) {
	var in core.CreateFacilityInput
	if !bind(c, &in) {
		return
	}
	in.Actor = actor(c)
	facility, err := h.svc.CreateFacility(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, facility)
}

func (h *Handler) listFacilities(c *gin.Context) {
	facilities, err := h.svc.ListFacilities(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": facilities})
}

func (h *Handler) createStrain(c *gin.Context) {
	var in core.CreateStrainInput
	if !bind(c, &in) {
		return
	}
	in.Actor = actor(c)
	strain, err := h.svc.CreateStrain(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, strain)
}

func (h *Handler) listStrains(c *gin.Context) {
	strains, err := h.svc.ListStrains(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": strains})
}

func (h *Handler) getStrain(c *gin.Context) {
	strain, err := h.svc.GetStrain(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, strain)
}

func (h *Handler) setStrainActive(c *gin.Context) {
	var in core.SetStrainActiveInput
	if !bind(c, &in) {
		return
	}
	in.StrainID, in.Actor = c.Param("id"), actor(c)
	strain, err := h.svc.SetStrainActive(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, strain)
}

func (h *Handler) createRoom(c *gin.Context) {
	var in core.CreateRoomInput
	if !bind(c, &in) {
		return
	}
	in.Actor = actor(c)
	room, err := h.svc.CreateRoom(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handler) listRooms(c *gin.Context) {
	rooms, err := h.svc.ListRooms(c.Request.Context(), c.Query("facility_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rooms})
}

func (h *Handler) getRoom(c *gin.Context) {
	room, err := h.svc.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) floorView(c *gin.Context) {
	floor, err := strconv.Atoi(c.Param("floor"))
	if err != nil {
		badRequest(c, "floor must be an integer, got %q", c.Param("floor"))
		return
	}
	view, err := h.svc.FloorView(c.Request.Context(), c.Param("id"), floor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
