package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"growcore/internal/core"
)

func (h *Handler) placePlant(c *gin.Context) {
	var in core.PlacePlantInput
	if !bind(c, &in) {
		return
	}
	in.Actor = actor(c)
	res, err := h.svc.PlacePlant(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) listPlants(c *gin.Context) {
	var filter core.PlantFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, "invalid query: %v", err)
		return
	}
	plants, err := h.svc.ListPlants(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": plants})
}

func (h *Handler) getPlant(c *gin.Context) {
	plant, err := h.svc.GetPlant(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, plant)
}

func (h *Handler) plantEvents(c *gin.Context) {
	events, err := h.svc.PlantEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

func (h *Handler) movePlant(c *gin.Context) {
	var in core.MovePlantInput
	if !bind(c, &in) {
		return
	}
	in.PlantID, in.Actor = c.Param("id"), actor(c)
	h.respond(c, func() (core.CommandResult, error) { return h.svc.MovePlant(c.Request.Context(), in) })
}

func (h *Handler) tagPlant(c *gin.Context) {
	var in core.TagPlantInput
	if !bind(c, &in) {
		return
	}
	in.PlantID, in.Actor = c.Param("id"), actor(c)
	h.respond(c, func() (core.CommandResult, error) { return h.svc.TagPlant(c.Request.Context(), in) })
}

func (h *Handler) untagPlant(c *gin.Context) {
	in := core.PlantActionInput{PlantID: c.Param("id"), Actor: actor(c)}
	h.respond(c, func() (core.CommandResult, error) { return h.svc.UntagPlant(c.Request.Context(), in) })
}

func (h *Handler) setPhase(c *gin.Context) {
	var in core.SetPhaseInput
	if !bind(c, &in) {
		return
	}
	in.PlantID, in.Actor = c.Param("id"), actor(c)
	h.respond(c, func() (core.CommandResult, error) { return h.svc.SetPlantPhase(c.Request.Context(), in) })
}

func (h *Handler) advancePhase(c *gin.Context) {
	in := core.PlantActionInput{PlantID: c.Param("id"), Actor: actor(c)}
	h.respond(c, func() (core.CommandResult, error) { return h.svc.AdvancePlantPhase(c.Request.Context(), in) })
}

func (h *Handler) harvestPlant(c *gin.Context) {
	var in core.HarvestInput
	if !bind(c, &in) {
		return
	}
	in.PlantIDs, in.Actor = []string{c.Param("id")}, actor(c)
	h.respond(c, func() (core.CommandResult, error) { return h.svc.HarvestPlants(c.Request.Context(), in) })
}

func (h *Handler) destroyPlant(c *gin.Context) {
	var in core.DestroyInput
	if !bind(c, &in) {
		return
	}
	in.PlantID, in.Actor = c.Param("id"), actor(c)
	h.respond(c, func() (core.CommandResult, error) { return h.svc.DestroyPlant(c.Request.Context(), in) })
}

func (h *Handler) notePlant(c *gin.Context) {
	var in core.NotePlantInput
	if !bind(c, &in) {
		return
	}
	in.PlantID, in.Actor = c.Param("id"), actor(c)
	h.respond(c, func() (core.CommandResult, error) { return h.svc.NotePlant(c.Request.Context(), in) })
}

func (h *Handler) createPlantBatch(c *gin.Context) {
	var in core.CreatePlantBatchInput
	if !bind(c, &in) {
		return
	}
	in.Actor = actor(c)
	res, err := h.svc.CreatePlantBatch(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) listPlantBatches(c *gin.Context) {
	batches, err := h.svc.ListPlantBatches(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": batches})
}

func (h *Handler) getPlantBatch(c *gin.Context) {
	batch, err := h.svc.GetPlantBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (h *Handler) harvestPlants(c *gin.Context) {
	var in core.HarvestInput
	if !bind(c, &in) {
		return
	}
	in.Actor = actor(c)
	res, err := h.svc.HarvestPlants(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) listHarvests(c *gin.Context) {
	harvests, err := h.svc.ListHarvests(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": harvests})
}

func (h *Handler) getHarvest(c *gin.Context) {
	harvest, err := h.svc.GetHarvest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, harvest)
}

func (h *Handler) setHarvestStatus(c *gin.Context) {
	var in core.HarvestStatusInput
	if !bind(c, &in) {
		return
	}
	in.HarvestID, in.Actor = c.Param("id"), actor(c)
	h.respond(c, func() (core.CommandResult, error) { return h.svc.SetHarvestStatus(c.Request.Context(), in) })
}

// respond writes a command result with 200 or the mapped error.
func (h *Handler) respond(c *gin.Context, run func() (core.CommandResult, error)) {
	res, err := run()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
