package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"growcore/internal/core"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var statusByCode = map[string]int{
	core.CodeInvalidCoordinate: http.StatusUnprocessableEntity,
	core.CodeSlotFull:          http.StatusConflict,
	core.CodePlantNotActive:    http.StatusConflict,
	core.CodeTagUnavailable:    http.StatusConflict,
	core.CodeTagDuplicate:      http.StatusConflict,
	core.CodeBatchNotFound:     http.StatusNotFound,
	core.CodeStrainInactive:    http.StatusUnprocessableEntity,
	core.CodeInvalidPhase:      http.StatusUnprocessableEntity,
	core.CodeNotFound:          http.StatusNotFound,
	core.CodeInvalidInput:      http.StatusBadRequest,
	core.CodeRuleViolation:     http.StatusConflict,
}

// StatusFor maps an error code to its HTTP status; unknown codes are 500.
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := core.ErrorCode(err)
	status := StatusFor(code)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "route", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(status, ErrorResponse{Error: "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, format string, args ...any) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error: fmt.Sprintf(format, args...),
		Code:  core.CodeInvalidInput,
	})
}

// bind decodes a JSON body; an empty body is left as the zero value.
func bind(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request body: %v", err)
		return false
	}
	return true
}
