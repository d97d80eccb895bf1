package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type SplitHandler struct {
	splitService service.SplitService
}

func NewSplitHandler(splitService service.SplitService) *SplitHandler {
	return &SplitHandler{splitService: splitService}
}

func (h *SplitHandler) RegisterRoutes(router *gin.RouterGroup) {
	receipts := router.Group("/api/receipts")
	{
		receipts.POST("/:id/split", h.CalculateSplit)
		receipts.POST("/:id/finalize", h.FinalizeSplit)
		receipts.POST("/:id/csv", h.ExportCSV)
		receipts.POST("/:id/csv/import", h.ImportCSV)
	}
}

// CalculateSplit computes shares for the current people and selections
// @Summary      Calculate split
// @Description  Builds split rules from the current assignments and computes per-person shares plus reconciliation. Nothing is persisted; a failing validation is reported in the body.
// @Tags         split
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Receipt ID"
// @Param        payload  body      service.SplitCalculateRequest  true  "People and item selections"
// @Success      200      {object}  response.Response{data=model.SplitResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/receipts/{id}/split [post]
func (h *SplitHandler) CalculateSplit(c *gin.Context) {
	var req service.SplitCalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.splitService.Calculate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		status := statusFor(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// FinalizeSplit persists the split snapshot and advances the lifecycle
// @Summary      Finalize split
// @Description  Same calculation as /split, but both reconciliation checks must pass; the snapshot and FINALIZED status are then written together. A rejected finalize changes nothing and returns 409.
// @Tags         split
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Receipt ID"
// @Param        payload  body      service.SplitCalculateRequest  true  "People and item selections"
// @Success      200      {object}  response.Response{data=model.SplitResult}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/receipts/{id}/finalize [post]
func (h *SplitHandler) FinalizeSplit(c *gin.Context) {
	var req service.SplitCalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.splitService.Finalize(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		var rejected *service.FinalizeRejectedError
		if errors.As(err, &rejected) {
			c.JSON(http.StatusConflict, response.Error(http.StatusConflict, rejected.Error()))
			return
		}
		status := statusFor(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ExportCSV streams the split table as a CSV download
func (h *SplitHandler) ExportCSV(c *gin.Context) {
	var req service.SplitCalculateRequest
	// Body is optional; no people (empty body or {}) exports the
	// finalized snapshot. Decoded without binding validation so the
	// people requirement of /split does not apply here.
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	data, err := h.splitService.ExportCSV(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		status := statusFor(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="receipt-split.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// ImportCSV replaces the receipt's line items from an exported CSV
func (h *SplitHandler) ImportCSV(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Missing csv file: "+err.Error()))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Cannot read upload: "+err.Error()))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Cannot read upload: "+err.Error()))
		return
	}

	result, err := h.splitService.ImportCSV(c.Request.Context(), c.Param("id"), data)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
