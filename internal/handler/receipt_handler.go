package handler

import (
	"errors"
	"mime/multipart"
	"net/http"

	"backend/internal/client"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReceiptHandler struct {
	receiptService service.ReceiptService
}

func NewReceiptHandler(receiptService service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receiptService: receiptService}
}

func (h *ReceiptHandler) RegisterRoutes(router *gin.RouterGroup) {
	receipts := router.Group("/api/receipts")
	{
		receipts.POST("", h.CreateReceipt)
		receipts.GET("", h.ListReceipts)
		receipts.GET("/:id", h.GetReceipt)
		receipts.PUT("/:id", h.UpdateReceipt)
		receipts.DELETE("/:id", h.DeleteReceipt)
		receipts.POST("/:id/extract", h.ExtractReceipt)
		receipts.POST("/:id/classify", h.ClassifyReceipt)
	}
}

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrReceiptNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrReceiptFinalized):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoReceiptData):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CreateReceipt registers an uploaded receipt document
// @Summary      Create receipt
// @Description  Registers uploaded receipt image(s) as a new document in UPLOADED status
// @Tags         receipts
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateReceiptRequest  true  "Create Receipt Payload"
// @Success      201      {object}  response.Response{data=service.ReceiptResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/receipts [post]
func (h *ReceiptHandler) CreateReceipt(c *gin.Context) {
	var req service.CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	receipt, err := h.receiptService.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, receipt))
}

// ListReceipts returns receipt documents, newest upload first
// @Summary      List receipts
// @Tags         receipts
// @Produce      json
// @Param        status  query     string  false  "Filter by lifecycle status"
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response.Response{data=[]service.ReceiptResponse}
// @Router       /api/receipts [get]
func (h *ReceiptHandler) ListReceipts(c *gin.Context) {
	params := pagination.Parse(c)
	status := c.Query("status")

	receipts, total, err := h.receiptService.List(c.Request.Context(), status, params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"receipts": receipts,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}

// GetReceipt returns one receipt with its extracted body and any
// finalized split snapshot
// @Summary      Get receipt
// @Tags         receipts
// @Produce      json
// @Param        id   path      string  true  "Receipt ID"
// @Success      200  {object}  response.Response{data=service.ReceiptDetail}
// @Failure      404  {object}  response.Response
// @Router       /api/receipts/{id} [get]
func (h *ReceiptHandler) GetReceipt(c *gin.Context) {
	detail, err := h.receiptService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := statusFor(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// UpdateReceipt applies reviewer edits to a receipt body
// @Summary      Update receipt
// @Description  Applies reviewer edits. Finalized receipts are immutable and return 409.
// @Tags         receipts
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Receipt ID"
// @Param        payload  body      service.UpdateReceiptRequest  true  "Reviewed receipt body"
// @Success      200      {object}  response.Response{data=service.ReceiptDetail}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/receipts/{id} [put]
func (h *ReceiptHandler) UpdateReceipt(c *gin.Context) {
	var req service.UpdateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	detail, err := h.receiptService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		status := statusFor(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// DeleteReceipt removes a receipt document
func (h *ReceiptHandler) DeleteReceipt(c *gin.Context) {
	if err := h.receiptService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		status := statusFor(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

// ExtractReceipt forwards an uploaded image to the extraction service
// @Summary      Extract receipt
// @Description  Runs external extraction on the uploaded image. With preserve=true a failed run keeps the previous extraction instead of clearing it.
// @Tags         receipts
// @Accept       multipart/form-data
// @Produce      json
// @Param        id             path      string  true   "Receipt ID"
// @Param        items_images   formData  file    true   "Receipt item image(s)"
// @Param        charges_image  formData  file    false  "Totals/charges photo"
// @Param        preserve       query     bool    false  "Keep previous extraction on failure"
// @Success      200            {object}  response.Response{data=service.ReceiptDetail}
// @Failure      409            {object}  response.Response
// @Failure      502            {object}  response.Response
// @Router       /api/receipts/{id}/extract [post]
func (h *ReceiptHandler) ExtractReceipt(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid multipart form: "+err.Error()))
		return
	}

	var headers []*multipart.FileHeader
	fields := make([]string, 0, 4)
	for _, fh := range form.File["items_images"] {
		headers = append(headers, fh)
		fields = append(fields, "items_images")
	}
	for _, fh := range form.File["charges_image"] {
		headers = append(headers, fh)
		fields = append(fields, "charges_image")
	}
	// Single-image clients post a plain "file" field
	for _, fh := range form.File["file"] {
		headers = append(headers, fh)
		fields = append(fields, "items_images")
	}
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Missing receipt image"))
		return
	}

	uploads := make([]client.Upload, 0, len(headers))
	for i, fh := range headers {
		f, openErr := fh.Open()
		if openErr != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Cannot read upload: "+openErr.Error()))
			return
		}
		defer f.Close()
		uploads = append(uploads, client.Upload{Field: fields[i], Filename: fh.Filename, Reader: f})
	}

	preserve := c.Query("preserve") == "true"
	detail, err := h.receiptService.Extract(c.Request.Context(), c.Param("id"), uploads, preserve)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			// Extraction service failures are upstream errors
			status = http.StatusBadGateway
		}
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// ClassifyReceipt fills in unknown taxability flags via the classifier
func (h *ReceiptHandler) ClassifyReceipt(c *gin.Context) {
	detail, err := h.receiptService.Classify(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}
