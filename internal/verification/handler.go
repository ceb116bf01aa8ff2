package verification

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aip-platform/deal-portal-backend/internal/apperr"
	"aip-platform/deal-portal-backend/internal/attestation"
	"aip-platform/deal-portal-backend/internal/auth"
)

// Handler handles HTTP requests for the verification workflow
type Handler struct {
	engine *Engine
	repo   Repository
	logger *zap.Logger
}

func NewHandler(engine *Engine, repo Repository, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, repo: repo, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/verifications")
	{
		group.POST("", h.openRequest)
		group.GET("", h.list)
		group.GET("/:id", h.get)
		group.POST("/:id/assign-fp", h.assignFP)
		group.POST("/:id/assign-lp", h.assignLP)
		group.POST("/:id/fp-review", h.fpReview)
		group.POST("/:id/lp-review", h.lpReview)
		group.POST("/:id/documents", h.attachDocument)
		group.GET("/:id/documents", h.listDocuments)
		group.GET("/:id/history", h.history)
		group.GET("/:id/certificate", h.certificate)
		group.POST("/:id/documents/:docId/analyze", h.analyzeDocument)
	}
}

type openRequestInput struct {
	ProjectID      uint   `json:"project_id" binding:"required"`
	RequestedLevel string `json:"requested_level" binding:"required"`
}

func (h *Handler) openRequest(c *gin.Context) {
	var req openRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.engine.OpenRequest(c.Request.Context(), auth.CurrentActor(c), req.ProjectID, req.RequestedLevel)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) list(c *gin.Context) {
	filter := ListFilter{}
	if projectID := c.Query("project_id"); projectID != "" {
		id, err := strconv.ParseUint(projectID, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
			return
		}
		uid := uint(id)
		filter.ProjectID = &uid
	}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}

	result, err := h.engine.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list verification requests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	req, err := h.engine.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, req)
}

type assignInput struct {
	UserID uint `json:"user_id" binding:"required"`
}

func (h *Handler) assignFP(c *gin.Context) {
	h.assignReviewer(c, h.engine.AssignFundPreparer)
}

func (h *Handler) assignLP(c *gin.Context) {
	h.assignReviewer(c, h.engine.AssignLeadPartner)
}

func (h *Handler) assignReviewer(c *gin.Context, op func(ctx context.Context, actor auth.Actor, requestID, userID uint) error) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	var req assignInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := op(c.Request.Context(), auth.CurrentActor(c), id, req.UserID); err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reviewer assigned"})
}

type reviewInput struct {
	Outcome string  `json:"outcome" binding:"required"`
	Notes   string  `json:"notes"`
	Scores  *Scores `json:"scores"`
}

func (h *Handler) fpReview(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	var req reviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.engine.SubmitFPReview(c.Request.Context(), auth.CurrentActor(c), id, req.Outcome, req.Notes)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "review recorded"})
}

func (h *Handler) lpReview(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	var req reviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.engine.SubmitLPReview(c.Request.Context(), auth.CurrentActor(c), id, req.Outcome, req.Notes, req.Scores)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

type attachDocumentInput struct {
	Name         string `json:"name" binding:"required"`
	DocumentType string `json:"document_type" binding:"required"`
	FileRef      string `json:"file_ref"`
}

func (h *Handler) attachDocument(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	var req attachDocumentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.engine.AttachDocument(c.Request.Context(), auth.CurrentActor(c), id, req.Name, req.DocumentType, req.FileRef)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) listDocuments(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	docs, err := h.engine.Documents(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *Handler) history(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	entries, err := h.engine.History(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) certificate(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	cert, err := h.repo.GetCertificate(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	pdf, err := attestation.RenderCertificatePDF(cert)
	if err != nil {
		h.logger.Error("failed to render certificate", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render certificate"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+cert.CertificateID+".pdf")
	c.Data(http.StatusOK, "application/pdf", pdf)
}

type analyzeInput struct {
	AnalysisType string `json:"analysis_type"`
}

func (h *Handler) analyzeDocument(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	docID, err := strconv.ParseUint(c.Param("docId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	var req analyzeInput
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.AnalyzeDocument(c.Request.Context(), auth.CurrentActor(c), id, uint(docID), req.AnalysisType)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) requestID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return 0, false
	}
	return uint(id), true
}
