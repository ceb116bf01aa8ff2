package sira

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aip-platform/deal-portal-backend/internal/apperr"
	"aip-platform/deal-portal-backend/internal/auth"
)

// Handler handles HTTP requests for the SIRA module
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/sira")
	{
		group.POST("/movements", h.createMovement)
		group.GET("/movements", h.listMovements)
		group.GET("/movements/:id", h.getMovement)
		group.POST("/movements/:id/events", h.addEvent)
		group.GET("/movements/:id/events", h.listEvents)

		group.POST("/alerts", h.createAlert)
		group.GET("/alerts", h.listAlerts)
		group.POST("/alerts/:id/acknowledge", h.acknowledgeAlert)
		group.POST("/alerts/:id/assign", h.assignAlert)
		group.POST("/alerts/:id/close", h.closeAlert)

		group.POST("/cases", h.createCase)
		group.GET("/cases", h.listCases)
		group.GET("/cases/:id", h.getCase)
		group.PATCH("/cases/:id", h.updateCase)
		group.POST("/cases/:id/close", h.closeCase)
		group.GET("/cases/:id/export", h.exportCase)

		group.POST("/cases/:id/evidence", h.submitEvidence)
		group.GET("/cases/:id/evidence", h.listEvidence)
		group.POST("/cases/:id/evidence/:evidenceId/review", h.reviewEvidence)
		group.GET("/cases/:id/evidence/:evidenceId/integrity", h.checkIntegrity)

		group.POST("/playbooks", h.createPlaybook)
		group.GET("/playbooks", h.listPlaybooks)
	}
}

func (h *Handler) createMovement(c *gin.Context) {
	var req MovementInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	movement, err := h.service.CreateMovement(c.Request.Context(), auth.CurrentActor(c), req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, movement)
}

func (h *Handler) listMovements(c *gin.Context) {
	movements, err := h.service.ListMovements(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list movements", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, movements)
}

func (h *Handler) getMovement(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	movement, err := h.service.GetMovement(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, movement)
}

func (h *Handler) addEvent(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req EventInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	event, err := h.service.AddShipmentEvent(c.Request.Context(), auth.CurrentActor(c), id, req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *Handler) listEvents(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	events, err := h.service.MovementEvents(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) createAlert(c *gin.Context) {
	var req AlertInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alert, err := h.service.CreateAlert(c.Request.Context(), auth.CurrentActor(c), req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) listAlerts(c *gin.Context) {
	var status *string
	if raw := c.Query("status"); raw != "" {
		status = &raw
	}
	alerts, err := h.service.ListAlerts(c.Request.Context(), status)
	if err != nil {
		h.logger.Error("failed to list alerts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *Handler) acknowledgeAlert(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	alert, err := h.service.AcknowledgeAlert(c.Request.Context(), auth.CurrentActor(c), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alert)
}

type assignAlertRequest struct {
	CaseID uint `json:"case_id" binding:"required"`
}

func (h *Handler) assignAlert(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req assignAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alert, err := h.service.AssignAlertToCase(c.Request.Context(), auth.CurrentActor(c), id, req.CaseID)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) closeAlert(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	alert, err := h.service.CloseAlert(c.Request.Context(), auth.CurrentActor(c), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) createCase(c *gin.Context) {
	var req CaseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	investigation, err := h.service.CreateCase(c.Request.Context(), auth.CurrentActor(c), req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, investigation)
}

func (h *Handler) listCases(c *gin.Context) {
	var status *string
	if raw := c.Query("status"); raw != "" {
		status = &raw
	}
	cases, err := h.service.ListCases(c.Request.Context(), status)
	if err != nil {
		h.logger.Error("failed to list cases", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cases)
}

func (h *Handler) getCase(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	investigation, err := h.service.GetCase(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, investigation)
}

func (h *Handler) updateCase(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req CaseUpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	investigation, err := h.service.UpdateCase(c.Request.Context(), auth.CurrentActor(c), id, req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, investigation)
}

func (h *Handler) closeCase(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req CloseCaseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	investigation, err := h.service.CloseCase(c.Request.Context(), auth.CurrentActor(c), id, req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, investigation)
}

func (h *Handler) exportCase(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	pack, err := h.service.ExportCase(c.Request.Context(), auth.CurrentActor(c), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, pack)
}

func (h *Handler) submitEvidence(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req EvidenceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	evidence, err := h.service.SubmitEvidence(c.Request.Context(), auth.CurrentActor(c), id, req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, evidence)
}

func (h *Handler) listEvidence(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	items, err := h.service.ListEvidence(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, items)
}

type reviewEvidenceRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

func (h *Handler) reviewEvidence(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	evidenceID, ok := h.pathID(c, "evidenceId")
	if !ok {
		return
	}
	var req reviewEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	evidence, err := h.service.ReviewEvidence(c.Request.Context(), auth.CurrentActor(c), id, evidenceID, *req.Verified)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, evidence)
}

func (h *Handler) checkIntegrity(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	evidenceID, ok := h.pathID(c, "evidenceId")
	if !ok {
		return
	}
	intact, err := h.service.CheckEvidenceIntegrity(c.Request.Context(), id, evidenceID)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"intact": intact})
}

func (h *Handler) createPlaybook(c *gin.Context) {
	var req PlaybookInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	playbook, err := h.service.CreatePlaybook(c.Request.Context(), auth.CurrentActor(c), req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, playbook)
}

func (h *Handler) listPlaybooks(c *gin.Context) {
	var severity *string
	if raw := c.Query("severity"); raw != "" {
		severity = &raw
	}
	playbooks, err := h.service.ListPlaybooks(c.Request.Context(), severity)
	if err != nil {
		h.logger.Error("failed to list playbooks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, playbooks)
}

func (h *Handler) pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}
