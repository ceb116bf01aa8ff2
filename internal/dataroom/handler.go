package dataroom

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aip-platform/deal-portal-backend/internal/apperr"
	"aip-platform/deal-portal-backend/internal/auth"
)

// Handler handles HTTP requests for data rooms
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/data-rooms-v2")
	{
		group.POST("", h.createRoom)
		group.GET("", h.listRooms)
		group.GET("/:id", h.getRoom)
		group.POST("/:id/folders", h.createFolder)
		group.GET("/:id/folders", h.listFolders)
		group.POST("/:id/documents", h.uploadDocument)
		group.GET("/:id/documents", h.listDocuments)
		group.DELETE("/:id/documents/:docId", h.deleteDocument)
		group.POST("/:id/access", h.grantAccess)
		group.GET("/:id/access", h.listAccess)
		group.POST("/:id/access/:accessId/sign-nda", h.signNDA)
		group.POST("/:id/access/:accessId/revoke", h.revokeAccess)
		group.POST("/:id/documents/:docId/view", h.recordView)
		group.POST("/:id/documents/:docId/download", h.recordDownload)
		group.GET("/:id/documents/:docId/content", h.fetchDocument)
		group.POST("/:id/documents/:docId/analyze", h.analyzeDocument)
		group.GET("/:id/activity", h.listActivity)
		group.GET("/:id/activity/export", h.exportActivity)
		group.GET("/:id/history", h.history)
	}
}

type createRoomRequest struct {
	ProjectID uint `json:"project_id" binding:"required"`
	CreateRoomInput
}

func (h *Handler) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.service.CreateRoom(c.Request.Context(), auth.CurrentActor(c), req.ProjectID, req.CreateRoomInput)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handler) listRooms(c *gin.Context) {
	var projectID *uint
	if raw := c.Query("project_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
			return
		}
		uid := uint(id)
		projectID = &uid
	}

	rooms, err := h.service.ListRooms(c.Request.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to list data rooms", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *Handler) getRoom(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	room, err := h.service.GetRoom(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) createFolder(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req CreateFolderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	folder, err := h.service.CreateFolder(c.Request.Context(), auth.CurrentActor(c), id, req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, folder)
}

func (h *Handler) listFolders(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	folders, err := h.service.Folders(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, folders)
}

func (h *Handler) uploadDocument(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req UploadDocumentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.service.UploadDocument(c.Request.Context(), auth.CurrentActor(c), id, req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) listDocuments(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	latestOnly := c.DefaultQuery("latest_only", "true") == "true"

	docs, err := h.service.Documents(c.Request.Context(), id, latestOnly)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *Handler) grantAccess(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req GrantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	access, err := h.service.GrantAccess(c.Request.Context(), auth.CurrentActor(c), id, req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, access)
}

func (h *Handler) listAccess(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	grants, err := h.service.ListAccess(c.Request.Context(), auth.CurrentActor(c), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, grants)
}

func (h *Handler) signNDA(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	accessID, ok := h.pathID(c, "accessId")
	if !ok {
		return
	}
	var req SignNDAInput
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ClientIP = c.ClientIP()

	access, err := h.service.SignNDA(c.Request.Context(), auth.CurrentActor(c), id, accessID, req)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, access)
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) revokeAccess(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	accessID, ok := h.pathID(c, "accessId")
	if !ok {
		return
	}
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.RevokeAccess(c.Request.Context(), auth.CurrentActor(c), id, accessID, req.Reason); err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "access revoked"})
}

func (h *Handler) recordView(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	docID, ok := h.pathID(c, "docId")
	if !ok {
		return
	}

	err := h.service.RecordView(c.Request.Context(), auth.CurrentActor(c), id, docID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "view recorded"})
}

func (h *Handler) recordDownload(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	docID, ok := h.pathID(c, "docId")
	if !ok {
		return
	}

	link, err := h.service.RecordDownload(c.Request.Context(), auth.CurrentActor(c), id, docID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"download_url": link})
}

func (h *Handler) fetchDocument(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	docID, ok := h.pathID(c, "docId")
	if !ok {
		return
	}

	doc, data, err := h.service.FetchDocument(c.Request.Context(), auth.CurrentActor(c), id, docID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Title))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func (h *Handler) deleteDocument(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	docID, ok := h.pathID(c, "docId")
	if !ok {
		return
	}

	if err := h.service.DeleteDocument(c.Request.Context(), auth.CurrentActor(c), id, docID); err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "document deleted"})
}

type analyzeDocumentRequest struct {
	AnalysisType string `json:"analysis_type"`
}

func (h *Handler) analyzeDocument(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	docID, ok := h.pathID(c, "docId")
	if !ok {
		return
	}
	var req analyzeDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.AnalyzeDocument(c.Request.Context(), auth.CurrentActor(c), id, docID, req.AnalysisType)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) listActivity(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	filter := ActivityFilter{}
	if raw := c.Query("user_id"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			uid := uint(v)
			filter.UserID = &uid
		}
	}
	if raw := c.Query("activity_type"); raw != "" {
		filter.ActivityType = &raw
	}

	activities, err := h.service.Activity(c.Request.Context(), auth.CurrentActor(c), id, filter)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, activities)
}

func (h *Handler) exportActivity(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	data, err := h.service.ExportActivityRegister(c.Request.Context(), auth.CurrentActor(c), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=data-room-%d-activity.xlsx", id))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *Handler) history(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	entries, err := h.service.History(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}
