package dataroom

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"aip-platform/deal-portal-backend/internal/analysis"
	"aip-platform/deal-portal-backend/internal/apperr"
	"aip-platform/deal-portal-backend/internal/attestation"
	"aip-platform/deal-portal-backend/internal/audit"
	"aip-platform/deal-portal-backend/internal/auth"
	"aip-platform/deal-portal-backend/internal/config"
)

// History action tags
const (
	ActionRoomCreated   = "room_created"
	ActionAccessGranted = "access_granted"
	ActionNDASigned     = "nda_signed"
	ActionAccessRevoked = "access_revoked"
)

// BlobStore persists document file bytes and produces short-lived
// download links for them. Nil means file storage is not configured
// and documents carry external references only.
type BlobStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Service is the data-room access controller. Grants, NDA signatures
// and revocations run under the repository's optimistic version check;
// the access gate itself is the pure IsAccessValid function.
type Service struct {
	repo     Repository
	policy   *auth.Policy
	attester *attestation.Service
	analyzer *analysis.Service
	store    BlobStore
	cfg      config.DataRoomConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, policy *auth.Policy, attester *attestation.Service, analyzer *analysis.Service, store BlobStore, cfg config.DataRoomConfig, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		policy:   policy,
		attester: attester,
		analyzer: analyzer,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// IsAccessValid evaluates the access invariant: not revoked, not past
// expiry, and NDA signed and unexpired whenever the room requires one.
func IsAccessValid(access *Access, room *DataRoom, now time.Time) bool {
	if access == nil {
		return false
	}
	if access.AccessRevokedAt != nil {
		return false
	}
	if access.AccessExpiresAt != nil && !access.AccessExpiresAt.After(now) {
		return false
	}
	if room.RequireNDA {
		if access.NDAStatus != NDASigned {
			return false
		}
		if access.NDAExpiresAt == nil || !access.NDAExpiresAt.After(now) {
			return false
		}
	}
	return true
}

type CreateRoomInput struct {
	Name                 string  `json:"name" binding:"required"`
	Description          *string `json:"description"`
	RequireNDA           bool    `json:"require_nda"`
	RequireVerification  bool    `json:"require_verification"`
	MinVerificationLevel *string `json:"min_verification_level"`
	EnableWatermark      bool    `json:"enable_watermark"`
	AllowDownload        *bool   `json:"allow_download"`
	AllowPrint           bool    `json:"allow_print"`
	ExpiresInDays        *int    `json:"expires_in_days"`
}

// CreateRoom creates a room and seeds the default folder set.
func (s *Service) CreateRoom(ctx context.Context, actor auth.Actor, projectID uint, in CreateRoomInput) (*DataRoom, error) {
	if err := s.policy.Require(auth.OpDataRoomCreate, actor); err != nil {
		return nil, err
	}
	exists, err := s.repo.ProjectExists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("project not found")
	}

	allowDownload := true
	if in.AllowDownload != nil {
		allowDownload = *in.AllowDownload
	}
	room := &DataRoom{
		ProjectID:            projectID,
		Name:                 in.Name,
		Description:          in.Description,
		Status:               RoomActive,
		RequireNDA:           in.RequireNDA,
		RequireVerification:  in.RequireVerification,
		MinVerificationLevel: in.MinVerificationLevel,
		EnableWatermark:      in.EnableWatermark,
		AllowDownload:        allowDownload,
		AllowPrint:           in.AllowPrint,
		CreatedByID:          actor.ID,
	}
	if in.ExpiresInDays != nil {
		expires := s.now().AddDate(0, 0, *in.ExpiresInDays)
		room.ExpiresAt = &expires
	}

	folders := make([]Folder, len(s.cfg.DefaultFolders))
	for i, name := range s.cfg.DefaultFolders {
		folders[i] = Folder{Name: name, SortOrder: i}
	}

	entry := &audit.Entry{
		Action:       ActionRoomCreated,
		ActionByID:   actor.ID,
		ActionByType: actor.Role,
		NewStatus:    strptr(RoomActive),
		Notes:        fmt.Sprintf("data room %q created", in.Name),
	}
	if err := s.repo.CreateRoom(ctx, room, folders, entry); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Service) GetRoom(ctx context.Context, id uint) (*DataRoom, error) {
	return s.repo.GetRoom(ctx, id)
}

func (s *Service) ListRooms(ctx context.Context, projectID *uint) ([]DataRoom, error) {
	return s.repo.ListRooms(ctx, projectID)
}

type GrantInput struct {
	UserID         uint    `json:"user_id" binding:"required"`
	AccessLevel    string  `json:"access_level" binding:"required"`
	ExpiresInDays  *int    `json:"expires_in_days"`
	AllowedFolders []int64 `json:"allowed_folders"`
}

// GrantAccess grants or refreshes a user's access. Idempotent per
// (room, user): a repeat grant updates the existing row and clears any
// prior revocation instead of duplicating it.
func (s *Service) GrantAccess(ctx context.Context, actor auth.Actor, roomID uint, in GrantInput) (*Access, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatedByID != actor.ID {
		return nil, apperr.Unauthorized("only the room creator may grant access")
	}
	if !validAccessLevel(in.AccessLevel) {
		return nil, apperr.Validation("unrecognized access level %q", in.AccessLevel)
	}
	exists, err := s.repo.UserExists(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("user not found")
	}

	var expiresAt *time.Time
	if in.ExpiresInDays != nil {
		t := s.now().AddDate(0, 0, *in.ExpiresInDays)
		expiresAt = &t
	}

	existing, err := s.repo.FindAccessByUser(ctx, roomID, in.UserID)
	if err != nil {
		return nil, err
	}

	entry := &audit.Entry{
		Action:       ActionAccessGranted,
		ActionByID:   actor.ID,
		ActionByType: actor.Role,
		Notes:        fmt.Sprintf("access level %s granted to user %d", in.AccessLevel, in.UserID),
	}

	if existing == nil {
		ndaStatus := NDANotRequired
		if room.RequireNDA {
			ndaStatus = NDAPending
		}
		access := &Access{
			DataRoomID:      roomID,
			UserID:          in.UserID,
			AccessLevel:     in.AccessLevel,
			AllowedFolders:  in.AllowedFolders,
			NDAStatus:       ndaStatus,
			GrantedByID:     actor.ID,
			GrantedAt:       s.now(),
			AccessExpiresAt: expiresAt,
		}
		if err := s.repo.CreateAccess(ctx, access, entry); err != nil {
			return nil, err
		}
		return access, nil
	}

	existing.AccessLevel = in.AccessLevel
	existing.AllowedFolders = in.AllowedFolders
	existing.AccessExpiresAt = expiresAt
	existing.AccessRevokedAt = nil
	existing.RevokeReason = nil
	existing.GrantedByID = actor.ID
	existing.GrantedAt = s.now()
	if room.RequireNDA {
		if existing.NDAStatus != NDASigned {
			existing.NDAStatus = NDAPending
		}
	} else {
		existing.NDAStatus = NDANotRequired
	}

	if err := s.repo.UpdateAccess(ctx, existing, existing.LockVersion, entry); err != nil {
		return nil, err
	}
	return existing, nil
}

// ListAccess returns the room's grants. The creator sees every grant;
// anyone else sees only their own row, which is how a grantee discovers
// the access id their NDA signature is keyed by.
func (s *Service) ListAccess(ctx context.Context, actor auth.Actor, roomID uint) ([]Access, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatedByID == actor.ID {
		return s.repo.ListAccess(ctx, roomID)
	}
	access, err := s.repo.FindAccessByUser(ctx, roomID, actor.ID)
	if err != nil {
		return nil, err
	}
	if access == nil {
		return []Access{}, nil
	}
	return []Access{*access}, nil
}

type SignNDAInput struct {
	SignaturePayload string `json:"signature_payload"`
	ClientIP         string `json:"-"`
}

// SignNDA records the grantee's NDA signature with a validity window
// from configuration.
func (s *Service) SignNDA(ctx context.Context, actor auth.Actor, roomID, accessID uint, in SignNDAInput) (*Access, error) {
	access, err := s.repo.GetAccess(ctx, roomID, accessID)
	if err != nil {
		return nil, err
	}
	if access.UserID != actor.ID {
		return nil, apperr.NotFound("access grant not found")
	}
	if access.NDAStatus == NDASigned {
		return nil, apperr.Conflict("NDA is already signed")
	}

	now := s.now()
	expires := now.AddDate(0, 0, s.cfg.NDAValidityDays)
	access.NDAStatus = NDASigned
	access.NDASignedAt = &now
	access.NDAExpiresAt = &expires
	if in.ClientIP != "" {
		access.NDASignatureIP = strptr(in.ClientIP)
	}

	entry := &audit.Entry{
		Action:       ActionNDASigned,
		ActionByID:   actor.ID,
		ActionByType: actor.Role,
		Notes:        fmt.Sprintf("NDA signed for grant %d", accessID),
	}
	if err := s.repo.UpdateAccess(ctx, access, access.LockVersion, entry); err != nil {
		return nil, err
	}
	return access, nil
}

// RevokeAccess marks the grant revoked. The row is kept so activity
// stays attributable.
func (s *Service) RevokeAccess(ctx context.Context, actor auth.Actor, roomID, accessID uint, reason string) error {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedByID != actor.ID {
		return apperr.Unauthorized("only the room creator may revoke access")
	}
	access, err := s.repo.GetAccess(ctx, roomID, accessID)
	if err != nil {
		return err
	}

	now := s.now()
	access.AccessRevokedAt = &now
	if reason != "" {
		access.RevokeReason = strptr(reason)
	}

	entry := &audit.Entry{
		Action:       ActionAccessRevoked,
		ActionByID:   actor.ID,
		ActionByType: actor.Role,
		Notes:        fmt.Sprintf("access grant %d revoked: %s", accessID, reason),
	}
	return s.repo.UpdateAccess(ctx, access, access.LockVersion, entry)
}

type CreateFolderInput struct {
	Name     string `json:"name" binding:"required"`
	ParentID *uint  `json:"parent_id"`
}

func (s *Service) CreateFolder(ctx context.Context, actor auth.Actor, roomID uint, in CreateFolderInput) (*Folder, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatedByID != actor.ID {
		return nil, apperr.Unauthorized("only the room creator may manage folders")
	}

	folder := &Folder{DataRoomID: roomID, ParentID: in.ParentID, Name: in.Name}
	if err := s.repo.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *Service) Folders(ctx context.Context, roomID uint) ([]Folder, error) {
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.repo.ListFolders(ctx, roomID)
}

type UploadDocumentInput struct {
	Title          string  `json:"title" binding:"required"`
	FileRef        string  `json:"file_ref" binding:"required"`
	Content        string  `json:"content"`
	ContentType    string  `json:"content_type"`
	Category       *string `json:"category"`
	IsConfidential bool    `json:"is_confidential"`
	FolderID       *uint   `json:"folder_id"`
	SupersedesID   *uint   `json:"supersedes_id"`
}

// UploadDocument registers a file in the room, hashes it and attests
// the hash best-effort. Base64 content is stored under the file_ref key
// when storage is configured; without content the file_ref is an
// external reference and is hashed as-is. A supersedes_id makes this
// the next version of an existing document.
func (s *Service) UploadDocument(ctx context.Context, actor auth.Actor, roomID uint, in UploadDocumentInput) (*Document, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatedByID != actor.ID {
		return nil, apperr.Unauthorized("only the room creator may upload documents")
	}

	raw := []byte(in.FileRef)
	if in.Content != "" {
		decoded, err := base64.StdEncoding.DecodeString(in.Content)
		if err != nil {
			return nil, apperr.Validation("content must be base64 encoded")
		}
		raw = decoded
		if s.store != nil {
			contentType := in.ContentType
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			if _, err := s.store.Upload(ctx, in.FileRef, bytes.NewReader(decoded), contentType); err != nil {
				return nil, err
			}
		}
	}
	hash := attestation.HashContent(raw)
	doc := &Document{
		DataRoomID:     roomID,
		FolderID:       in.FolderID,
		Title:          in.Title,
		FileRef:        in.FileRef,
		ContentHash:    hash,
		Category:       in.Category,
		IsConfidential: in.IsConfidential,
		Version:        1,
		IsLatest:       true,
		UploadedByID:   actor.ID,
	}

	if in.SupersedesID != nil {
		prior, err := s.repo.GetDocument(ctx, roomID, *in.SupersedesID)
		if err != nil {
			return nil, err
		}
		doc.Version = prior.Version + 1
		doc.SupersedesID = &prior.ID
		if err := s.repo.SupersedeDocument(ctx, doc, prior.ID); err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.CreateDocument(ctx, doc); err != nil {
			return nil, err
		}
	}

	metadata := attestation.DocumentMetadata(doc.ID, doc.Title, hash, actor.ID, "", map[string]interface{}{
		"data_room_id": roomID,
	})
	result := s.attester.Register(ctx, hash, metadata)
	if result.Succeeded() {
		doc.AttestationTx = strptr(result.Certificate.TransactionHash)
		if err := s.repo.UpdateDocument(ctx, doc); err != nil {
			s.logger.Warn("failed to record document attestation", zap.Error(err))
		}
	} else {
		s.logger.Warn("document attestation failed",
			zap.Uint("document_id", doc.ID),
			zap.String("reason", result.Reason))
	}
	return doc, nil
}

func (s *Service) Documents(ctx context.Context, roomID uint, latestOnly bool) ([]Document, error) {
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.repo.ListDocuments(ctx, roomID, latestOnly)
}

// RecordView logs a view after checking the caller's gate.
func (s *Service) RecordView(ctx context.Context, actor auth.Actor, roomID, documentID uint, clientIP, userAgent string) error {
	return s.recordUsage(ctx, actor, roomID, documentID, ActivityView, clientIP, userAgent)
}

// RecordDownload logs a download after checking the gate and the room's
// download policy. Returns a presigned link when storage is configured.
func (s *Service) RecordDownload(ctx context.Context, actor auth.Actor, roomID, documentID uint, clientIP, userAgent string) (string, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return "", err
	}
	if !room.AllowDownload {
		return "", apperr.Precondition("downloads are disabled for this room")
	}
	doc, err := s.repo.GetDocument(ctx, roomID, documentID)
	if err != nil {
		return "", err
	}
	if err := s.recordUsage(ctx, actor, roomID, documentID, ActivityDownload, clientIP, userAgent); err != nil {
		return "", err
	}

	if s.store != nil {
		link, err := s.store.PresignGet(ctx, doc.FileRef)
		if err != nil {
			s.logger.Warn("failed to presign download link", zap.Error(err))
			return doc.FileRef, nil
		}
		return link, nil
	}
	return doc.FileRef, nil
}

// FetchDocument returns the stored file bytes, counting the fetch as a
// download against the room's policy and the caller's gate.
func (s *Service) FetchDocument(ctx context.Context, actor auth.Actor, roomID, documentID uint, clientIP, userAgent string) (*Document, []byte, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if !room.AllowDownload {
		return nil, nil, apperr.Precondition("downloads are disabled for this room")
	}
	if s.store == nil {
		return nil, nil, apperr.Precondition("file storage is not configured")
	}
	doc, err := s.repo.GetDocument(ctx, roomID, documentID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.recordUsage(ctx, actor, roomID, documentID, ActivityDownload, clientIP, userAgent); err != nil {
		return nil, nil, err
	}

	data, err := s.store.Download(ctx, doc.FileRef)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// DeleteDocument removes a document row and, when storage is
// configured, its stored file. Creator only.
func (s *Service) DeleteDocument(ctx context.Context, actor auth.Actor, roomID, documentID uint) error {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedByID != actor.ID {
		return apperr.Unauthorized("only the room creator may delete documents")
	}
	doc, err := s.repo.GetDocument(ctx, roomID, documentID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteDocument(ctx, roomID, documentID); err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, doc.FileRef); err != nil {
			s.logger.Warn("failed to delete stored file",
				zap.String("key", doc.FileRef), zap.Error(err))
		}
	}
	return nil
}

// AnalyzeDocument runs an advisory analysis over a room document. Gated
// the same way as viewing it.
func (s *Service) AnalyzeDocument(ctx context.Context, actor auth.Actor, roomID, documentID uint, kindTag string) (*analysis.Result, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	doc, err := s.repo.GetDocument(ctx, roomID, documentID)
	if err != nil {
		return nil, err
	}
	if room.CreatedByID != actor.ID {
		access, err := s.repo.FindAccessByUser(ctx, roomID, actor.ID)
		if err != nil {
			return nil, err
		}
		if !IsAccessValid(access, room, s.now()) {
			return nil, apperr.Unauthorized("access to this data room is not valid")
		}
	}

	text := fmt.Sprintf("%s %s", doc.Title, doc.FileRef)
	return s.analyzer.Analyze(ctx, text, analysis.KindFromString(kindTag))
}

func (s *Service) recordUsage(ctx context.Context, actor auth.Actor, roomID, documentID uint, activityType, clientIP, userAgent string) error {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	doc, err := s.repo.GetDocument(ctx, roomID, documentID)
	if err != nil {
		return err
	}

	if room.CreatedByID != actor.ID {
		access, err := s.repo.FindAccessByUser(ctx, roomID, actor.ID)
		if err != nil {
			return err
		}
		if !IsAccessValid(access, room, s.now()) {
			return apperr.Unauthorized("access to this data room is not valid")
		}
	}

	activity := &Activity{
		DataRoomID:   roomID,
		DocumentID:   &doc.ID,
		UserID:       actor.ID,
		ActivityType: activityType,
	}
	if clientIP != "" {
		activity.ClientIP = strptr(clientIP)
	}
	if userAgent != "" {
		activity.UserAgent = strptr(userAgent)
	}
	return s.repo.RecordActivity(ctx, activity)
}

func (s *Service) Activity(ctx context.Context, actor auth.Actor, roomID uint, filter ActivityFilter) ([]Activity, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatedByID != actor.ID {
		return nil, apperr.Unauthorized("only the room creator may view the activity log")
	}
	return s.repo.ListActivity(ctx, roomID, filter)
}

func (s *Service) History(ctx context.Context, roomID uint) ([]audit.Entry, error) {
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, roomID)
}

// SweepExpired tags overdue NDAs as expired. Reporting only: the
// synchronous gate check stays authoritative.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired overdue NDA grants", zap.Int64("count", n))
	}
	return n, nil
}

func strptr(s string) *string { return &s }
