package dataroom

import (
	"time"

	"github.com/lib/pq"
)

// Room statuses
const (
	RoomActive    = "active"
	RoomArchived  = "archived"
	RoomSuspended = "suspended"
)

// Access levels
const (
	AccessFull       = "full"
	AccessLimited    = "limited"
	AccessViewOnly   = "view_only"
	AccessRestricted = "restricted"
)

// NDA statuses
const (
	NDANotRequired = "not_required"
	NDAPending     = "pending"
	NDASent        = "sent"
	NDASigned      = "signed"
	NDAExpired     = "expired"
	NDARevoked     = "revoked"
)

// Activity types
const (
	ActivityView     = "view"
	ActivityDownload = "download"
	ActivityPrint    = "print"
)

// DataRoom is a gated document collection scoped to a project.
type DataRoom struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	ProjectID            uint       `gorm:"not null;index" json:"project_id"`
	Name                 string     `gorm:"not null" json:"name"`
	Description          *string    `json:"description"`
	Status               string     `gorm:"not null;default:active" json:"status"`
	RequireNDA           bool       `json:"require_nda"`
	RequireVerification  bool       `json:"require_verification"`
	MinVerificationLevel *string    `json:"min_verification_level"`
	EnableWatermark      bool       `json:"enable_watermark"`
	AllowDownload        bool       `gorm:"default:true" json:"allow_download"`
	AllowPrint           bool       `json:"allow_print"`
	ExpiresAt            *time.Time `json:"expires_at"`
	CreatedByID          uint       `gorm:"not null" json:"created_by_id"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (DataRoom) TableName() string { return "data_rooms" }

// Folder is a node in the room's folder tree.
type Folder struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DataRoomID uint      `gorm:"not null;index" json:"data_room_id"`
	ParentID   *uint     `json:"parent_id"`
	Name       string    `gorm:"not null" json:"name"`
	SortOrder  int       `json:"sort_order"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Folder) TableName() string { return "data_room_folders" }

// Document is one stored file version. Superseding uploads flip
// is_latest on the prior version instead of replacing the row.
type Document struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	DataRoomID     uint      `gorm:"not null;index" json:"data_room_id"`
	FolderID       *uint     `json:"folder_id"`
	Title          string    `gorm:"not null" json:"title"`
	FileRef        string    `json:"file_ref"`
	ContentHash    string    `json:"content_hash"`
	Category       *string   `json:"category"`
	IsConfidential bool      `json:"is_confidential"`
	Version        int       `gorm:"not null;default:1" json:"version"`
	IsLatest       bool      `gorm:"not null;default:true" json:"is_latest"`
	SupersedesID   *uint     `json:"supersedes_id"`
	ViewCount      int       `json:"view_count"`
	DownloadCount  int       `json:"download_count"`
	AttestationTx  *string   `json:"attestation_tx"`
	UploadedByID   uint      `json:"uploaded_by_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Document) TableName() string { return "data_room_documents" }

// Access is one grant per (room, user). Revocation keeps the row so
// activity stays attributable. LockVersion guards grant/revoke races.
type Access struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	DataRoomID      uint          `gorm:"not null;uniqueIndex:idx_room_user" json:"data_room_id"`
	UserID          uint          `gorm:"not null;uniqueIndex:idx_room_user" json:"user_id"`
	AccessLevel     string        `gorm:"not null;default:view_only" json:"access_level"`
	AllowedFolders  pq.Int64Array `gorm:"type:bigint[]" json:"allowed_folders"`
	NDAStatus       string        `gorm:"not null;default:not_required" json:"nda_status"`
	NDASignedAt     *time.Time    `json:"nda_signed_at"`
	NDAExpiresAt    *time.Time    `json:"nda_expires_at"`
	NDASignatureIP  *string       `json:"nda_signature_ip"`
	GrantedByID     uint          `json:"granted_by_id"`
	GrantedAt       time.Time     `json:"granted_at"`
	AccessExpiresAt *time.Time    `json:"access_expires_at"`
	AccessRevokedAt *time.Time    `json:"access_revoked_at"`
	RevokeReason    *string       `json:"revoke_reason"`
	ViewCount       int           `json:"view_count"`
	DownloadCount   int           `json:"download_count"`
	TotalTimeSecs   int64         `json:"total_time_secs"`
	LockVersion     uint          `gorm:"not null;default:0" json:"-"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (Access) TableName() string { return "data_room_access" }

// Activity is one append-only usage event.
type Activity struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DataRoomID   uint      `gorm:"not null;index" json:"data_room_id"`
	DocumentID   *uint     `json:"document_id"`
	UserID       uint      `gorm:"not null" json:"user_id"`
	ActivityType string    `gorm:"not null" json:"activity_type"`
	ClientIP     *string   `json:"client_ip"`
	UserAgent    *string   `json:"user_agent"`
	DurationSecs *int64    `json:"duration_secs"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Activity) TableName() string { return "data_room_activity" }

func validAccessLevel(level string) bool {
	switch level {
	case AccessFull, AccessLimited, AccessViewOnly, AccessRestricted:
		return true
	}
	return false
}
