package dataroom

import (
	"context"
	"time"

	"gorm.io/gorm"

	"aip-platform/deal-portal-backend/internal/apperr"
	"aip-platform/deal-portal-backend/internal/audit"
	"aip-platform/deal-portal-backend/internal/auth"
	"aip-platform/deal-portal-backend/internal/projects"
)

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	UserID       *uint
	DocumentID   *uint
	ActivityType *string
}

// Repository persists data rooms. Mutations carrying an audit entry run
// state write and history append in one transaction.
type Repository interface {
	CreateRoom(ctx context.Context, room *DataRoom, folders []Folder, entry *audit.Entry) error
	GetRoom(ctx context.Context, id uint) (*DataRoom, error)
	ListRooms(ctx context.Context, projectID *uint) ([]DataRoom, error)

	CreateFolder(ctx context.Context, folder *Folder) error
	ListFolders(ctx context.Context, roomID uint) ([]Folder, error)

	CreateDocument(ctx context.Context, doc *Document) error
	// SupersedeDocument inserts the new version and clears is_latest on
	// the prior one atomically.
	SupersedeDocument(ctx context.Context, doc *Document, priorID uint) error
	GetDocument(ctx context.Context, roomID, documentID uint) (*Document, error)
	ListDocuments(ctx context.Context, roomID uint, latestOnly bool) ([]Document, error)
	UpdateDocument(ctx context.Context, doc *Document) error
	DeleteDocument(ctx context.Context, roomID, documentID uint) error

	CreateAccess(ctx context.Context, access *Access, entry *audit.Entry) error
	GetAccess(ctx context.Context, roomID, accessID uint) (*Access, error)
	ListAccess(ctx context.Context, roomID uint) ([]Access, error)
	FindAccessByUser(ctx context.Context, roomID, userID uint) (*Access, error)
	// UpdateAccess applies the full row when lock_version still equals
	// expectedVersion. Conflict otherwise.
	UpdateAccess(ctx context.Context, access *Access, expectedVersion uint, entry *audit.Entry) error

	RecordActivity(ctx context.Context, activity *Activity) error
	ListActivity(ctx context.Context, roomID uint, filter ActivityFilter) ([]Activity, error)

	// ExpireOverdue tags signed NDAs and live grants whose expiry passed.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)

	History(ctx context.Context, roomID uint) ([]audit.Entry, error)

	ProjectExists(ctx context.Context, id uint) (bool, error)
	UserExists(ctx context.Context, id uint) (bool, error)
}

type gormRepository struct {
	db       *gorm.DB
	recorder *audit.Recorder
}

func NewRepository(db *gorm.DB, recorder *audit.Recorder) Repository {
	return &gormRepository{db: db, recorder: recorder}
}

func (r *gormRepository) CreateRoom(ctx context.Context, room *DataRoom, folders []Folder, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		for i := range folders {
			folders[i].DataRoomID = room.ID
		}
		if len(folders) > 0 {
			if err := tx.Create(&folders).Error; err != nil {
				return err
			}
		}
		entry.EntityType = audit.EntityDataRoom
		entry.EntityID = room.ID
		return r.recorder.Record(tx, entry)
	})
}

func (r *gormRepository) GetRoom(ctx context.Context, id uint) (*DataRoom, error) {
	var room DataRoom
	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("data room not found")
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *gormRepository) ListRooms(ctx context.Context, projectID *uint) ([]DataRoom, error) {
	query := r.db.WithContext(ctx).Model(&DataRoom{})
	if projectID != nil {
		query = query.Where("project_id = ?", *projectID)
	}
	var rooms []DataRoom
	err := query.Order("created_at DESC").Find(&rooms).Error
	return rooms, err
}

func (r *gormRepository) CreateFolder(ctx context.Context, folder *Folder) error {
	return r.db.WithContext(ctx).Create(folder).Error
}

func (r *gormRepository) ListFolders(ctx context.Context, roomID uint) ([]Folder, error) {
	var folders []Folder
	err := r.db.WithContext(ctx).
		Where("data_room_id = ?", roomID).
		Order("sort_order, id").
		Find(&folders).Error
	return folders, err
}

func (r *gormRepository) CreateDocument(ctx context.Context, doc *Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *gormRepository) SupersedeDocument(ctx context.Context, doc *Document, priorID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Document{}).
			Where("id = ? AND is_latest = true", priorID).
			Update("is_latest", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("document version was superseded concurrently")
		}
		return tx.Create(doc).Error
	})
}

func (r *gormRepository) GetDocument(ctx context.Context, roomID, documentID uint) (*Document, error) {
	var doc Document
	err := r.db.WithContext(ctx).
		First(&doc, "id = ? AND data_room_id = ?", documentID, roomID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("document not found")
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *gormRepository) ListDocuments(ctx context.Context, roomID uint, latestOnly bool) ([]Document, error) {
	query := r.db.WithContext(ctx).Where("data_room_id = ?", roomID)
	if latestOnly {
		query = query.Where("is_latest = true")
	}
	var docs []Document
	err := query.Order("created_at").Find(&docs).Error
	return docs, err
}

func (r *gormRepository) UpdateDocument(ctx context.Context, doc *Document) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

func (r *gormRepository) DeleteDocument(ctx context.Context, roomID, documentID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND data_room_id = ?", documentID, roomID).
		Delete(&Document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("document not found")
	}
	return nil
}

func (r *gormRepository) CreateAccess(ctx context.Context, access *Access, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(access).Error; err != nil {
			return err
		}
		entry.EntityType = audit.EntityDataRoom
		entry.EntityID = access.DataRoomID
		return r.recorder.Record(tx, entry)
	})
}

func (r *gormRepository) GetAccess(ctx context.Context, roomID, accessID uint) (*Access, error) {
	var access Access
	err := r.db.WithContext(ctx).
		First(&access, "id = ? AND data_room_id = ?", accessID, roomID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("access grant not found")
	}
	if err != nil {
		return nil, err
	}
	return &access, nil
}

func (r *gormRepository) ListAccess(ctx context.Context, roomID uint) ([]Access, error) {
	var accesses []Access
	err := r.db.WithContext(ctx).
		Where("data_room_id = ?", roomID).
		Order("granted_at").
		Find(&accesses).Error
	return accesses, err
}

func (r *gormRepository) FindAccessByUser(ctx context.Context, roomID, userID uint) (*Access, error) {
	var access Access
	err := r.db.WithContext(ctx).
		First(&access, "data_room_id = ? AND user_id = ?", roomID, userID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &access, nil
}

func (r *gormRepository) UpdateAccess(ctx context.Context, access *Access, expectedVersion uint, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		access.LockVersion = expectedVersion + 1
		res := tx.Model(&Access{}).
			Where("id = ? AND lock_version = ?", access.ID, expectedVersion).
			Select("*").
			Omit("id", "created_at").
			Updates(access)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("access grant was modified concurrently")
		}
		if entry == nil {
			return nil
		}
		entry.EntityType = audit.EntityDataRoom
		entry.EntityID = access.DataRoomID
		return r.recorder.Record(tx, entry)
	})
}

func (r *gormRepository) RecordActivity(ctx context.Context, activity *Activity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(activity).Error; err != nil {
			return err
		}
		if activity.DocumentID != nil {
			column := "view_count"
			if activity.ActivityType == ActivityDownload {
				column = "download_count"
			}
			if err := tx.Model(&Document{}).
				Where("id = ?", *activity.DocumentID).
				UpdateColumn(column, gorm.Expr(column+" + 1")).Error; err != nil {
				return err
			}
			if err := tx.Model(&Access{}).
				Where("data_room_id = ? AND user_id = ?", activity.DataRoomID, activity.UserID).
				UpdateColumn(column, gorm.Expr(column+" + 1")).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *gormRepository) ListActivity(ctx context.Context, roomID uint, filter ActivityFilter) ([]Activity, error) {
	query := r.db.WithContext(ctx).Where("data_room_id = ?", roomID)
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.DocumentID != nil {
		query = query.Where("document_id = ?", *filter.DocumentID)
	}
	if filter.ActivityType != nil {
		query = query.Where("activity_type = ?", *filter.ActivityType)
	}
	var activities []Activity
	err := query.Order("created_at DESC").Find(&activities).Error
	return activities, err
}

func (r *gormRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Access{}).
		Where("nda_status = ? AND nda_expires_at < ?", NDASigned, now).
		Updates(map[string]interface{}{
			"nda_status":   NDAExpired,
			"lock_version": gorm.Expr("lock_version + 1"),
		})
	return res.RowsAffected, res.Error
}

func (r *gormRepository) History(ctx context.Context, roomID uint) ([]audit.Entry, error) {
	return r.recorder.List(r.db.WithContext(ctx), audit.EntityDataRoom, roomID)
}

func (r *gormRepository) ProjectExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&projects.Project{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) UserExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&auth.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
