package verification

import (
	"context"

	"gorm.io/gorm"

	"aip-platform/deal-portal-backend/internal/apperr"
	"aip-platform/deal-portal-backend/internal/attestation"
	"aip-platform/deal-portal-backend/internal/audit"
	"aip-platform/deal-portal-backend/internal/auth"
	"aip-platform/deal-portal-backend/internal/projects"
)

// ListFilter narrows request listings.
type ListFilter struct {
	ProjectID *uint
	Status    *string
}

// Repository persists verification requests. Mutations that carry an
// audit entry run the state write and the history append in one
// transaction so neither lands without the other.
type Repository interface {
	CreateRequest(ctx context.Context, req *VerificationRequest, entry *audit.Entry) error
	GetRequest(ctx context.Context, id uint) (*VerificationRequest, error)
	ListRequests(ctx context.Context, filter ListFilter) ([]VerificationRequest, error)

	// UpdateRequest applies the full row state when the stored
	// lock_version still equals expectedVersion, bumping the version.
	// Returns Conflict when another writer got there first.
	UpdateRequest(ctx context.Context, req *VerificationRequest, expectedVersion uint, entry *audit.Entry) error

	// UpdateAttestation records the post-commit attestation outcome.
	// Deliberately not version-checked: it never contends with reviews.
	UpdateAttestation(ctx context.Context, requestID uint, fields map[string]interface{}) error
	SaveCertificate(ctx context.Context, cert *attestation.BlockchainCertificate) error
	GetCertificate(ctx context.Context, requestID uint) (*attestation.BlockchainCertificate, error)

	AddDocument(ctx context.Context, doc *VerificationDocument, req *VerificationRequest, expectedVersion uint) error
	GetDocument(ctx context.Context, requestID, documentID uint) (*VerificationDocument, error)
	ListDocuments(ctx context.Context, requestID uint) ([]VerificationDocument, error)
	UpdateDocument(ctx context.Context, doc *VerificationDocument) error

	History(ctx context.Context, requestID uint) ([]audit.Entry, error)

	ProjectExists(ctx context.Context, id uint) (bool, error)
	UserExists(ctx context.Context, id uint) (bool, error)
}

type gormRepository struct {
	db       *gorm.DB
	recorder *audit.Recorder
}

// NewRepository returns the Postgres-backed repository.
func NewRepository(db *gorm.DB, recorder *audit.Recorder) Repository {
	return &gormRepository{db: db, recorder: recorder}
}

func (r *gormRepository) CreateRequest(ctx context.Context, req *VerificationRequest, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		entry.EntityType = audit.EntityVerificationRequest
		entry.EntityID = req.ID
		return r.recorder.Record(tx, entry)
	})
}

func (r *gormRepository) GetRequest(ctx context.Context, id uint) (*VerificationRequest, error) {
	var req VerificationRequest
	err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("verification request not found")
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *gormRepository) ListRequests(ctx context.Context, filter ListFilter) ([]VerificationRequest, error) {
	query := r.db.WithContext(ctx).Model(&VerificationRequest{})
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var result []VerificationRequest
	err := query.Order("created_at DESC").Find(&result).Error
	return result, err
}

func (r *gormRepository) UpdateRequest(ctx context.Context, req *VerificationRequest, expectedVersion uint, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req.LockVersion = expectedVersion + 1
		res := tx.Model(&VerificationRequest{}).
			Where("id = ? AND lock_version = ?", req.ID, expectedVersion).
			Select("*").
			Omit("id", "created_at").
			Updates(req)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("verification request was modified concurrently")
		}
		if entry == nil {
			return nil
		}
		entry.EntityType = audit.EntityVerificationRequest
		entry.EntityID = req.ID
		return r.recorder.Record(tx, entry)
	})
}

func (r *gormRepository) UpdateAttestation(ctx context.Context, requestID uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&VerificationRequest{}).
		Where("id = ?", requestID).
		Updates(fields).Error
}

func (r *gormRepository) SaveCertificate(ctx context.Context, cert *attestation.BlockchainCertificate) error {
	return r.db.WithContext(ctx).Create(cert).Error
}

func (r *gormRepository) GetCertificate(ctx context.Context, requestID uint) (*attestation.BlockchainCertificate, error) {
	var cert attestation.BlockchainCertificate
	err := r.db.WithContext(ctx).
		Where("document_type = ? AND document_id = ?", "verification_request", requestID).
		Order("created_at DESC").
		First(&cert).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("no certificate issued for this request")
	}
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *gormRepository) AddDocument(ctx context.Context, doc *VerificationDocument, req *VerificationRequest, expectedVersion uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		req.SubmittedDocuments = append(req.SubmittedDocuments, int64(doc.ID))
		req.LockVersion = expectedVersion + 1
		res := tx.Model(&VerificationRequest{}).
			Where("id = ? AND lock_version = ?", req.ID, expectedVersion).
			Updates(map[string]interface{}{
				"submitted_documents": req.SubmittedDocuments,
				"lock_version":        req.LockVersion,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("verification request was modified concurrently")
		}
		return nil
	})
}

func (r *gormRepository) GetDocument(ctx context.Context, requestID, documentID uint) (*VerificationDocument, error) {
	var doc VerificationDocument
	err := r.db.WithContext(ctx).
		First(&doc, "id = ? AND request_id = ?", documentID, requestID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("verification document not found")
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *gormRepository) ListDocuments(ctx context.Context, requestID uint) ([]VerificationDocument, error) {
	var docs []VerificationDocument
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at").
		Find(&docs).Error
	return docs, err
}

func (r *gormRepository) UpdateDocument(ctx context.Context, doc *VerificationDocument) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

func (r *gormRepository) History(ctx context.Context, requestID uint) ([]audit.Entry, error) {
	return r.recorder.List(r.db.WithContext(ctx), audit.EntityVerificationRequest, requestID)
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
