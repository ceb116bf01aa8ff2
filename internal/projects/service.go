package projects

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"aip-platform/deal-portal-backend/internal/apperr"
	"aip-platform/deal-portal-backend/internal/auth"
)

// Service manages the project registry
type Service struct {
	db     *gorm.DB
	policy *auth.Policy
	logger *zap.Logger
}

func NewService(db *gorm.DB, policy *auth.Policy, logger *zap.Logger) *Service {
	return &Service{db: db, policy: policy, logger: logger}
}

type CreateInput struct {
	Name             string   `json:"name" binding:"required"`
	Sector           string   `json:"sector" binding:"required"`
	Country          string   `json:"country" binding:"required"`
	Region           *string  `json:"region"`
	Stage            string   `json:"stage" binding:"required"`
	EstimatedCapex   float64  `json:"estimated_capex"`
	FundingGap       *float64 `json:"funding_gap"`
	RevenueModel     string   `json:"revenue_model"`
	Offtaker         *string  `json:"offtaker"`
	ConcessionLength *int     `json:"concession_length"`
	Technology       *string  `json:"technology"`
	ESGCategory      *string  `json:"esg_category"`
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*Project, error) {
	if err := s.policy.Require(auth.OpProjectWrite, actor); err != nil {
		return nil, err
	}
	if !validSector(in.Sector) {
		return nil, apperr.Validation("unrecognized sector %q", in.Sector)
	}
	if !validStage(in.Stage) {
		return nil, apperr.Validation("unrecognized stage %q", in.Stage)
	}

	project := &Project{
		Name:             in.Name,
		Sector:           in.Sector,
		Country:          in.Country,
		Region:           in.Region,
		Stage:            in.Stage,
		EstimatedCapex:   in.EstimatedCapex,
		FundingGap:       in.FundingGap,
		RevenueModel:     in.RevenueModel,
		Offtaker:         in.Offtaker,
		ConcessionLength: in.ConcessionLength,
		Technology:       in.Technology,
		ESGCategory:      in.ESGCategory,
		OwnerID:          actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*Project, error) {
	var project Project
	err := s.db.WithContext(ctx).First(&project, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("project not found")
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

type ListFilter struct {
	Sector  *string
	Country *string
	Stage   *string
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Project, error) {
	query := s.db.WithContext(ctx).Model(&Project{})
	if filter.Sector != nil {
		query = query.Where("sector = ?", *filter.Sector)
	}
	if filter.Country != nil {
		query = query.Where("country = ?", *filter.Country)
	}
	if filter.Stage != nil {
		query = query.Where("stage = ?", *filter.Stage)
	}

	var result []Project
	err := query.Order("created_at DESC").Find(&result).Error
	return result, err
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, id uint, in CreateInput) (*Project, error) {
	if err := s.policy.Require(auth.OpProjectWrite, actor); err != nil {
		return nil, err
	}
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !validSector(in.Sector) {
		return nil, apperr.Validation("unrecognized sector %q", in.Sector)
	}
	if !validStage(in.Stage) {
		return nil, apperr.Validation("unrecognized stage %q", in.Stage)
	}

	project.Name = in.Name
	project.Sector = in.Sector
	project.Country = in.Country
	project.Region = in.Region
	project.Stage = in.Stage
	project.EstimatedCapex = in.EstimatedCapex
	project.FundingGap = in.FundingGap
	project.RevenueModel = in.RevenueModel
	project.Offtaker = in.Offtaker
	project.ConcessionLength = in.ConcessionLength
	project.Technology = in.Technology
	project.ESGCategory = in.ESGCategory

	if err := s.db.WithContext(ctx).Save(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}
