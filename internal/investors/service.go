package investors

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"aip-platform/deal-portal-backend/internal/apperr"
	"aip-platform/deal-portal-backend/internal/auth"
	"aip-platform/deal-portal-backend/internal/projects"
)

// Service manages investor mandates and project matching
type Service struct {
	db       *gorm.DB
	policy   *auth.Policy
	projects *projects.Service
	logger   *zap.Logger
}

func NewService(db *gorm.DB, policy *auth.Policy, projectService *projects.Service, logger *zap.Logger) *Service {
	return &Service{db: db, policy: policy, projects: projectService, logger: logger}
}

type CreateInput struct {
	Name          string   `json:"name" binding:"required"`
	Type          string   `json:"type" binding:"required"`
	Instruments   []string `json:"instruments"`
	TicketSizeMin float64  `json:"ticket_size_min"`
	TicketSizeMax float64  `json:"ticket_size_max"`
	CountryFocus  []string `json:"country_focus"`
	SectorFocus   []string `json:"sector_focus"`
	TargetIRR     *float64 `json:"target_irr"`
	ESGCriteria   *string  `json:"esg_criteria"`
	ContactEmail  *string  `json:"contact_email"`
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*Investor, error) {
	if err := s.policy.Require(auth.OpInvestorWrite, actor); err != nil {
		return nil, err
	}
	if in.TicketSizeMax > 0 && in.TicketSizeMin > in.TicketSizeMax {
		return nil, apperr.Validation("ticket_size_min exceeds ticket_size_max")
	}

	investor := &Investor{
		Name:          in.Name,
		Type:          in.Type,
		Instruments:   in.Instruments,
		TicketSizeMin: in.TicketSizeMin,
		TicketSizeMax: in.TicketSizeMax,
		CountryFocus:  in.CountryFocus,
		SectorFocus:   in.SectorFocus,
		TargetIRR:     in.TargetIRR,
		ESGCriteria:   in.ESGCriteria,
		ContactEmail:  in.ContactEmail,
	}
	if err := s.db.WithContext(ctx).Create(investor).Error; err != nil {
		return nil, err
	}
	return investor, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*Investor, error) {
	var investor Investor
	err := s.db.WithContext(ctx).First(&investor, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("investor not found")
	}
	if err != nil {
		return nil, err
	}
	return &investor, nil
}

func (s *Service) List(ctx context.Context) ([]Investor, error) {
	var result []Investor
	err := s.db.WithContext(ctx).Order("name").Find(&result).Error
	return result, err
}

// MatchesForProject ranks all registered investors against the project.
func (s *Service) MatchesForProject(ctx context.Context, projectID uint) ([]Match, error) {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return MatchProject(project, candidates), nil
}
