package sira

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"aip-platform/deal-portal-backend/internal/apperr"
	"aip-platform/deal-portal-backend/internal/attestation"
	"aip-platform/deal-portal-backend/internal/auth"
)

// Service implements the shipping incident & risk workflows.
type Service struct {
	db     *gorm.DB
	policy *auth.Policy
	logger *zap.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, policy *auth.Policy, logger *zap.Logger) *Service {
	return &Service{db: db, policy: policy, logger: logger, now: time.Now}
}

// canAcknowledge enforces the open-only acknowledge rule.
func canAcknowledge(alert *Alert) error {
	if alert.Status != AlertOpen {
		return apperr.Precondition("only open alerts can be acknowledged, alert is %s", alert.Status)
	}
	return nil
}

// caseMutable rejects updates to closed cases.
func caseMutable(c *Case) error {
	if c.Status == CaseClosed {
		return apperr.Precondition("case is closed and accepts no further updates")
	}
	return nil
}

// --- movements ---

type MovementInput struct {
	Reference  string   `json:"reference" binding:"required"`
	VesselName string   `json:"vessel_name"`
	CargoType  string   `json:"cargo_type"`
	OriginPort string   `json:"origin_port"`
	DestPort   string   `json:"dest_port"`
	RiskScore  *float64 `json:"risk_score"`
}

func (s *Service) CreateMovement(ctx context.Context, actor auth.Actor, in MovementInput) (*Movement, error) {
	if err := s.policy.Require(auth.OpMovementWrite, actor); err != nil {
		return nil, err
	}
	movement := &Movement{
		Reference:   in.Reference,
		VesselName:  in.VesselName,
		CargoType:   in.CargoType,
		OriginPort:  in.OriginPort,
		DestPort:    in.DestPort,
		RiskScore:   in.RiskScore,
		CreatedByID: actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(movement).Error; err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *Service) GetMovement(ctx context.Context, id uint) (*Movement, error) {
	var movement Movement
	err := s.db.WithContext(ctx).First(&movement, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("movement not found")
	}
	if err != nil {
		return nil, err
	}
	return &movement, nil
}

func (s *Service) ListMovements(ctx context.Context) ([]Movement, error) {
	var movements []Movement
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&movements).Error
	return movements, err
}

type EventInput struct {
	EventType  string     `json:"event_type" binding:"required"`
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
	OccurredAt *time.Time `json:"occurred_at"`
}

func (s *Service) AddShipmentEvent(ctx context.Context, actor auth.Actor, movementID uint, in EventInput) (*ShipmentEvent, error) {
	if err := s.policy.Require(auth.OpMovementWrite, actor); err != nil {
		return nil, err
	}
	if _, err := s.GetMovement(ctx, movementID); err != nil {
		return nil, err
	}

	occurred := s.now()
	if in.OccurredAt != nil {
		occurred = *in.OccurredAt
	}
	event := &ShipmentEvent{
		MovementID: movementID,
		EventType:  in.EventType,
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		OccurredAt: occurred,
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (s *Service) MovementEvents(ctx context.Context, movementID uint) ([]ShipmentEvent, error) {
	if _, err := s.GetMovement(ctx, movementID); err != nil {
		return nil, err
	}
	var events []ShipmentEvent
	err := s.db.WithContext(ctx).
		Where("movement_id = ?", movementID).
		Order("occurred_at").
		Find(&events).Error
	return events, err
}

// --- alerts ---

type AlertInput struct {
	MovementID  *uint  `json:"movement_id"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Severity    string `json:"severity" binding:"required"`
}

func (s *Service) CreateAlert(ctx context.Context, actor auth.Actor, in AlertInput) (*Alert, error) {
	if err := s.policy.Require(auth.OpAlertCreate, actor); err != nil {
		return nil, err
	}
	if !validSeverity(in.Severity) {
		return nil, apperr.Validation("unrecognized severity %q", in.Severity)
	}
	alert := &Alert{
		MovementID:  in.MovementID,
		Title:       in.Title,
		Description: in.Description,
		Severity:    in.Severity,
		Status:      AlertOpen,
		CreatedByID: actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

func (s *Service) GetAlert(ctx context.Context, id uint) (*Alert, error) {
	var alert Alert
	err := s.db.WithContext(ctx).First(&alert, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("alert not found")
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *Service) ListAlerts(ctx context.Context, status *string) ([]Alert, error) {
	query := s.db.WithContext(ctx).Model(&Alert{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var alerts []Alert
	err := query.Order("created_at DESC").Find(&alerts).Error
	return alerts, err
}

func (s *Service) AcknowledgeAlert(ctx context.Context, actor auth.Actor, alertID uint) (*Alert, error) {
	if err := s.policy.Require(auth.OpAlertUpdate, actor); err != nil {
		return nil, err
	}
	alert, err := s.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if err := canAcknowledge(alert); err != nil {
		return nil, err
	}

	now := s.now()
	alert.Status = AlertAcknowledged
	alert.AcknowledgedByID = &actor.ID
	alert.AcknowledgedAt = &now
	if err := s.db.WithContext(ctx).Save(alert).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

func (s *Service) AssignAlertToCase(ctx context.Context, actor auth.Actor, alertID, caseID uint) (*Alert, error) {
	if err := s.policy.Require(auth.OpAlertUpdate, actor); err != nil {
		return nil, err
	}
	alert, err := s.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.Status == AlertClosed {
		return nil, apperr.Precondition("closed alerts cannot be assigned")
	}
	investigation, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := caseMutable(investigation); err != nil {
		return nil, err
	}

	alert.CaseID = &caseID
	alert.Status = AlertAssigned
	if err := s.db.WithContext(ctx).Save(alert).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

func (s *Service) CloseAlert(ctx context.Context, actor auth.Actor, alertID uint) (*Alert, error) {
	if err := s.policy.Require(auth.OpAlertUpdate, actor); err != nil {
		return nil, err
	}
	alert, err := s.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.Status == AlertClosed {
		return nil, apperr.Conflict("alert is already closed")
	}

	now := s.now()
	alert.Status = AlertClosed
	alert.ClosedAt = &now
	if err := s.db.WithContext(ctx).Save(alert).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

// --- cases ---

type CaseInput struct {
	Title    string `json:"title" binding:"required"`
	Summary  string `json:"summary"`
	Priority string `json:"priority"`
}

func (s *Service) CreateCase(ctx context.Context, actor auth.Actor, in CaseInput) (*Case, error) {
	if err := s.policy.Require(auth.OpCaseCreate, actor); err != nil {
		return nil, err
	}
	priority := in.Priority
	if priority == "" {
		priority = SeverityMedium
	}
	investigation := &Case{
		Title:       in.Title,
		Summary:     in.Summary,
		Status:      CaseOpen,
		Priority:    priority,
		CreatedByID: actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(investigation).Error; err != nil {
		return nil, err
	}
	return investigation, nil
}

func (s *Service) GetCase(ctx context.Context, id uint) (*Case, error) {
	var investigation Case
	err := s.db.WithContext(ctx).First(&investigation, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("case not found")
	}
	if err != nil {
		return nil, err
	}
	return &investigation, nil
}

func (s *Service) ListCases(ctx context.Context, status *string) ([]Case, error) {
	query := s.db.WithContext(ctx).Model(&Case{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var cases []Case
	err := query.Order("created_at DESC").Find(&cases).Error
	return cases, err
}

type CaseUpdateInput struct {
	Summary    *string `json:"summary"`
	Priority   *string `json:"priority"`
	AssigneeID *uint   `json:"assignee_id"`
	Status     *string `json:"status"`
}

func (s *Service) UpdateCase(ctx context.Context, actor auth.Actor, caseID uint, in CaseUpdateInput) (*Case, error) {
	if err := s.policy.Require(auth.OpCaseUpdate, actor); err != nil {
		return nil, err
	}
	investigation, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := caseMutable(investigation); err != nil {
		return nil, err
	}

	if in.Summary != nil {
		investigation.Summary = *in.Summary
	}
	if in.Priority != nil {
		investigation.Priority = *in.Priority
	}
	if in.AssigneeID != nil {
		investigation.AssigneeID = in.AssigneeID
		if investigation.Status == CaseOpen {
			investigation.Status = CaseInvestigating
		}
	}
	if in.Status != nil {
		if *in.Status == CaseClosed {
			return nil, apperr.Validation("cases are closed through the close operation")
		}
		investigation.Status = *in.Status
	}
	if err := s.db.WithContext(ctx).Save(investigation).Error; err != nil {
		return nil, err
	}
	return investigation, nil
}

type CloseCaseInput struct {
	ClosureCode  string `json:"closure_code" binding:"required"`
	ClosureNotes string `json:"closure_notes"`
}

func (s *Service) CloseCase(ctx context.Context, actor auth.Actor, caseID uint, in CloseCaseInput) (*Case, error) {
	if err := s.policy.Require(auth.OpCaseClose, actor); err != nil {
		return nil, err
	}
	investigation, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if investigation.Status == CaseClosed {
		return nil, apperr.Conflict("case is already closed")
	}

	now := s.now()
	investigation.Status = CaseClosed
	investigation.ClosureCode = &in.ClosureCode
	if in.ClosureNotes != "" {
		investigation.ClosureNotes = &in.ClosureNotes
	}
	investigation.ClosedByID = &actor.ID
	investigation.ClosedAt = &now
	if err := s.db.WithContext(ctx).Save(investigation).Error; err != nil {
		return nil, err
	}
	return investigation, nil
}

// CasePack is the export summary for a case: the case itself, every
// alert assigned to it and the evidence register with current
// integrity results.
type CasePack struct {
	Case     *Case          `json:"case"`
	Alerts   []Alert        `json:"alerts"`
	Evidence []EvidenceItem `json:"evidence"`
}

type EvidenceItem struct {
	Evidence
	Intact bool `json:"intact"`
}

// ExportCase assembles the case pack summary.
func (s *Service) ExportCase(ctx context.Context, actor auth.Actor, caseID uint) (*CasePack, error) {
	if err := s.policy.Require(auth.OpCaseRead, actor); err != nil {
		return nil, err
	}
	investigation, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	var alerts []Alert
	if err := s.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("created_at").
		Find(&alerts).Error; err != nil {
		return nil, err
	}

	items, err := s.ListEvidence(ctx, caseID)
	if err != nil {
		return nil, err
	}
	evidence := make([]EvidenceItem, 0, len(items))
	for _, e := range items {
		evidence = append(evidence, EvidenceItem{Evidence: e, Intact: evidenceIntact(&e)})
	}

	return &CasePack{Case: investigation, Alerts: alerts, Evidence: evidence}, nil
}

// --- evidence ---

type EvidenceInput struct {
	Title      string `json:"title" binding:"required"`
	ContentRef string `json:"content_ref" binding:"required"`
}

// SubmitEvidence attaches evidence to an open case, hashing the content
// reference at intake.
func (s *Service) SubmitEvidence(ctx context.Context, actor auth.Actor, caseID uint, in EvidenceInput) (*Evidence, error) {
	if err := s.policy.Require(auth.OpEvidenceCreate, actor); err != nil {
		return nil, err
	}
	investigation, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := caseMutable(investigation); err != nil {
		return nil, err
	}

	evidence := &Evidence{
		CaseID:        caseID,
		Title:         in.Title,
		ContentRef:    in.ContentRef,
		IntegrityHash: attestation.HashContent([]byte(in.ContentRef)),
		Status:        EvidencePending,
		SubmittedByID: actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(evidence).Error; err != nil {
		return nil, err
	}
	return evidence, nil
}

func (s *Service) GetEvidence(ctx context.Context, caseID, evidenceID uint) (*Evidence, error) {
	var evidence Evidence
	err := s.db.WithContext(ctx).
		First(&evidence, "id = ? AND case_id = ?", evidenceID, caseID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NotFound("evidence not found")
	}
	if err != nil {
		return nil, err
	}
	return &evidence, nil
}

func (s *Service) ListEvidence(ctx context.Context, caseID uint) ([]Evidence, error) {
	if _, err := s.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	var items []Evidence
	err := s.db.WithContext(ctx).Where("case_id = ?", caseID).Order("created_at").Find(&items).Error
	return items, err
}

// ReviewEvidence records the security lead's verify or reject decision.
func (s *Service) ReviewEvidence(ctx context.Context, actor auth.Actor, caseID, evidenceID uint, verified bool) (*Evidence, error) {
	if err := s.policy.Require(auth.OpEvidenceVerify, actor); err != nil {
		return nil, err
	}
	evidence, err := s.GetEvidence(ctx, caseID, evidenceID)
	if err != nil {
		return nil, err
	}
	if evidence.Status != EvidencePending {
		return nil, apperr.Conflict("evidence has already been reviewed")
	}

	now := s.now()
	if verified {
		evidence.Status = EvidenceVerified
	} else {
		evidence.Status = EvidenceRejected
	}
	evidence.VerifiedByID = &actor.ID
	evidence.VerifiedAt = &now
	if err := s.db.WithContext(ctx).Save(evidence).Error; err != nil {
		return nil, err
	}
	return evidence, nil
}

// CheckEvidenceIntegrity recomputes the intake hash and reports whether
// the stored reference still matches it.
func (s *Service) CheckEvidenceIntegrity(ctx context.Context, caseID, evidenceID uint) (bool, error) {
	evidence, err := s.GetEvidence(ctx, caseID, evidenceID)
	if err != nil {
		return false, err
	}
	return evidenceIntact(evidence), nil
}

func evidenceIntact(e *Evidence) bool {
	return attestation.HashContent([]byte(e.ContentRef)) == e.IntegrityHash
}

// --- playbooks ---

type PlaybookInput struct {
	Name     string   `json:"name" binding:"required"`
	Severity string   `json:"severity" binding:"required"`
	Steps    []string `json:"steps"`
}

func stepsJSON(steps []string) (datatypes.JSON, error) {
	if steps == nil {
		steps = []string{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Service) CreatePlaybook(ctx context.Context, actor auth.Actor, in PlaybookInput) (*Playbook, error) {
	if err := s.policy.Require(auth.OpPlaybookWrite, actor); err != nil {
		return nil, err
	}
	if !validSeverity(in.Severity) {
		return nil, apperr.Validation("unrecognized severity %q", in.Severity)
	}

	steps, err := stepsJSON(in.Steps)
	if err != nil {
		return nil, err
	}
	playbook := &Playbook{
		Name:        in.Name,
		Severity:    in.Severity,
		Steps:       steps,
		IsActive:    true,
		CreatedByID: actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(playbook).Error; err != nil {
		return nil, err
	}
	return playbook, nil
}

func (s *Service) ListPlaybooks(ctx context.Context, severity *string) ([]Playbook, error) {
	query := s.db.WithContext(ctx).Model(&Playbook{}).Where("is_active = true")
	if severity != nil {
		query = query.Where("severity = ?", *severity)
	}
	var playbooks []Playbook
	err := query.Order("name").Find(&playbooks).Error
	return playbooks, err
}
