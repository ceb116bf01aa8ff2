package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aip-platform/deal-portal-backend/internal/analysis"
	"aip-platform/deal-portal-backend/internal/apperr"
	"aip-platform/deal-portal-backend/internal/attestation"
	"aip-platform/deal-portal-backend/internal/audit"
	"aip-platform/deal-portal-backend/internal/auth"
	"aip-platform/deal-portal-backend/internal/config"
)

// Engine advances verification requests through the FP then LP approval
// chain. All validate-and-mutate sequences run under the repository's
// optimistic version check; attestation happens after commit and its
// outcome is recorded by a separate update.
type Engine struct {
	repo     Repository
	policy   *auth.Policy
	attester *attestation.Service
	analyzer *analysis.Service
	cfg      config.VerificationConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewEngine(repo Repository, policy *auth.Policy, attester *attestation.Service, analyzer *analysis.Service, cfg config.VerificationConfig, logger *zap.Logger) *Engine {
	return &Engine{
		repo:     repo,
		policy:   policy,
		attester: attester,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Scores carries the four LP sub-scores. Nil entries are left unscored.
type Scores struct {
	Technical *float64 `json:"technical_score"`
	Financial *float64 `json:"financial_score"`
	Legal     *float64 `json:"legal_score"`
	ESG       *float64 `json:"esg_score"`
}

// OpenRequest creates a request for a level in pending status.
func (e *Engine) OpenRequest(ctx context.Context, actor auth.Actor, projectID uint, requestedLevel string) (*VerificationRequest, error) {
	if err := e.policy.Require(auth.OpVerificationOpen, actor); err != nil {
		return nil, err
	}
	if !validLevel(requestedLevel) {
		return nil, apperr.Validation("unrecognized verification level %q", requestedLevel)
	}
	exists, err := e.repo.ProjectExists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("project not found")
	}

	req := &VerificationRequest{
		ProjectID:         projectID,
		RequestedLevel:    requestedLevel,
		Status:            StatusPending,
		RequestedByID:     actor.ID,
		RequiredDocuments: e.cfg.RequiredDocuments[requestedLevel],
	}
	entry := &audit.Entry{
		Action:       ActionCreated,
		ActionByID:   actor.ID,
		ActionByType: actor.Role,
		NewStatus:    strptr(StatusPending),
		Notes:        fmt.Sprintf("verification request opened for level %s", requestedLevel),
	}
	if err := e.repo.CreateRequest(ctx, req, entry); err != nil {
		return nil, err
	}
	return req, nil
}

// AssignFundPreparer sets the FP reviewer and moves the request to
// in_progress. Reassignment is permitted at any non-terminal state.
func (e *Engine) AssignFundPreparer(ctx context.Context, actor auth.Actor, requestID, userID uint) error {
	return e.assign(ctx, actor, requestID, userID, true)
}

// AssignLeadPartner sets the LP reviewer without changing status.
func (e *Engine) AssignLeadPartner(ctx context.Context, actor auth.Actor, requestID, userID uint) error {
	return e.assign(ctx, actor, requestID, userID, false)
}

func (e *Engine) assign(ctx context.Context, actor auth.Actor, requestID, userID uint, fundPreparer bool) error {
	if err := e.policy.Require(auth.OpVerificationAssign, actor); err != nil {
		return err
	}
	req, err := e.repo.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Terminal() {
		return apperr.Precondition("request is %s and accepts no further changes", req.Status)
	}
	exists, err := e.repo.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("user not found")
	}

	previous := req.Status
	action := ActionLPAssigned
	if fundPreparer {
		req.FundPreparerID = &userID
		req.Status = StatusInProgress
		action = ActionFPAssigned
	} else {
		req.LeadPartnerID = &userID
	}

	entry := &audit.Entry{
		Action:         action,
		ActionByID:     actor.ID,
		ActionByType:   actor.Role,
		PreviousStatus: strptr(previous),
		NewStatus:      strptr(req.Status),
		Notes:          fmt.Sprintf("reviewer %d assigned", userID),
	}
	return e.repo.UpdateRequest(ctx, req, req.LockVersion, entry)
}

// SubmitFPReview records the fund preparer's outcome. The request stays
// in_progress whatever the outcome; an LP review decides the request.
func (e *Engine) SubmitFPReview(ctx context.Context, actor auth.Actor, requestID uint, outcome, notes string) error {
	if !validOutcome(outcome) {
		return apperr.Validation("unrecognized review outcome %q", outcome)
	}
	req, err := e.repo.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Terminal() {
		return apperr.Precondition("request is %s and accepts no further reviews", req.Status)
	}
	if req.FundPreparerID == nil || *req.FundPreparerID != actor.ID {
		return apperr.Unauthorized("only the assigned fund preparer may submit this review")
	}

	previous := req.Status
	now := e.now()
	req.FPReviewStatus = strptr(outcome)
	req.FPReviewDate = &now
	req.FPReviewNotes = strptr(notes)
	req.Status = StatusInProgress

	entry := &audit.Entry{
		Action:         ActionFPReviewSubmitted,
		ActionByID:     actor.ID,
		ActionByType:   actor.Role,
		PreviousStatus: strptr(previous),
		NewStatus:      strptr(req.Status),
		Notes:          fmt.Sprintf("fund preparer outcome: %s", outcome),
	}
	return e.repo.UpdateRequest(ctx, req, req.LockVersion, entry)
}

// SubmitLPReview records the lead partner's decision. Requires a prior
// FP approval. On approval the decision commits first and attestation
// runs after, best-effort.
func (e *Engine) SubmitLPReview(ctx context.Context, actor auth.Actor, requestID uint, outcome, notes string, scores *Scores) (*VerificationRequest, error) {
	if !validOutcome(outcome) {
		return nil, apperr.Validation("unrecognized review outcome %q", outcome)
	}
	if err := validateScores(scores); err != nil {
		return nil, err
	}
	req, err := e.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Terminal() {
		return nil, apperr.Precondition("request is %s and accepts no further reviews", req.Status)
	}
	if req.LeadPartnerID == nil || *req.LeadPartnerID != actor.ID {
		return nil, apperr.Unauthorized("only the assigned lead partner may submit this review")
	}
	if req.FPReviewStatus == nil || *req.FPReviewStatus != OutcomeApproved {
		return nil, apperr.Precondition("fund preparer must approve before lead partner review")
	}

	previous := req.Status
	now := e.now()
	req.LPReviewStatus = strptr(outcome)
	req.LPReviewDate = &now
	req.LPReviewNotes = strptr(notes)

	if scores != nil {
		req.TechnicalScore = scores.Technical
		req.FinancialScore = scores.Financial
		req.LegalScore = scores.Legal
		req.ESGScore = scores.ESG
		req.OverallScore = overallScore(scores.Technical, scores.Financial, scores.Legal, scores.ESG)
		if req.OverallScore != nil {
			req.RiskLevel = strptr(riskLevelFor(*req.OverallScore, e.cfg.RiskThresholds))
		}
	}

	switch outcome {
	case OutcomeApproved:
		req.Status = StatusApproved
		req.CurrentLevel = strptr(req.RequestedLevel)
		req.CompletedAt = &now
	case OutcomeRejected:
		req.Status = StatusRejected
		req.CompletedAt = &now
	case OutcomeNeedsRevision:
		req.Status = StatusNeedsRevision
	}

	entry := &audit.Entry{
		Action:         ActionLPReviewSubmitted,
		ActionByID:     actor.ID,
		ActionByType:   actor.Role,
		PreviousStatus: strptr(previous),
		NewStatus:      strptr(req.Status),
		Notes:          fmt.Sprintf("lead partner outcome: %s", outcome),
	}
	if err := e.repo.UpdateRequest(ctx, req, req.LockVersion, entry); err != nil {
		return nil, err
	}

	if req.Status == StatusApproved {
		e.attestApproval(ctx, req)
	}
	return req, nil
}

// attestApproval runs after the approval has committed. Failures are
// recorded on the request, never surfaced.
func (e *Engine) attestApproval(ctx context.Context, req *VerificationRequest) {
	payload := fmt.Sprintf("verification-request:%d:%s:%d", req.ID, req.RequestedLevel, req.ProjectID)
	hash := attestation.HashContent([]byte(payload))
	metadata := attestation.DocumentMetadata(req.ID, fmt.Sprintf("verification-%d", req.ID), hash, req.RequestedByID, req.RequestedLevel, map[string]interface{}{
		"project_id":    req.ProjectID,
		"overall_score": req.OverallScore,
	})

	result := e.attester.Register(ctx, hash, metadata)
	if !result.Succeeded() {
		e.logger.Warn("attestation failed after approval",
			zap.Uint("request_id", req.ID),
			zap.String("reason", result.Reason))
		if err := e.repo.UpdateAttestation(ctx, req.ID, map[string]interface{}{
			"attestation_status": attestation.StatusFailed,
		}); err != nil {
			e.logger.Error("failed to record attestation outcome", zap.Error(err))
		}
		return
	}

	cert := result.Certificate
	certMeta, _ := json.Marshal(cert.Metadata)
	record := &attestation.BlockchainCertificate{
		CertificateID:   cert.CertificateID,
		CertificateType: "verification_approval",
		DocumentType:    "verification_request",
		DocumentID:      req.ID,
		DocumentHash:    cert.DocumentHash,
		Network:         cert.Network,
		TransactionHash: cert.TransactionHash,
		BlockNumber:     cert.BlockNumber,
		ExplorerURL:     cert.VerificationURL,
		CertMetadata:    certMeta,
		IssuedToID:      req.RequestedByID,
	}
	if err := e.repo.SaveCertificate(ctx, record); err != nil {
		e.logger.Error("failed to persist certificate", zap.Error(err))
	}

	if err := e.repo.UpdateAttestation(ctx, req.ID, map[string]interface{}{
		"blockchain_hash":    cert.DocumentHash,
		"blockchain_tx":      cert.TransactionHash,
		"attested_at":        cert.Timestamp,
		"attestation_status": attestation.StatusConfirmed,
		"certificate_id":     cert.CertificateID,
	}); err != nil {
		e.logger.Error("failed to record attestation outcome", zap.Error(err))
	}
}

// AttachDocument adds evidence to a request and registers its id in the
// submitted list.
func (e *Engine) AttachDocument(ctx context.Context, actor auth.Actor, requestID uint, name, documentType, fileRef string) (*VerificationDocument, error) {
	if err := e.policy.Require(auth.OpVerificationAttach, actor); err != nil {
		return nil, err
	}
	req, err := e.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	// Placeholder hashing until file contents flow through here: the
	// reference plus attach time makes the hash unique per attachment.
	hash := attestation.HashContent([]byte(fmt.Sprintf("%s:%d", fileRef, e.now().UnixNano())))
	doc := &VerificationDocument{
		RequestID:    requestID,
		Name:         name,
		DocumentType: documentType,
		FileRef:      fileRef,
		ContentHash:  hash,
		Status:       DocStatusPending,
		UploadedByID: actor.ID,
	}
	if err := e.repo.AddDocument(ctx, doc, req, req.LockVersion); err != nil {
		return nil, err
	}
	return doc, nil
}

// Get returns one request.
func (e *Engine) Get(ctx context.Context, requestID uint) (*VerificationRequest, error) {
	return e.repo.GetRequest(ctx, requestID)
}

// List returns requests matching the filter, newest first.
func (e *Engine) List(ctx context.Context, filter ListFilter) ([]VerificationRequest, error) {
	return e.repo.ListRequests(ctx, filter)
}

// Documents lists a request's attached evidence.
func (e *Engine) Documents(ctx context.Context, requestID uint) ([]VerificationDocument, error) {
	if _, err := e.repo.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return e.repo.ListDocuments(ctx, requestID)
}

// History returns the request's audit trail, newest first.
func (e *Engine) History(ctx context.Context, requestID uint) ([]audit.Entry, error) {
	if _, err := e.repo.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return e.repo.History(ctx, requestID)
}

// AnalyzeDocument runs an advisory analysis over a document and stores
// the payload on it. The result never gates a transition.
func (e *Engine) AnalyzeDocument(ctx context.Context, actor auth.Actor, requestID, documentID uint, kindTag string) (*analysis.Result, error) {
	if err := e.policy.Require(auth.OpVerificationRead, actor); err != nil {
		return nil, err
	}
	doc, err := e.repo.GetDocument(ctx, requestID, documentID)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("%s (%s) %s", doc.Name, doc.DocumentType, doc.FileRef)
	result, err := e.analyzer.Analyze(ctx, text, analysis.KindFromString(kindTag))
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	doc.AIAnalysis = payload
	if result.AnalysisType == analysis.KindRiskAnalysis {
		riskScore := (1 - result.ConfidenceScore) * 100
		doc.AIRiskScore = &riskScore
	}
	if err := e.repo.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return result, nil
}

func validateScores(scores *Scores) error {
	if scores == nil {
		return nil
	}
	for _, s := range []*float64{scores.Technical, scores.Financial, scores.Legal, scores.ESG} {
		if s != nil && (*s < 0 || *s > 100) {
			return apperr.Validation("sub-scores must be between 0 and 100")
		}
	}
	return nil
}

func strptr(s string) *string { return &s }
