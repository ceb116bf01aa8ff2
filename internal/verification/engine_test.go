package verification

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aip-platform/deal-portal-backend/internal/analysis"
	"aip-platform/deal-portal-backend/internal/apperr"
	"aip-platform/deal-portal-backend/internal/attestation"
	"aip-platform/deal-portal-backend/internal/audit"
	"aip-platform/deal-portal-backend/internal/auth"
	"aip-platform/deal-portal-backend/internal/config"
)

// fakeRepository is an in-memory Repository with the same optimistic
// version semantics as the Postgres implementation.
type fakeRepository struct {
	mu        sync.Mutex
	requests  map[uint]*VerificationRequest
	documents map[uint]*VerificationDocument
	history   []audit.Entry
	certs     []*attestation.BlockchainCertificate
	projects  map[uint]bool
	users     map[uint]bool
	nextID    uint
	nextSeq   uint64
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		requests:  make(map[uint]*VerificationRequest),
		documents: make(map[uint]*VerificationDocument),
		projects:  map[uint]bool{1: true},
		users:     map[uint]bool{1: true, 10: true, 20: true},
	}
}

func (f *fakeRepository) CreateRequest(_ context.Context, req *VerificationRequest, entry *audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	req.ID = f.nextID
	stored := *req
	f.requests[req.ID] = &stored
	f.appendEntryLocked(req.ID, entry)
	return nil
}

func (f *fakeRepository) GetRequest(_ context.Context, id uint) (*VerificationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.requests[id]
	if !ok {
		return nil, apperr.NotFound("verification request not found")
	}
	out := *stored
	return &out, nil
}

func (f *fakeRepository) ListRequests(_ context.Context, filter ListFilter) ([]VerificationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []VerificationRequest
	for _, req := range f.requests {
		if filter.ProjectID != nil && req.ProjectID != *filter.ProjectID {
			continue
		}
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		out = append(out, *req)
	}
	return out, nil
}

func (f *fakeRepository) UpdateRequest(_ context.Context, req *VerificationRequest, expectedVersion uint, entry *audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.requests[req.ID]
	if !ok {
		return apperr.NotFound("verification request not found")
	}
	if stored.LockVersion != expectedVersion {
		return apperr.Conflict("verification request was modified concurrently")
	}
	updated := *req
	updated.LockVersion = expectedVersion + 1
	f.requests[req.ID] = &updated
	req.LockVersion = updated.LockVersion
	if entry != nil {
		f.appendEntryLocked(req.ID, entry)
	}
	return nil
}

func (f *fakeRepository) UpdateAttestation(_ context.Context, requestID uint, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.requests[requestID]
	if !ok {
		return apperr.NotFound("verification request not found")
	}
	if v, ok := fields["attestation_status"].(string); ok {
		stored.AttestationStatus = &v
	}
	if v, ok := fields["blockchain_hash"].(string); ok {
		stored.BlockchainHash = &v
	}
	if v, ok := fields["blockchain_tx"].(string); ok {
		stored.BlockchainTx = &v
	}
	if v, ok := fields["certificate_id"].(string); ok {
		stored.CertificateID = &v
	}
	return nil
}

func (f *fakeRepository) SaveCertificate(_ context.Context, cert *attestation.BlockchainCertificate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.certs = append(f.certs, cert)
	return nil
}

func (f *fakeRepository) GetCertificate(_ context.Context, requestID uint) (*attestation.BlockchainCertificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.certs) - 1; i >= 0; i-- {
		if f.certs[i].DocumentID == requestID {
			return f.certs[i], nil
		}
	}
	return nil, apperr.NotFound("no certificate issued for this request")
}

func (f *fakeRepository) AddDocument(_ context.Context, doc *VerificationDocument, req *VerificationRequest, expectedVersion uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.requests[req.ID]
	if !ok {
		return apperr.NotFound("verification request not found")
	}
	if stored.LockVersion != expectedVersion {
		return apperr.Conflict("verification request was modified concurrently")
	}
	f.nextID++
	doc.ID = f.nextID
	storedDoc := *doc
	f.documents[doc.ID] = &storedDoc
	stored.SubmittedDocuments = append(stored.SubmittedDocuments, int64(doc.ID))
	stored.LockVersion = expectedVersion + 1
	return nil
}

func (f *fakeRepository) GetDocument(_ context.Context, requestID, documentID uint) (*VerificationDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok || doc.RequestID != requestID {
		return nil, apperr.NotFound("verification document not found")
	}
	out := *doc
	return &out, nil
}

func (f *fakeRepository) ListDocuments(_ context.Context, requestID uint) ([]VerificationDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []VerificationDocument
	for _, doc := range f.documents {
		if doc.RequestID == requestID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeRepository) UpdateDocument(_ context.Context, doc *VerificationDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *doc
	f.documents[doc.ID] = &stored
	return nil
}

func (f *fakeRepository) History(_ context.Context, requestID uint) ([]audit.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []audit.Entry
	for i := len(f.history) - 1; i >= 0; i-- {
		if f.history[i].EntityID == requestID {
			out = append(out, f.history[i])
		}
	}
	return out, nil
}

func (f *fakeRepository) ProjectExists(_ context.Context, id uint) (bool, error) {
	return f.projects[id], nil
}

func (f *fakeRepository) UserExists(_ context.Context, id uint) (bool, error) {
	return f.users[id], nil
}

func (f *fakeRepository) appendEntryLocked(requestID uint, entry *audit.Entry) {
	f.nextSeq++
	entry.Seq = f.nextSeq
	entry.EntityType = audit.EntityVerificationRequest
	entry.EntityID = requestID
	f.history = append(f.history, *entry)
}

var (
	analyst = auth.Actor{ID: 1, Role: auth.RoleAnalyst}
	fpUser  = auth.Actor{ID: 10, Role: auth.RoleFundPreparer}
	lpUser  = auth.Actor{ID: 20, Role: auth.RoleLeadPartner}
)

func newTestEngine(t *testing.T) (*Engine, *fakeRepository) {
	t.Helper()
	repo := newFakeRepository()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	logger := zap.NewNop()
	engine := NewEngine(repo, auth.DefaultPolicy(),
		attestation.NewService(cfg.Attestation, logger),
		analysis.NewService(logger),
		cfg.Verification, logger)
	return engine, repo
}

func score(v float64) *float64 { return &v }

func TestOpenRequestPopulatesChecklist(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	req, err := engine.OpenRequest(ctx, analyst, 1, LevelV3)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)
	assert.Len(t, req.RequiredDocuments, 5)

	v0, err := engine.OpenRequest(ctx, analyst, 1, LevelV0)
	require.NoError(t, err)
	assert.Len(t, v0.RequiredDocuments, 1)
}

func TestOpenRequestRejectsUnknownLevel(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.OpenRequest(context.Background(), analyst, 1, "V9")
	assert.True(t, apperr.IsValidation(err))
}

func TestOpenRequestRejectsUnknownProject(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.OpenRequest(context.Background(), analyst, 999, LevelV1)
	assert.True(t, apperr.IsNotFound(err))
}

func TestFPReviewRequiresAssignedReviewer(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	req, err := engine.OpenRequest(ctx, analyst, 1, LevelV2)
	require.NoError(t, err)
	require.NoError(t, engine.AssignFundPreparer(ctx, analyst, req.ID, fpUser.ID))

	err = engine.SubmitFPReview(ctx, lpUser, req.ID, OutcomeApproved, "")
	assert.True(t, apperr.IsUnauthorized(err))
}

func TestLPReviewBeforeFPApprovalRejectedWithoutMutation(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()

	req, err := engine.OpenRequest(ctx, analyst, 1, LevelV2)
	require.NoError(t, err)
	require.NoError(t, engine.AssignFundPreparer(ctx, analyst, req.ID, fpUser.ID))
	require.NoError(t, engine.AssignLeadPartner(ctx, analyst, req.ID, lpUser.ID))

	_, err = engine.SubmitLPReview(ctx, lpUser, req.ID, OutcomeApproved, "", nil)
	assert.True(t, apperr.IsPrecondition(err))

	stored, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, stored.Status)
	assert.Nil(t, stored.LPReviewStatus)
}

func TestEndToEndV3Approval(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()

	req, err := engine.OpenRequest(ctx, analyst, 1, LevelV3)
	require.NoError(t, err)
	require.NoError(t, engine.AssignFundPreparer(ctx, analyst, req.ID, fpUser.ID))
	require.NoError(t, engine.AssignLeadPartner(ctx, analyst, req.ID, lpUser.ID))
	require.NoError(t, engine.SubmitFPReview(ctx, fpUser, req.ID, OutcomeApproved, "complete dossier"))

	scores := &Scores{Technical: score(85), Financial: score(85), Legal: score(85), ESG: score(85)}
	approved, err := engine.SubmitLPReview(ctx, lpUser, req.ID, OutcomeApproved, "bankable", scores)
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.OverallScore)
	assert.Equal(t, 85.0, *approved.OverallScore)
	require.NotNil(t, approved.RiskLevel)
	assert.Equal(t, RiskLow, *approved.RiskLevel)
	require.NotNil(t, approved.CurrentLevel)
	assert.Equal(t, LevelV3, *approved.CurrentLevel)
	assert.NotNil(t, approved.CompletedAt)

	entries, err := engine.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	wantOldestFirst := []string{ActionCreated, ActionFPAssigned, ActionLPAssigned, ActionFPReviewSubmitted, ActionLPReviewSubmitted}
	for i, action := range wantOldestFirst {
		assert.Equal(t, action, entries[len(entries)-1-i].Action)
	}

	stored, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AttestationStatus)
	assert.Equal(t, attestation.StatusConfirmed, *stored.AttestationStatus)
	require.NotNil(t, stored.BlockchainTx)
	assert.Contains(t, *stored.BlockchainTx, "0x")
	require.Len(t, repo.certs, 1)
	assert.Contains(t, repo.certs[0].CertificateID, "AIP-CERT-")
}

func TestTerminalRequestsRejectFurtherReviews(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	req, err := engine.OpenRequest(ctx, analyst, 1, LevelV1)
	require.NoError(t, err)
	require.NoError(t, engine.AssignFundPreparer(ctx, analyst, req.ID, fpUser.ID))
	require.NoError(t, engine.AssignLeadPartner(ctx, analyst, req.ID, lpUser.ID))
	require.NoError(t, engine.SubmitFPReview(ctx, fpUser, req.ID, OutcomeApproved, ""))

	_, err = engine.SubmitLPReview(ctx, lpUser, req.ID, OutcomeRejected, "insufficient permits", nil)
	require.NoError(t, err)

	err = engine.SubmitFPReview(ctx, fpUser, req.ID, OutcomeApproved, "")
	assert.True(t, apperr.IsPrecondition(err))

	_, err = engine.SubmitLPReview(ctx, lpUser, req.ID, OutcomeApproved, "", nil)
	assert.True(t, apperr.IsPrecondition(err))

	err = engine.AssignFundPreparer(ctx, analyst, req.ID, fpUser.ID)
	assert.True(t, apperr.IsPrecondition(err))
}

func TestNeedsRevisionAllowsFurtherReviews(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	req, err := engine.OpenRequest(ctx, analyst, 1, LevelV2)
	require.NoError(t, err)
	require.NoError(t, engine.AssignFundPreparer(ctx, analyst, req.ID, fpUser.ID))
	require.NoError(t, engine.AssignLeadPartner(ctx, analyst, req.ID, lpUser.ID))
	require.NoError(t, engine.SubmitFPReview(ctx, fpUser, req.ID, OutcomeApproved, ""))

	updated, err := engine.SubmitLPReview(ctx, lpUser, req.ID, OutcomeNeedsRevision, "missing permits", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsRevision, updated.Status)
	assert.Nil(t, updated.CompletedAt)

	// The request is still open for another round.
	require.NoError(t, engine.SubmitFPReview(ctx, fpUser, req.ID, OutcomeApproved, "revised"))
	final, err := engine.SubmitLPReview(ctx, lpUser, req.ID, OutcomeApproved, "", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, final.Status)
}

func TestLPReviewRejectsOutOfRangeScores(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	req, err := engine.OpenRequest(ctx, analyst, 1, LevelV3)
	require.NoError(t, err)
	require.NoError(t, engine.AssignFundPreparer(ctx, analyst, req.ID, fpUser.ID))
	require.NoError(t, engine.AssignLeadPartner(ctx, analyst, req.ID, lpUser.ID))
	require.NoError(t, engine.SubmitFPReview(ctx, fpUser, req.ID, OutcomeApproved, ""))

	_, err = engine.SubmitLPReview(ctx, lpUser, req.ID, OutcomeApproved, "", &Scores{Technical: score(101)})
	assert.True(t, apperr.IsValidation(err))
}

func TestConcurrentLPReviewsExactlyOneWins(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	req, err := engine.OpenRequest(ctx, analyst, 1, LevelV3)
	require.NoError(t, err)
	require.NoError(t, engine.AssignFundPreparer(ctx, analyst, req.ID, fpUser.ID))
	require.NoError(t, engine.AssignLeadPartner(ctx, analyst, req.ID, lpUser.ID))
	require.NoError(t, engine.SubmitFPReview(ctx, fpUser, req.ID, OutcomeApproved, ""))

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.SubmitLPReview(ctx, lpUser, req.ID, OutcomeApproved, "", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		// The loser sees a version conflict, or a terminal guard if it
		// read after the winner committed.
		assert.True(t, apperr.IsConflict(err) || apperr.IsPrecondition(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

func TestAttachDocumentAppendsToSubmittedList(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()

	req, err := engine.OpenRequest(ctx, analyst, 1, LevelV1)
	require.NoError(t, err)

	doc, err := engine.AttachDocument(ctx, analyst, req.ID, "registration.pdf", "company_registration", "s3://docs/registration.pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ContentHash)
	assert.Equal(t, DocStatusPending, doc.Status)

	stored, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, stored.SubmittedDocuments, 1)
	assert.Equal(t, int64(doc.ID), stored.SubmittedDocuments[0])
}

func TestAnalyzeDocumentStoresAdvisoryPayload(t *testing.T) {
	engine, repo := newTestEngine(t)
	ctx := context.Background()

	req, err := engine.OpenRequest(ctx, analyst, 1, LevelV1)
	require.NoError(t, err)
	doc, err := engine.AttachDocument(ctx, analyst, req.ID, "ids.pdf", "director_ids", "s3://docs/ids.pdf")
	require.NoError(t, err)

	result, err := engine.AnalyzeDocument(ctx, analyst, req.ID, doc.ID, "risk")
	require.NoError(t, err)
	assert.Equal(t, analysis.KindRiskAnalysis, result.AnalysisType)

	stored, err := repo.GetDocument(ctx, req.ID, doc.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.AIAnalysis)
	assert.NotNil(t, stored.AIRiskScore)

	// Analysis never moves the request.
	after, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, after.Status)
}

func TestOpenRequestRequiresPermittedRole(t *testing.T) {
	engine, _ := newTestEngine(t)

	viewer := auth.Actor{ID: 99, Role: auth.RoleViewer}
	_, err := engine.OpenRequest(context.Background(), viewer, 1, LevelV1)
	assert.True(t, apperr.IsUnauthorized(err))
}
