package dataroom

import (
	"context"
	"encoding/base64"
	"io"
	"sync"
	"testing"
	"time"

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

type fakeRepository struct {
	mu         sync.Mutex
	rooms      map[uint]*DataRoom
	folders    map[uint]*Folder
	documents  map[uint]*Document
	accesses   map[uint]*Access
	activities []Activity
	history    []audit.Entry
	projects   map[uint]bool
	users      map[uint]bool
	nextID     uint
	nextSeq    uint64
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		rooms:     make(map[uint]*DataRoom),
		folders:   make(map[uint]*Folder),
		documents: make(map[uint]*Document),
		accesses:  make(map[uint]*Access),
		projects:  map[uint]bool{1: true},
		users:     map[uint]bool{1: true, 2: true, 3: true},
	}
}

func (f *fakeRepository) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeRepository) appendEntryLocked(roomID uint, entry *audit.Entry) {
	f.nextSeq++
	entry.Seq = f.nextSeq
	entry.EntityType = audit.EntityDataRoom
	entry.EntityID = roomID
	f.history = append(f.history, *entry)
}

func (f *fakeRepository) CreateRoom(_ context.Context, room *DataRoom, folders []Folder, entry *audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	room.ID = f.id()
	stored := *room
	f.rooms[room.ID] = &stored
	for i := range folders {
		folders[i].ID = f.id()
		folders[i].DataRoomID = room.ID
		copied := folders[i]
		f.folders[copied.ID] = &copied
	}
	f.appendEntryLocked(room.ID, entry)
	return nil
}

func (f *fakeRepository) GetRoom(_ context.Context, id uint) (*DataRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, apperr.NotFound("data room not found")
	}
	out := *room
	return &out, nil
}

func (f *fakeRepository) ListRooms(_ context.Context, projectID *uint) ([]DataRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []DataRoom
	for _, room := range f.rooms {
		if projectID != nil && room.ProjectID != *projectID {
			continue
		}
		out = append(out, *room)
	}
	return out, nil
}

func (f *fakeRepository) CreateFolder(_ context.Context, folder *Folder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder.ID = f.id()
	stored := *folder
	f.folders[folder.ID] = &stored
	return nil
}

func (f *fakeRepository) ListFolders(_ context.Context, roomID uint) ([]Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Folder
	for _, folder := range f.folders {
		if folder.DataRoomID == roomID {
			out = append(out, *folder)
		}
	}
	return out, nil
}

func (f *fakeRepository) CreateDocument(_ context.Context, doc *Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc.ID = f.id()
	stored := *doc
	f.documents[doc.ID] = &stored
	return nil
}

func (f *fakeRepository) SupersedeDocument(_ context.Context, doc *Document, priorID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prior, ok := f.documents[priorID]
	if !ok || !prior.IsLatest {
		return apperr.Conflict("document version was superseded concurrently")
	}
	prior.IsLatest = false
	doc.ID = f.id()
	stored := *doc
	f.documents[doc.ID] = &stored
	return nil
}

func (f *fakeRepository) GetDocument(_ context.Context, roomID, documentID uint) (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok || doc.DataRoomID != roomID {
		return nil, apperr.NotFound("document not found")
	}
	out := *doc
	return &out, nil
}

func (f *fakeRepository) ListDocuments(_ context.Context, roomID uint, latestOnly bool) ([]Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Document
	for _, doc := range f.documents {
		if doc.DataRoomID != roomID {
			continue
		}
		if latestOnly && !doc.IsLatest {
			continue
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (f *fakeRepository) UpdateDocument(_ context.Context, doc *Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *doc
	f.documents[doc.ID] = &stored
	return nil
}

func (f *fakeRepository) DeleteDocument(_ context.Context, roomID, documentID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[documentID]
	if !ok || doc.DataRoomID != roomID {
		return apperr.NotFound("document not found")
	}
	delete(f.documents, documentID)
	return nil
}

func (f *fakeRepository) CreateAccess(_ context.Context, access *Access, entry *audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	access.ID = f.id()
	stored := *access
	f.accesses[access.ID] = &stored
	f.appendEntryLocked(access.DataRoomID, entry)
	return nil
}

func (f *fakeRepository) GetAccess(_ context.Context, roomID, accessID uint) (*Access, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	access, ok := f.accesses[accessID]
	if !ok || access.DataRoomID != roomID {
		return nil, apperr.NotFound("access grant not found")
	}
	out := *access
	return &out, nil
}

func (f *fakeRepository) ListAccess(_ context.Context, roomID uint) ([]Access, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Access
	for _, access := range f.accesses {
		if access.DataRoomID == roomID {
			out = append(out, *access)
		}
	}
	return out, nil
}

func (f *fakeRepository) FindAccessByUser(_ context.Context, roomID, userID uint) (*Access, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, access := range f.accesses {
		if access.DataRoomID == roomID && access.UserID == userID {
			out := *access
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) UpdateAccess(_ context.Context, access *Access, expectedVersion uint, entry *audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.accesses[access.ID]
	if !ok {
		return apperr.NotFound("access grant not found")
	}
	if stored.LockVersion != expectedVersion {
		return apperr.Conflict("access grant was modified concurrently")
	}
	updated := *access
	updated.LockVersion = expectedVersion + 1
	f.accesses[access.ID] = &updated
	access.LockVersion = updated.LockVersion
	if entry != nil {
		f.appendEntryLocked(access.DataRoomID, entry)
	}
	return nil
}

func (f *fakeRepository) RecordActivity(_ context.Context, activity *Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	activity.ID = f.id()
	activity.CreatedAt = time.Now()
	f.activities = append(f.activities, *activity)
	if activity.DocumentID != nil {
		if doc, ok := f.documents[*activity.DocumentID]; ok {
			if activity.ActivityType == ActivityDownload {
				doc.DownloadCount++
			} else {
				doc.ViewCount++
			}
		}
	}
	return nil
}

func (f *fakeRepository) ListActivity(_ context.Context, roomID uint, filter ActivityFilter) ([]Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Activity
	for _, a := range f.activities {
		if a.DataRoomID != roomID {
			continue
		}
		if filter.UserID != nil && a.UserID != *filter.UserID {
			continue
		}
		if filter.ActivityType != nil && a.ActivityType != *filter.ActivityType {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeRepository) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, access := range f.accesses {
		if access.NDAStatus == NDASigned && access.NDAExpiresAt != nil && access.NDAExpiresAt.Before(now) {
			access.NDAStatus = NDAExpired
			access.LockVersion++
			n++
		}
	}
	return n, nil
}

func (f *fakeRepository) History(_ context.Context, roomID uint) ([]audit.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []audit.Entry
	for i := len(f.history) - 1; i >= 0; i-- {
		if f.history[i].EntityID == roomID {
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

type fakeBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Upload(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = data
	return key, nil
}

func (f *fakeBlobStore) Download(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, apperr.NotFound("object %s not found", key)
	}
	return data, nil
}

func (f *fakeBlobStore) PresignGet(_ context.Context, key string) (string, error) {
	return "https://files.test/" + key, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	return nil
}

var (
	creator = auth.Actor{ID: 1, Role: auth.RoleSponsor}
	grantee = auth.Actor{ID: 2, Role: auth.RoleInvestor}
)

func newTestService(t *testing.T) (*Service, *fakeRepository) {
	service, repo, _ := newTestServiceWithStore(t, nil)
	return service, repo
}

func newTestServiceWithStore(t *testing.T, store BlobStore) (*Service, *fakeRepository, BlobStore) {
	t.Helper()
	repo := newFakeRepository()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	logger := zap.NewNop()
	service := NewService(repo, auth.DefaultPolicy(),
		attestation.NewService(cfg.Attestation, logger),
		analysis.NewService(logger), store,
		cfg.DataRoom, logger)
	return service, repo, store
}

func createTestRoom(t *testing.T, s *Service, requireNDA bool) *DataRoom {
	t.Helper()
	room, err := s.CreateRoom(context.Background(), creator, 1, CreateRoomInput{
		Name:       "Project Alpha Data Room",
		RequireNDA: requireNDA,
	})
	require.NoError(t, err)
	return room
}

func TestCreateRoomSeedsDefaultFolders(t *testing.T) {
	service, _ := newTestService(t)

	room := createTestRoom(t, service, false)
	folders, err := service.Folders(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Len(t, folders, 5)

	names := make(map[string]bool)
	for _, f := range folders {
		names[f.Name] = true
	}
	assert.True(t, names["Financial Documents"])
	assert.True(t, names["Legal Documents"])
	assert.True(t, names["Miscellaneous"])
}

func TestGrantAccessIdempotentPerUser(t *testing.T) {
	service, repo := newTestService(t)
	ctx := context.Background()
	room := createTestRoom(t, service, false)

	first, err := service.GrantAccess(ctx, creator, room.ID, GrantInput{UserID: 2, AccessLevel: AccessViewOnly})
	require.NoError(t, err)

	second, err := service.GrantAccess(ctx, creator, room.ID, GrantInput{UserID: 2, AccessLevel: AccessFull})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, AccessFull, second.AccessLevel)

	count := 0
	for _, a := range repo.accesses {
		if a.DataRoomID == room.ID && a.UserID == 2 {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestGrantAccessCreatorOnly(t *testing.T) {
	service, _ := newTestService(t)
	room := createTestRoom(t, service, false)

	_, err := service.GrantAccess(context.Background(), grantee, room.ID, GrantInput{UserID: 3, AccessLevel: AccessViewOnly})
	assert.True(t, apperr.IsUnauthorized(err))
}

func TestRegrantClearsRevocation(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	room := createTestRoom(t, service, false)

	access, err := service.GrantAccess(ctx, creator, room.ID, GrantInput{UserID: 2, AccessLevel: AccessViewOnly})
	require.NoError(t, err)
	require.NoError(t, service.RevokeAccess(ctx, creator, room.ID, access.ID, "deal paused"))

	regranted, err := service.GrantAccess(ctx, creator, room.ID, GrantInput{UserID: 2, AccessLevel: AccessLimited})
	require.NoError(t, err)
	assert.Nil(t, regranted.AccessRevokedAt)
	assert.Nil(t, regranted.RevokeReason)
	assert.True(t, IsAccessValid(regranted, room, time.Now()))
}

func TestSignNDATwiceConflicts(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	room := createTestRoom(t, service, true)

	access, err := service.GrantAccess(ctx, creator, room.ID, GrantInput{UserID: 2, AccessLevel: AccessViewOnly})
	require.NoError(t, err)
	assert.Equal(t, NDAPending, access.NDAStatus)

	signed, err := service.SignNDA(ctx, grantee, room.ID, access.ID, SignNDAInput{ClientIP: "203.0.113.7"})
	require.NoError(t, err)
	assert.Equal(t, NDASigned, signed.NDAStatus)
	require.NotNil(t, signed.NDAExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 365), *signed.NDAExpiresAt, time.Minute)

	_, err = service.SignNDA(ctx, grantee, room.ID, access.ID, SignNDAInput{})
	assert.True(t, apperr.IsConflict(err))
}

func TestSignNDAWrongOwnerLooksNotFound(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	room := createTestRoom(t, service, true)

	access, err := service.GrantAccess(ctx, creator, room.ID, GrantInput{UserID: 2, AccessLevel: AccessViewOnly})
	require.NoError(t, err)

	other := auth.Actor{ID: 3, Role: auth.RoleInvestor}
	_, err = service.SignNDA(ctx, other, room.ID, access.ID, SignNDAInput{})
	assert.True(t, apperr.IsNotFound(err))
}

func TestIsAccessValidTruthTable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	roomNDA := &DataRoom{RequireNDA: true}
	roomOpen := &DataRoom{RequireNDA: false}

	cases := []struct {
		name   string
		access *Access
		room   *DataRoom
		want   bool
	}{
		{"nil access", nil, roomOpen, false},
		{"plain valid", &Access{}, roomOpen, true},
		{"revoked wins over everything", &Access{AccessRevokedAt: &past, NDAStatus: NDASigned, NDAExpiresAt: &future}, roomNDA, false},
		{"expired grant", &Access{AccessExpiresAt: &past}, roomOpen, false},
		{"future expiry ok", &Access{AccessExpiresAt: &future}, roomOpen, true},
		{"nda required unsigned", &Access{NDAStatus: NDAPending}, roomNDA, false},
		{"nda signed unexpired", &Access{NDAStatus: NDASigned, NDAExpiresAt: &future}, roomNDA, true},
		{"nda signed but expired", &Access{NDAStatus: NDASigned, NDAExpiresAt: &past}, roomNDA, false},
		{"nda signed missing expiry", &Access{NDAStatus: NDASigned}, roomNDA, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsAccessValid(tc.access, tc.room, now))
		})
	}
}

func TestRevokedUserCannotRecordViews(t *testing.T) {
	service, repo := newTestService(t)
	ctx := context.Background()
	room := createTestRoom(t, service, false)

	doc, err := service.UploadDocument(ctx, creator, room.ID, UploadDocumentInput{Title: "Teaser", FileRef: "rooms/1/teaser.pdf"})
	require.NoError(t, err)

	access, err := service.GrantAccess(ctx, creator, room.ID, GrantInput{UserID: 2, AccessLevel: AccessViewOnly})
	require.NoError(t, err)

	require.NoError(t, service.RecordView(ctx, grantee, room.ID, doc.ID, "203.0.113.7", "test-agent"))

	require.NoError(t, service.RevokeAccess(ctx, creator, room.ID, access.ID, "deal closed"))
	err = service.RecordView(ctx, grantee, room.ID, doc.ID, "203.0.113.7", "test-agent")
	assert.True(t, apperr.IsUnauthorized(err))

	// Revocation keeps the row and its attribution.
	stored, getErr := repo.GetAccess(ctx, room.ID, access.ID)
	require.NoError(t, getErr)
	assert.NotNil(t, stored.AccessRevokedAt)
}

func TestDownloadRespectsRoomPolicy(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	noDownloads := false
	room, err := service.CreateRoom(ctx, creator, 1, CreateRoomInput{
		Name:          "Restricted Room",
		AllowDownload: &noDownloads,
	})
	require.NoError(t, err)
	doc, err := service.UploadDocument(ctx, creator, room.ID, UploadDocumentInput{Title: "Model", FileRef: "rooms/2/model.xlsx"})
	require.NoError(t, err)

	_, err = service.RecordDownload(ctx, creator, room.ID, doc.ID, "", "")
	assert.True(t, apperr.IsPrecondition(err))
}

func TestDocumentVersioningKeepsSingleLatest(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	room := createTestRoom(t, service, false)

	v1, err := service.UploadDocument(ctx, creator, room.ID, UploadDocumentInput{Title: "Model", FileRef: "rooms/1/model-v1.xlsx"})
	require.NoError(t, err)

	v2, err := service.UploadDocument(ctx, creator, room.ID, UploadDocumentInput{Title: "Model", FileRef: "rooms/1/model-v2.xlsx", SupersedesID: &v1.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	latest, err := service.Documents(ctx, room.ID, true)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, v2.ID, latest[0].ID)

	all, err := service.Documents(ctx, room.ID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSweepExpiresOverdueNDAs(t *testing.T) {
	service, repo := newTestService(t)
	ctx := context.Background()
	room := createTestRoom(t, service, true)

	access, err := service.GrantAccess(ctx, creator, room.ID, GrantInput{UserID: 2, AccessLevel: AccessViewOnly})
	require.NoError(t, err)
	_, err = service.SignNDA(ctx, grantee, room.ID, access.ID, SignNDAInput{})
	require.NoError(t, err)

	// Backdate the NDA expiry.
	repo.mu.Lock()
	past := time.Now().Add(-time.Hour)
	repo.accesses[access.ID].NDAExpiresAt = &past
	repo.mu.Unlock()

	n, err := service.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := repo.GetAccess(ctx, room.ID, access.ID)
	require.NoError(t, err)
	assert.Equal(t, NDAExpired, stored.NDAStatus)
}

func TestListAccessScopedToCaller(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	room := createTestRoom(t, service, false)

	mine, err := service.GrantAccess(ctx, creator, room.ID, GrantInput{UserID: 2, AccessLevel: AccessViewOnly})
	require.NoError(t, err)
	_, err = service.GrantAccess(ctx, creator, room.ID, GrantInput{UserID: 3, AccessLevel: AccessFull})
	require.NoError(t, err)

	all, err := service.ListAccess(ctx, creator, room.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := service.ListAccess(ctx, grantee, room.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)
	assert.Equal(t, grantee.ID, own[0].UserID)

	stranger := auth.Actor{ID: 9, Role: auth.RoleInvestor}
	none, err := service.ListAccess(ctx, stranger, room.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUploadWithContentStoresFileBytes(t *testing.T) {
	store := newFakeBlobStore()
	service, _, _ := newTestServiceWithStore(t, store)
	ctx := context.Background()
	room := createTestRoom(t, service, false)

	raw := []byte("quarterly financial model")
	doc, err := service.UploadDocument(ctx, creator, room.ID, UploadDocumentInput{
		Title:   "Model",
		FileRef: "rooms/1/model.xlsx",
		Content: base64.StdEncoding.EncodeToString(raw),
	})
	require.NoError(t, err)

	assert.Equal(t, attestation.HashContent(raw), doc.ContentHash)
	assert.Equal(t, raw, store.blobs["rooms/1/model.xlsx"])

	_, err = service.UploadDocument(ctx, creator, room.ID, UploadDocumentInput{
		Title:   "Broken",
		FileRef: "rooms/1/broken.bin",
		Content: "not-base64!!!",
	})
	assert.True(t, apperr.IsValidation(err))
}

func TestFetchDocumentReturnsStoredBytes(t *testing.T) {
	store := newFakeBlobStore()
	service, repo, _ := newTestServiceWithStore(t, store)
	ctx := context.Background()
	room := createTestRoom(t, service, false)

	raw := []byte("teaser deck")
	doc, err := service.UploadDocument(ctx, creator, room.ID, UploadDocumentInput{
		Title:   "Teaser",
		FileRef: "rooms/1/teaser.pdf",
		Content: base64.StdEncoding.EncodeToString(raw),
	})
	require.NoError(t, err)

	fetched, data, err := service.FetchDocument(ctx, creator, room.ID, doc.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, fetched.ID)
	assert.Equal(t, raw, data)

	// The fetch counts as a download.
	stored, err := repo.GetDocument(ctx, room.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.DownloadCount)
}

func TestFetchDocumentWithoutStorage(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	room := createTestRoom(t, service, false)

	doc, err := service.UploadDocument(ctx, creator, room.ID, UploadDocumentInput{Title: "Teaser", FileRef: "external/teaser.pdf"})
	require.NoError(t, err)

	_, _, err = service.FetchDocument(ctx, creator, room.ID, doc.ID, "", "")
	assert.True(t, apperr.IsPrecondition(err))
}

func TestDeleteDocumentRemovesStoredFile(t *testing.T) {
	store := newFakeBlobStore()
	service, _, _ := newTestServiceWithStore(t, store)
	ctx := context.Background()
	room := createTestRoom(t, service, false)

	doc, err := service.UploadDocument(ctx, creator, room.ID, UploadDocumentInput{
		Title:   "Drafts",
		FileRef: "rooms/1/drafts.docx",
		Content: base64.StdEncoding.EncodeToString([]byte("draft body")),
	})
	require.NoError(t, err)

	err = service.DeleteDocument(ctx, grantee, room.ID, doc.ID)
	assert.True(t, apperr.IsUnauthorized(err))

	require.NoError(t, service.DeleteDocument(ctx, creator, room.ID, doc.ID))
	_, err = service.Documents(ctx, room.ID, false)
	require.NoError(t, err)
	_, exists := store.blobs["rooms/1/drafts.docx"]
	assert.False(t, exists)

	err = service.DeleteDocument(ctx, creator, room.ID, doc.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestAnalyzeDocumentRequiresValidAccess(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	room := createTestRoom(t, service, false)

	doc, err := service.UploadDocument(ctx, creator, room.ID, UploadDocumentInput{Title: "SPA", FileRef: "rooms/1/spa.pdf"})
	require.NoError(t, err)

	_, err = service.AnalyzeDocument(ctx, grantee, room.ID, doc.ID, "risk")
	assert.True(t, apperr.IsUnauthorized(err))

	access, err := service.GrantAccess(ctx, creator, room.ID, GrantInput{UserID: 2, AccessLevel: AccessViewOnly})
	require.NoError(t, err)

	result, err := service.AnalyzeDocument(ctx, grantee, room.ID, doc.ID, "risk")
	require.NoError(t, err)
	assert.Equal(t, analysis.KindRiskAnalysis, result.AnalysisType)

	require.NoError(t, service.RevokeAccess(ctx, creator, room.ID, access.ID, "deal closed"))
	_, err = service.AnalyzeDocument(ctx, grantee, room.ID, doc.ID, "risk")
	assert.True(t, apperr.IsUnauthorized(err))
}
