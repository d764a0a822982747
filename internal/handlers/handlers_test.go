package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"marrowai-server/internal/ingest"
	"marrowai-server/internal/middleware"
	"marrowai-server/internal/models"
	"marrowai-server/internal/store"
	"marrowai-server/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testUser = "user-1"

// newRouter returns an engine whose requests are authenticated as userID
// when it is non-empty.
func newRouter(userID string) *gin.Engine {
	r := gin.New()
	if userID != "" {
		r.Use(func(c *gin.Context) { middleware.SetUserID(c, userID) })
	}
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// envelope decodes the standard response, unmarshalling data into out when given.
func envelope(t *testing.T, w *httptest.ResponseRecorder, out interface{}) utils.ResponseData {
	t.Helper()
	var raw struct {
		utils.ResponseData
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(raw.Data, out), string(raw.Data))
	}
	return raw.ResponseData
}

type memoryUsers struct {
	mu     sync.Mutex
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
	err    error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]*models.User{}, tokens: map[string]*models.RefreshToken{}}
}

func (m *memoryUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return store.ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = fmt.Sprintf("user-%d", len(m.users)+1)
	}
	u.CreatedAt = time.Now()
	copied := *u
	m.users[u.ID] = &copied
	return nil
}

func (m *memoryUsers) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memoryUsers) UserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memoryUsers) SaveRefreshToken(_ context.Context, t *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *t
	m.tokens[t.Token] = &copied
	return nil
}

func (m *memoryUsers) UsableRefreshToken(_ context.Context, token, userID string, now time.Time) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok || t.UserID != userID || !t.Usable(now) {
		return nil, store.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *memoryUsers) ClaimRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok || t.IsRevoked {
		return store.ErrNotFound
	}
	t.IsRevoked = true
	return nil
}

func (m *memoryUsers) RevokeRefreshToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[token]; ok {
		t.IsRevoked = true
	}
	return nil
}

type memoryReports struct {
	reports map[string]*models.MedicalReport
	err     error
}

func (m *memoryReports) Report(_ context.Context, userID, id string) (*models.MedicalReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.reports[id]
	if !ok || r.UserID != userID {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (m *memoryReports) Reports(_ context.Context, userID, _ string) ([]models.MedicalReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []models.MedicalReport{}
	for _, r := range m.reports {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadDate.After(out[j].UploadDate) })
	return out, nil
}

func (m *memoryReports) DeleteReport(_ context.Context, userID, id string) error {
	r, ok := m.reports[id]
	if !ok || r.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.reports, id)
	return nil
}

type memoryEntries struct {
	entries []models.HealthEntry
	calls   int
	err     error
}

func (m *memoryEntries) CreateEntry(_ context.Context, e *models.HealthEntry) error {
	if m.err != nil {
		return m.err
	}
	e.ID = fmt.Sprintf("entry-%d", len(m.entries)+1)
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memoryEntries) Entries(_ context.Context, userID string) ([]models.HealthEntry, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := []models.HealthEntry{}
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubIngestor struct {
	uploads  []ingest.Upload
	report   *models.MedicalReport
	err      error
	analyzed []string
}

func (s *stubIngestor) Run(_ context.Context, up ingest.Upload) (*models.MedicalReport, error) {
	s.uploads = append(s.uploads, up)
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func (s *stubIngestor) Analyze(_ context.Context, _ string, reportID string) (*models.MedicalReport, error) {
	s.analyzed = append(s.analyzed, reportID)
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

type stubAnalyzer struct {
	result *models.AIInsights
	err    error
}

func (s stubAnalyzer) Analyze(context.Context, string) (*models.AIInsights, error) {
	return s.result, s.err
}

type recordingBlobs struct {
	deleted []string
}

func (b *recordingBlobs) Put(context.Context, string, string, []byte, string) (string, error) {
	return "", nil
}

func (b *recordingBlobs) Delete(_ context.Context, key string) error {
	b.deleted = append(b.deleted, key)
	return nil
}

func newRequestWithCookie(method, path, name, value string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.AddCookie(&http.Cookie{Name: name, Value: value})
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
