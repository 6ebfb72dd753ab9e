package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sehatlog-server/internal/ai"
	"sehatlog-server/internal/config"
	"sehatlog-server/internal/models"
	"sehatlog-server/internal/pkg/logger"
	"sehatlog-server/internal/routes"
	"sehatlog-server/internal/services"
	"sehatlog-server/internal/storage"
)

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failAll bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Store(_ context.Context, data []byte, folder, key string) (storage.StoredObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return storage.StoredObject{}, fmt.Errorf("store unavailable")
	}
	fullKey := folder + "/" + key
	s.objects[fullKey] = data
	return storage.StoredObject{
		Key:    fullKey,
		URL:    "https://files.test/" + fullKey,
		Format: strings.TrimPrefix(key[strings.LastIndex(key, "."):], "."),
		Size:   int64(len(data)),
	}, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) SignedURL(key string, _ time.Duration) (string, error) {
	return "https://files.test/signed/" + key, nil
}

// fakeAI scripts one outcome per call, in order. When the script runs
// out it keeps returning the last entry.
type fakeAI struct {
	mu     sync.Mutex
	script []fakeAIOutcome
	calls  int
}

type fakeAIOutcome struct {
	result *ai.AnalysisResult
	err    error
}

func (f *fakeAI) Analyze(_ context.Context, _ ai.AnalysisRequest) (*ai.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	if idx < 0 {
		return structuredOutcome("Test summary").result, nil
	}
	out := f.script[idx]
	return out.result, out.err
}

func structuredOutcome(summary string) fakeAIOutcome {
	res := ai.ParseResponse(fmt.Sprintf(`{"summary":{"english":%q,"urdu":"Roman Urdu tafseel"},"confidence":90}`, summary))
	res.Model = "test-model"
	return fakeAIOutcome{result: res}
}

func failedOutcome() fakeAIOutcome {
	return fakeAIOutcome{err: &ai.APIError{StatusCode: 503, Message: "model unavailable"}}
}

// testEnv wires a router over an in-memory database with fake adapters.
type testEnv struct {
	router   *gin.Engine
	db       *gorm.DB
	store    *fakeStore
	aiClient *fakeAI
	analyzer *services.AnalysisService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := models.AutoMigrateAll(db); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	cfg := &config.Config{
		Environment:               "development",
		JWTSecret:                 "test-secret",
		JWTRefreshSecret:          "test-refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 168,
		Upload:                    config.UploadConfig{MaxFiles: 5, MaxFileBytes: 10 << 20},
		RateLimit:                 config.RateLimitConfig{Window: time.Minute, MaxRequests: 1000},
	}

	log := logger.NewNop()
	store := newFakeStore()
	aiClient := &fakeAI{}
	analyzer := services.NewAnalysisService(db, aiClient, log)

	router := gin.New()
	routes.SetupRoutes(router, db, cfg, routes.Deps{
		Store:    store,
		Analyzer: analyzer,
		Log:      log,
	})

	return &testEnv{router: router, db: db, store: store, aiClient: aiClient, analyzer: analyzer}
}

// perform runs one request against the test router.
func (e *testEnv) perform(method, path string, body io.Reader, token, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) performJSON(method, path string, payload interface{}, token string) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	}
	return e.perform(method, path, body, token, "application/json")
}

// registerUser creates an account and returns its access token and ID.
func (e *testEnv) registerUser(t *testing.T, email string) (token, userID string) {
	t.Helper()
	rec := e.performJSON(http.MethodPost, "/api/auth/register", map[string]string{
		"fullName": "Test User",
		"email":    email,
		"password": "strongpass123",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			AccessToken string `json:"accessToken"`
			User        struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad register response: %v", err)
	}
	if resp.Data.AccessToken == "" {
		t.Fatalf("empty access token in register response: %s", rec.Body.String())
	}
	return resp.Data.AccessToken, resp.Data.User.ID
}

// filePart describes one multipart file for uploadReport.
type filePart struct {
	name        string
	contentType string
	data        []byte
}

// uploadReport posts a multipart upload with the given files.
func (e *testEnv) uploadReport(t *testing.T, token string, fields map[string]string, files []filePart) *httptest.ResponseRecorder {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	for _, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.name))
		hdr.Set("Content-Type", f.contentType)
		w, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatalf("failed to create part: %v", err)
		}
		_, _ = w.Write(f.data)
	}
	_ = mw.Close()
	return e.perform(http.MethodPost, "/api/files/upload", buf, token, mw.FormDataContentType())
}

// envelope decodes the standard response envelope.
type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
		Total int64 `json:"total"`
		Pages int   `json:"pages"`
	} `json:"pagination"`
	Errors []string `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope: %v body=%s", err, rec.Body.String())
	}
	return env
}
