package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/product-catalog/domain/job"
	"github.com/example/product-catalog/domain/notification"
	"github.com/example/product-catalog/modules/channel"
	"github.com/example/product-catalog/modules/database"
	"github.com/example/product-catalog/modules/photo"
	"github.com/example/product-catalog/modules/product"
	"github.com/example/product-catalog/modules/publisher"
	"github.com/example/product-catalog/modules/queue"
	"github.com/example/product-catalog/modules/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryPhotos struct {
	mu    sync.Mutex
	files map[string]*photo.Photo
}

func (p *memoryPhotos) Store(_ context.Context, filename string, data []byte, contentType string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[filename] = &photo.Photo{Filename: filename, ContentType: contentType, Data: data, Size: int64(len(data))}
	return filename, nil
}

func (p *memoryPhotos) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files)
}

func (p *memoryPhotos) Open(_ context.Context, filename string) (*photo.Photo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ph, ok := p.files[filename]
	if !ok {
		return nil, photo.ErrPhotoNotFound
	}
	return ph, nil
}

type testEnv struct {
	module        *APIModule
	users         *user.Service
	notifications *channel.Module
	queue         *queue.MemoryQueue
	jobs          *job.MemoryStore
	photos        *memoryPhotos
	adminToken    string
	visitorToken  string
	visitorID     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	tokenCfg := user.DefaultTokenConfig()
	tokenCfg.Secret = "test-secret"
	users := user.NewService(user.NewRepository(db), user.NewPasswordHasher(bcrypt.MinCost), user.NewTokenManager(tokenCfg))
	products := product.NewService(product.NewRepository(db), nil)
	notifications, err := channel.NewModule(channel.NewNotificationRepository(db), channel.NewLogMailer(), "noreply@example.com")
	require.NoError(t, err)

	q := queue.NewMemoryQueue()
	jobs := job.NewMemoryStore()
	photos := &memoryPhotos{files: map[string]*photo.Photo{}}

	cfg := DefaultConfig()
	cfg.RateLimit = 0
	cfg.SpecFilePath = "testdata/missing.pdf"

	m := NewModule(cfg, Services{
		Products:      products,
		Publisher:     publisher.NewScheduler(products, q, jobs),
		Users:         users,
		Notifications: notifications,
		Photos:        photos,
		Jobs:          jobs,
	})

	_, err = users.EnsureAdmin(ctx, "Admin", "admin@example.com", "password123")
	require.NoError(t, err)
	adminSession, err := users.Login(ctx, "admin@example.com", "password123")
	require.NoError(t, err)

	visitor, err := users.Register(ctx, "Visitor", "visitor@example.com", "password123")
	require.NoError(t, err)
	visitorSession, err := users.Login(ctx, "visitor@example.com", "password123")
	require.NoError(t, err)

	return &testEnv{
		module:        m,
		users:         users,
		notifications: notifications,
		queue:         q,
		jobs:          jobs,
		photos:        photos,
		adminToken:    adminSession.Token,
		visitorToken:  visitorSession.Token,
		visitorID:     visitor.ID,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.module.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (e *testEnv) createProduct(t *testing.T, body map[string]any) product.ProductResponse {
	t.Helper()
	resp, data := e.do(t, http.MethodPost, "/api/v1/products", body, e.adminToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var p product.ProductResponse
	require.NoError(t, json.Unmarshal(data, &p))
	return p
}

func TestCreateProduct_Authorization(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"name": "Lamp", "price": "10"}

	resp, _ := env.do(t, http.MethodPost, "/api/v1/products", body, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/products", body, "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/products", body, env.visitorToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateProduct_NormalizesPrice(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		price any
		cents int64
	}{
		{"123", 12300},
		{"1234", 123400},
		{123.45, 12345},
		{"0.5", 50},
	}
	for _, tt := range tests {
		p := env.createProduct(t, map[string]any{"name": "Lamp", "price": tt.price})
		assert.Equal(t, tt.cents, p.Price, "price %v", tt.price)
	}
}

func TestCreateProduct_Validation(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, http.MethodPost, "/api/v1/products", map[string]any{"name": "", "price": "abc"}, env.adminToken)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(data, &errResp))
	assert.Equal(t, "validation_failed", errResp.Error)
	assert.Contains(t, errResp.Fields, "name")
	assert.Contains(t, errResp.Fields, "price")
}

func TestProductVisibility(t *testing.T) {
	env := newTestEnv(t)
	past := time.Now().Add(-time.Hour).UTC()

	draft := env.createProduct(t, map[string]any{"name": "Draft", "price": "1"})
	live := env.createProduct(t, map[string]any{"name": "Live", "price": "2", "publish_at": past})

	resp, data := env.do(t, http.MethodGet, "/api/v1/products", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list product.ListProductsResponse
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Products, 1)
	assert.Equal(t, live.ID, list.Products[0].ID)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/products/"+draft.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/v1/products/"+draft.ID, nil, env.visitorToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data = env.do(t, http.MethodGet, "/api/v1/products/"+draft.ID, nil, env.adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var shown map[string]any
	require.NoError(t, json.Unmarshal(data, &shown))
	assert.NotContains(t, shown, "created_at")
	assert.Equal(t, float64(100), shown["price"])
}

func TestListProducts_Pagination(t *testing.T) {
	env := newTestEnv(t)
	past := time.Now().Add(-time.Hour).UTC()

	var ids []string
	for i := 0; i < 11; i++ {
		p := env.createProduct(t, map[string]any{"name": "P", "price": "1", "publish_at": past})
		ids = append(ids, p.ID)
	}

	_, data := env.do(t, http.MethodGet, "/api/v1/products?page=1", nil, "")
	var page1 product.ListProductsResponse
	require.NoError(t, json.Unmarshal(data, &page1))
	assert.Len(t, page1.Products, 10)
	assert.Equal(t, int64(11), page1.Total)
	for _, p := range page1.Products {
		assert.NotEqual(t, ids[10], p.ID)
	}

	_, data = env.do(t, http.MethodGet, "/api/v1/products?page=2", nil, "")
	var page2 product.ListProductsResponse
	require.NoError(t, json.Unmarshal(data, &page2))
	require.Len(t, page2.Products, 1)
	assert.Equal(t, ids[10], page2.Products[0].ID)
}

func TestPublishProduct(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createProduct(t, map[string]any{"name": "Draft", "price": "1"})

	resp, data := env.do(t, http.MethodPost, "/api/v1/products/"+draft.ID+"/publish", nil, env.adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var out PublishResponse
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Product published", out.Message)
	assert.True(t, out.Changed)

	_, data = env.do(t, http.MethodPost, "/api/v1/products/"+draft.ID+"/publish", nil, env.adminToken)
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Product already published", out.Message)
	assert.False(t, out.Changed)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/products/"+draft.ID, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/products/missing/publish", nil, env.adminToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublishProduct_Scheduled(t *testing.T) {
	env := newTestEnv(t)
	draft := env.createProduct(t, map[string]any{"name": "Draft", "price": "1"})
	at := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	resp, data := env.do(t, http.MethodPost, "/api/v1/products/"+draft.ID+"/publish?at="+at, nil, env.adminToken)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(data))
	var out ScheduleResponse
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 1, env.queue.Len())

	resp, data = env.do(t, http.MethodGet, "/api/v1/jobs/"+out.JobID, nil, env.adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var j job.Job
	require.NoError(t, json.Unmarshal(data, &j))
	assert.Equal(t, job.JobTypePublish, j.Type)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/jobs/"+out.JobID, nil, env.visitorToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/products/"+draft.ID+"/publish?at=tomorrow", nil, env.adminToken)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct(t, map[string]any{"name": "Lamp", "price": "1"})

	resp, data := env.do(t, http.MethodPut, "/api/v1/products/"+p.ID, map[string]any{"price": "2.5"}, env.adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var updated product.ProductResponse
	require.NoError(t, json.Unmarshal(data, &updated))
	assert.Equal(t, int64(250), updated.Price)
	assert.Equal(t, "Lamp", updated.Name)

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/products/"+p.ID, nil, env.adminToken)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/products/"+p.ID, nil, env.adminToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/v1/products/"+p.ID, nil, env.adminToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func (e *testEnv) sendForm(t *testing.T, method, path string, fields map[string]string, photoName, photoData string) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if photoName != "" {
		part, err := w.CreateFormFile("photo", photoName)
		require.NoError(t, err)
		_, err = part.Write([]byte(photoData))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.adminToken)
	return e.send(t, req)
}

func TestCreateProduct_MultipartPhoto(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.sendForm(t, http.MethodPost, "/api/v1/products", map[string]string{
		"name":       "Lamp",
		"price":      "19.99",
		"publish_at": time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
	}, "lamp.jpg", "jpeg-bytes")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	var p product.ProductResponse
	require.NoError(t, json.Unmarshal(data, &p))
	require.NotNil(t, p.Photo)
	assert.Equal(t, "lamp.jpg", *p.Photo)
	assert.Equal(t, int64(1999), p.Price)

	resp, data = env.do(t, http.MethodGet, "/api/v1/products/"+p.ID+"/photo", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestCreateProduct_InvalidFormDoesNotStorePhoto(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.sendForm(t, http.MethodPost, "/api/v1/products", map[string]string{
		"name":  "",
		"price": "-1",
	}, "lamp.jpg", "jpeg-bytes")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(data))

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(data, &errResp))
	assert.Contains(t, errResp.Fields, "name")
	assert.Contains(t, errResp.Fields, "price")
	assert.Equal(t, 0, env.photos.count())
}

func TestUpdateProduct_RejectedFormKeepsStoredPhoto(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.sendForm(t, http.MethodPost, "/api/v1/products",
		map[string]string{"name": "Lamp", "price": "10"}, "lamp.jpg", "original")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var p product.ProductResponse
	require.NoError(t, json.Unmarshal(data, &p))

	resp, data = env.sendForm(t, http.MethodPut, "/api/v1/products/"+p.ID,
		map[string]string{"price": "abc"}, "lamp.jpg", "replacement")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(data))

	resp, _ = env.sendForm(t, http.MethodPut, "/api/v1/products/does-not-exist",
		map[string]string{"price": "5"}, "other.jpg", "orphan")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	stored, err := env.photos.Open(context.Background(), "lamp.jpg")
	require.NoError(t, err)
	assert.Equal(t, "original", string(stored.Data))
	assert.Equal(t, 1, env.photos.count())
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, data := env.do(t, http.MethodPost, "/api/v1/register",
		RegisterRequest{Name: "New", Email: "new@example.com", Password: "password123"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, _ = env.do(t, http.MethodPost, "/api/v1/register",
		RegisterRequest{Name: "New", Email: "new@example.com", Password: "password123"}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, data = env.do(t, http.MethodPost, "/api/v1/register",
		RegisterRequest{Name: "New", Email: "bad", Password: "password123"}, "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(data, &errResp))
	assert.Contains(t, errResp.Fields, "email")

	resp, data = env.do(t, http.MethodPost, "/api/v1/login",
		LoginRequest{Email: "new@example.com", Password: "password123"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login user.LoginResponse
	require.NoError(t, json.Unmarshal(data, &login))
	assert.NotEmpty(t, login.AccessToken)
	assert.False(t, login.User.IsAdmin)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/login",
		LoginRequest{Email: "new@example.com", Password: "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var db notification.Channel
	for _, ch := range env.notifications.Channels() {
		if ch.Kind() == notification.ChannelDatabase {
			db = ch
		}
	}
	require.NotNil(t, db)
	require.NoError(t, db.Deliver(ctx, notification.Recipient{UserID: env.visitorID, Email: "visitor@example.com"},
		notification.EventUserRegistered, json.RawMessage(`{"id":"u2"}`)))

	resp, _ := env.do(t, http.MethodGet, "/api/v1/notifications", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, data := env.do(t, http.MethodGet, "/api/v1/notifications", nil, env.visitorToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list channel.ListNotificationsResponse
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, int64(1), list.Unread)

	id := list.Notifications[0].ID
	resp, _ = env.do(t, http.MethodPost, "/api/v1/notifications/"+id+"/read", nil, env.adminToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data = env.do(t, http.MethodPost, "/api/v1/notifications/"+id+"/read", nil, env.visitorToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var read channel.NotificationResponse
	require.NoError(t, json.Unmarshal(data, &read))
	assert.True(t, read.Read)
}

func TestDownload_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/download", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
