package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authrepository "github.com/chrisfit/storefront/internal/auth/repository"
	authservice "github.com/chrisfit/storefront/internal/auth/service"
	"github.com/chrisfit/storefront/internal/auth/session"
	"github.com/chrisfit/storefront/internal/authorization"
	"github.com/chrisfit/storefront/internal/catalog"
	"github.com/chrisfit/storefront/internal/clock"
	"github.com/chrisfit/storefront/internal/config"
	mediadomain "github.com/chrisfit/storefront/internal/media/domain"
	"github.com/chrisfit/storefront/internal/media/probe"
	mediarepository "github.com/chrisfit/storefront/internal/media/repository"
	mediaservice "github.com/chrisfit/storefront/internal/media/service"
	"github.com/chrisfit/storefront/internal/migration"
	productdomain "github.com/chrisfit/storefront/internal/product/domain"
	productrepository "github.com/chrisfit/storefront/internal/product/repository"
	productservice "github.com/chrisfit/storefront/internal/product/service"
	"github.com/chrisfit/storefront/internal/seed"
	"github.com/chrisfit/storefront/internal/storage"
	"github.com/chrisfit/storefront/pkg/db"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testAdminEmail    = "chris@chrisfit.id"
	testAdminPassword = "legging-secret"
)

type staticProber struct {
	duration time.Duration
}

func (p staticProber) Duration(context.Context, *mediadomain.PendingFile) (time.Duration, error) {
	return p.duration, nil
}

type testServer struct {
	engine *gin.Engine
	server *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))
	require.NoError(t, seed.EnsureAdmin(conn, seed.AdminParams{Email: testAdminEmail, Password: testAdminPassword}))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Now())
	log := zap.NewNop()

	userRepo, sessionRepo := authrepository.New(conn)
	authSvc := authservice.New(authservice.Params{Log: log, Repo: userRepo, SessionRepo: sessionRepo, GenID: node, Clock: fake})

	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	authzSvc := authorization.NewService(authorization.Params{DB: conn, Log: log, Enforcer: enforcer})

	store := storage.NewLocal(afero.NewMemMapFs(), storage.LocalMediaRoute)
	productRepo := productrepository.Provide()
	mediaRepo := mediarepository.Provide()
	reconciler := mediaservice.NewReconciler(mediaservice.Params{
		DB:          conn,
		Log:         log,
		GenID:       node,
		Repo:        mediaRepo,
		Coordinator: mediaservice.NewCoordinator(log, store, fake, nil),
		Clock:       fake,
	})
	state := catalog.New(catalog.Params{DB: conn, Log: log, Repo: productRepo, MediaRepo: mediaRepo, Clock: fake})

	productSvc := productservice.New(productservice.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      productRepo,
		MediaRepo: mediaRepo,
		Media:     reconciler,
		Auth:      authSvc,
		Authz:     authzSvc,
		Catalog:   state,
		Clock:     fake,
	})

	holder := config.NewStaticMediaConfigHolder(config.DefaultMediaConfig())

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	srv := NewServer(ServerParams{
		Gin:        engine,
		Cfg:        config.Config{},
		Log:        log,
		Authsvc:    authSvc,
		Sessions:   session.NewManager(session.Params{Clock: fake}),
		AuthzSvc:   authzSvc,
		ProductSvc: productSvc,
		Catalog:    state,
		Validator:  probe.NewValidatorWithProber(holder, staticProber{duration: 12 * time.Second}),
		Storage:    store,
	})
	return &testServer{engine: engine, server: srv}
}

func (ts *testServer) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(t *testing.T) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(LoginRequest{Email: testAdminEmail, Password: testAdminPassword})
	w := ts.do(httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == session.DefaultCookieName {
			return cookie
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

type formFile struct {
	field       string
	name        string
	contentType string
	content     string
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, w.WriteField(key, value))
	}
	for _, f := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		header.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, target string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type productEnvelope struct {
	Data productdomain.Response `json:"data"`
}

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Error
}

func leggingFields() map[string]string {
	return map[string]string{
		"code":        "0007",
		"name":        "Legging X",
		"price":       "99,90",
		"sizes":       "M",
		"description": "Cintura alta",
	}
}

func TestLoginAndMe(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(jsonRequest(http.MethodPost, "/auth/login", LoginRequest{Email: testAdminEmail, Password: "wrong-password"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid email or password", decodeError(t, w).Message)

	cookie := ts.login(t)
	w = ts.do(httptest.NewRequest(http.MethodGet, "/auth/me", nil), cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var me struct {
		Metadata map[string]any `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, testAdminEmail, me.Metadata["email"])
	assert.Equal(t, true, me.Metadata["must_change_password"])

	w = ts.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), cookie)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/auth/me", nil), cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(multipartRequest(t, http.MethodPost, "/admin/products", leggingFields()))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "please log in", decodeError(t, w).Message)
}

func TestCreateProductWithSlots(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	w := ts.do(multipartRequest(t, http.MethodPost, "/admin/products", leggingFields(),
		formFile{field: "new_image_1", name: "front.jpg", contentType: "image/jpeg", content: "front"},
		formFile{field: "new_image_3", name: "back.png", contentType: "image/png", content: "back"},
	), cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created productEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "0007", created.Data.Code)
	assert.Equal(t, "99.9", created.Data.Price.String())
	assert.Equal(t, []string{"M"}, created.Data.Sizes)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/catalog/products/"+created.Data.ID, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var public productEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &public))
	require.Len(t, public.Data.Media, mediadomain.MaxSlots)
	require.NotNil(t, public.Data.Media[0])
	assert.Nil(t, public.Data.Media[1])
	require.NotNil(t, public.Data.Media[2])
	assert.Nil(t, public.Data.Media[3])
	assert.Nil(t, public.Data.Media[4])
	assert.Equal(t, 3, public.Data.Media[2].Position)

	w = ts.do(httptest.NewRequest(http.MethodGet, public.Data.Media[0].URL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "front", w.Body.String())

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/catalog/products?q=legging", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.Data.ID)
}

func TestUpdateKeepsMediaWhenOmitted(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	w := ts.do(multipartRequest(t, http.MethodPost, "/admin/products", leggingFields(),
		formFile{field: "new_image_2", name: "side.jpg", contentType: "image/jpeg", content: "side"},
	), cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created productEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	fields := leggingFields()
	fields["name"] = "Legging X Pro"
	w = ts.do(multipartRequest(t, http.MethodPut, "/admin/products/"+created.Data.ID, fields), cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated productEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Legging X Pro", updated.Data.Name)
	require.NotNil(t, updated.Data.Media[1])
	assert.Equal(t, created.Data.Media[1].URL, updated.Data.Media[1].URL)
}

func TestUpdateWithNewFileKeepsOtherSlots(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	w := ts.do(multipartRequest(t, http.MethodPost, "/admin/products", leggingFields(),
		formFile{field: "new_image_1", name: "front.jpg", contentType: "image/jpeg", content: "front"},
		formFile{field: "new_image_2", name: "side.jpg", contentType: "image/jpeg", content: "side"},
	), cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created productEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotNil(t, created.Data.Media[0])
	require.NotNil(t, created.Data.Media[1])

	w = ts.do(multipartRequest(t, http.MethodPut, "/admin/products/"+created.Data.ID, leggingFields(),
		formFile{field: "new_image_1", name: "front-v2.jpg", contentType: "image/jpeg", content: "front v2"},
	), cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated productEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	require.NotNil(t, updated.Data.Media[0])
	assert.Contains(t, updated.Data.Media[0].URL, "-front-v2.jpg")
	require.NotNil(t, updated.Data.Media[1])
	assert.Equal(t, created.Data.Media[1].URL, updated.Data.Media[1].URL)
}

func TestUpsertRejectsTooManyExistingImages(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	fields := leggingFields()
	fields["existing_images"] = `["a.jpg","b.jpg","c.jpg","d.jpg","e.jpg","f.jpg"]`
	w := ts.do(multipartRequest(t, http.MethodPost, "/admin/products", fields), cookie)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	payload := decodeError(t, w)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_media_count", payload.Errors[0].Code)
	assert.Equal(t, "media", payload.Errors[0].Field)
}

func TestCreateProductValidation(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	fields := leggingFields()
	fields["price"] = "abc"
	w := ts.do(multipartRequest(t, http.MethodPost, "/admin/products", fields), cookie)
	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_price", payload.Errors[0].Code)
	assert.Equal(t, "price", payload.Errors[0].Field)

	w = ts.do(multipartRequest(t, http.MethodPost, "/admin/products", leggingFields(),
		formFile{field: "new_image_1", name: "notes.txt", contentType: "text/plain", content: "x"},
	), cookie)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_media_type", decodeError(t, w).Errors[0].Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/catalog/products", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}

func TestPromoToggleRequiresPromoPrice(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	w := ts.do(multipartRequest(t, http.MethodPost, "/admin/products", leggingFields()), cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created productEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = ts.do(jsonRequest(http.MethodPost, "/admin/products/"+created.Data.ID+"/promo", toggleRequest{Value: boolPtr(true)}), cookie)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "promo_price_required", decodeError(t, w).Errors[0].Code)

	w = ts.do(jsonRequest(http.MethodPost, "/admin/products/"+created.Data.ID+"/featured", toggleRequest{Value: boolPtr(true)}), cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/catalog/featured", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.Data.ID)

	w = ts.do(jsonRequest(http.MethodPost, "/admin/products/"+created.Data.ID+"/active", map[string]any{}), cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	w := ts.do(multipartRequest(t, http.MethodPost, "/admin/products", leggingFields()), cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created productEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = ts.do(httptest.NewRequest(http.MethodDelete, "/admin/products/"+created.Data.ID, nil), cookie)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "confirmation_required", decodeError(t, w).Type)

	w = ts.do(httptest.NewRequest(http.MethodDelete, "/admin/products/"+created.Data.ID+"?confirm=true", nil), cookie)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/admin/products/"+created.Data.ID, nil), cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/catalog/products/"+created.Data.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateMedia(t *testing.T) {
	ts := newTestServer(t)
	cookie := ts.login(t)

	w := ts.do(multipartRequest(t, http.MethodPost, "/admin/media/validate", nil,
		formFile{field: "file", name: "clip.mp4", contentType: "video/mp4", content: "video"},
	), cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"data":{"type":"video","valid":true,"duration":12}}`, w.Body.String())

	w = ts.do(multipartRequest(t, http.MethodPost, "/admin/media/validate", nil,
		formFile{field: "file", name: "notes.txt", contentType: "text/plain", content: "x"},
	), cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(multipartRequest(t, http.MethodPost, "/admin/media/validate", nil), cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"upload", &productdomain.StageError{Op: "create", Stage: "reconcile", Err: &mediadomain.UploadError{Name: "a.jpg", Position: 2, Err: errors.New("bucket unavailable")}}, http.StatusBadGateway, "upload_error"},
		{"storage missing", mediadomain.ErrStorageNotConfigured, http.StatusBadGateway, "upload_error"},
		{"reconcile", &mediadomain.ReconcileError{Op: "insert", Err: errors.New("disk full")}, http.StatusBadGateway, "reconciliation_error"},
		{"persist", &productdomain.StageError{Op: "create", Stage: "persist", Err: errors.New("duplicate code")}, http.StatusInternalServerError, "product_error"},
		{"forbidden", authorization.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"not found", &productdomain.StageError{Op: "update", Stage: "validate", Err: productdomain.ErrNotFound}, http.StatusNotFound, "not_found"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
		})
	}

	_, payload := mapError(&productdomain.StageError{Op: "create", Stage: "persist", Err: errors.New("duplicate code")})
	assert.Equal(t, "duplicate code", payload.Message)
}

func TestValidationMessageUsesDetail(t *testing.T) {
	status, payload := mapError(fmt.Errorf("%w: video is 31.0 seconds long, the limit is 30 seconds", mediadomain.ErrVideoTooLong))
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "media", payload.Errors[0].Field)
	assert.Equal(t, "video is 31.0 seconds long, the limit is 30 seconds", payload.Errors[0].Message)
}

func TestParseHelpers(t *testing.T) {
	existing, err := parseExistingImages(`["a.jpg", null, "  c.jpg "]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "", "c.jpg"}, existing)

	_, err = parseExistingImages(`{"a": 1}`)
	assert.Error(t, err)

	assert.Equal(t, []string{"P", "M", "G"}, parseList([]string{"P, M", " G ", ""}))

	limit, err := parseLimit("500")
	require.NoError(t, err)
	assert.Equal(t, maxListLimit, limit)
	_, err = parseLimit("-1")
	assert.Error(t, err)
}

func boolPtr(v bool) *bool { return &v }
