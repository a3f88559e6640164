package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/product-registry/internal/auth"
	"github.com/sakif/product-registry/internal/model"
	"github.com/sakif/product-registry/internal/repository/gormdb"
	"github.com/sakif/product-registry/internal/service"
	"github.com/sakif/product-registry/internal/storage"
)

const testPassword = "correct horse"

// fakeUploader records what it was given and returns a fixed URL.
type fakeUploader struct {
	got  storage.Object
	body string
	err  error
}

func (f *fakeUploader) Upload(ctx context.Context, obj storage.Object) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(obj.Body)
	f.got, f.body = obj, string(b)
	return "http://minio.local/pcc-staging/abc-" + storage.SanitizeName(obj.Name), nil
}

type testEnv struct {
	router   http.Handler
	db       *gormdb.DB
	tokens   *auth.TokenService
	uploader *fakeUploader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gormdb.New(":memory:", gormdb.WithHasher(auth.NewPasswordServiceForTest()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour, 24*time.Hour)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authService := service.NewAuthService(db.Users(), tokens, auth.NewPasswordServiceForTest(), logger)
	productService := service.NewProductService(db.Products(), logger)
	uploader := &fakeUploader{}

	r := chi.NewRouter()
	r.Mount("/products", NewProductHandler(productService, logger).Routes())
	r.Mount("/users", NewUserHandler(authService, logger).Routes(auth.RequireAuth(tokens)))
	r.Post("/upload/img", NewUploadHandler(uploader, 1<<10, logger).HandleUploadImage)
	r.Get("/healthcheck/", NewHealthHandler(db).HandleHealth)
	r.Get("/readyz", NewHealthHandler(db).HandleReady)

	return &testEnv{router: r, db: db, tokens: tokens, uploader: uploader}
}

// do sends body (marshalled unless it is already a string) and returns the
// recorded response. Extra headers come in key/value pairs.
func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createUser(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{Nom: "Martin", Prenom: "Claire", Email: email, Role: role}
	require.NoError(t, e.db.Users().Create(context.Background(), u, testPassword))
	return u
}

func (e *testEnv) bearer(t *testing.T, u *model.User) []string {
	t.Helper()
	tok, err := e.tokens.CreateAccessToken(u.ID.String())
	require.NoError(t, err)
	return []string{"Authorization", "Bearer " + tok}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
