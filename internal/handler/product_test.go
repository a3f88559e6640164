package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/product-registry/internal/model"
)

func productBody(mairie *model.User, extra map[string]any) map[string]any {
	body := map[string]any{
		"title":          "Vélo enfant",
		"description":    "Vélo 16 pouces, bon état",
		"productIssue":   "Pneu crevé",
		"marque":         "Decathlon",
		"status":         "en_attente",
		"mairie_user_id": mairie.ID.String(),
		"photos":         []string{"http://minio.local/pcc-staging/a.jpg"},
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

func (e *testEnv) createProduct(t *testing.T, mairie *model.User, extra map[string]any) ProductDetail {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/products/", productBody(mairie, extra))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]ProductDetail](t, rec)["product"]
}

func TestProductHandler_Create(t *testing.T) {
	env := newTestEnv(t)
	mairie := env.createUser(t, "mairie@lyon.fr", model.RoleMairie)
	owner := env.createUser(t, "claire@example.com", model.RoleParticulier)

	p := env.createProduct(t, mairie, map[string]any{"user_id": owner.ID.String()})

	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.True(t, strings.HasPrefix(p.Reference, "PRD-"), p.Reference)
	assert.Equal(t, "en_attente", p.Status)
	assert.Equal(t, mairie.ID, p.MairieUserID)
	require.NotNil(t, p.UserID)
	assert.Equal(t, owner.ID, *p.UserID)
	assert.Nil(t, p.AssociationUserID)
	assert.Nil(t, p.DeposedAt)
	assert.Equal(t, []string{"http://minio.local/pcc-staging/a.jpg"}, p.Photos)
}

func TestProductHandler_CreateErrors(t *testing.T) {
	env := newTestEnv(t)
	mairie := env.createUser(t, "mairie@lyon.fr", model.RoleMairie)

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantKind string
	}{
		{"missing title", productBody(mairie, map[string]any{"title": ""}), http.StatusBadRequest, "validation_error"},
		{"bad mairie id", productBody(mairie, map[string]any{"mairie_user_id": "nope"}), http.StatusBadRequest, "validation_error"},
		{"bad owner id", productBody(mairie, map[string]any{"user_id": "nope"}), http.StatusBadRequest, "validation_error"},
		{"unknown mairie", productBody(mairie, map[string]any{"mairie_user_id": uuid.NewString()}), http.StatusNotFound, "not_found"},
		{"unknown association", productBody(mairie, map[string]any{"association_user_id": uuid.NewString()}), http.StatusNotFound, "not_found"},
		{"not json", "{", http.StatusBadRequest, "validation_error"},
		{"empty body", "", http.StatusBadRequest, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/products/", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantKind, decode[ErrorResponse](t, rec).Error)
		})
	}

	list := decode[[]ProductResponse](t, env.do(t, http.MethodGet, "/products/", nil))
	assert.Empty(t, list, "failed creations must not leave rows behind")
}

func TestProductHandler_Get(t *testing.T) {
	env := newTestEnv(t)
	mairie := env.createUser(t, "mairie@lyon.fr", model.RoleMairie)
	created := env.createProduct(t, mairie, nil)

	rec := env.do(t, http.MethodGet, "/products/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[map[string]any](t, rec)
	assert.Equal(t, created.Reference, got["reference"])
	assert.ElementsMatch(t, []string{"id", "title", "description", "reference", "photos"}, keys(got))

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/products/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/products/"+uuid.NewString(), nil).Code)
}

func TestProductHandler_ListPaging(t *testing.T) {
	env := newTestEnv(t)
	mairie := env.createUser(t, "mairie@lyon.fr", model.RoleMairie)
	for i := 0; i < 3; i++ {
		env.createProduct(t, mairie, nil)
	}

	tests := []struct {
		query    string
		wantCode int
		wantLen  int
	}{
		{"", http.StatusOK, 3},
		{"?limit=2", http.StatusOK, 2},
		{"?skip=2&limit=2", http.StatusOK, 1},
		{"?skip=10", http.StatusOK, 0},
		{"?skip=abc", http.StatusBadRequest, 0},
		{"?limit=-1", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/products/"+tt.query, nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				assert.Len(t, decode[[]ProductResponse](t, rec), tt.wantLen)
			}
		})
	}
}

func TestProductHandler_ListByLinkedUser(t *testing.T) {
	env := newTestEnv(t)
	mairie := env.createUser(t, "mairie@lyon.fr", model.RoleMairie)
	other := env.createUser(t, "mairie@paris.fr", model.RoleMairie)
	owner := env.createUser(t, "claire@example.com", model.RoleParticulier)
	assoc := env.createUser(t, "asso@example.org", model.RoleAssociation)

	env.createProduct(t, mairie, map[string]any{"user_id": owner.ID.String()})
	env.createProduct(t, mairie, map[string]any{"association_user_id": assoc.ID.String()})
	env.createProduct(t, other, nil)

	count := func(path string) int {
		rec := env.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return len(decode[[]ProductResponse](t, rec))
	}

	assert.Equal(t, 2, count("/products/mairie/"+mairie.ID.String()))
	assert.Equal(t, 1, count("/products/mairie/"+other.ID.String()))
	assert.Equal(t, 1, count("/products/user/"+owner.ID.String()))
	assert.Equal(t, 1, count("/products/association/"+assoc.ID.String()))
	assert.Equal(t, 0, count("/products/user/"+assoc.ID.String()))

	rec := env.do(t, http.MethodGet, "/products/mairie/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductHandler_Updates(t *testing.T) {
	env := newTestEnv(t)
	mairie := env.createUser(t, "mairie@lyon.fr", model.RoleMairie)
	assoc := env.createUser(t, "asso@example.org", model.RoleAssociation)
	p := env.createProduct(t, mairie, nil)
	path := "/products/" + p.ID.String()

	rec := env.do(t, http.MethodPut, path, map[string]any{"title": "Vélo réparé", "photos": []string{}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[ProductResponse](t, rec)
	assert.Equal(t, "Vélo réparé", updated.Title)
	assert.Equal(t, p.Description, updated.Description)
	assert.Equal(t, p.Reference, updated.Reference)
	assert.Empty(t, updated.Photos)

	rec = env.do(t, http.MethodPut, path+"/status", map[string]any{"status": "repare"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, path+"/association", map[string]any{"association_user_id": assoc.ID.String()})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, path+"/association", map[string]any{"association_user_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, path+"/deposed", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := env.db.Products().FindByID(context.Background(), p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "repare", stored.Status)
	require.NotNil(t, stored.AssociationUserID)
	assert.Equal(t, assoc.ID, *stored.AssociationUserID)
	assert.NotNil(t, stored.DeposedAt)

	missing := "/products/" + uuid.NewString()
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, missing, map[string]any{"title": "x"}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, missing+"/status", map[string]any{"status": "x"}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, missing+"/deposed", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, path+"/status", map[string]any{}).Code)
}

func TestProductHandler_Delete(t *testing.T) {
	env := newTestEnv(t)
	mairie := env.createUser(t, "mairie@lyon.fr", model.RoleMairie)
	p := env.createProduct(t, mairie, nil)
	path := "/products/" + p.ID.String()

	rec := env.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Produit supprimé avec succès.", decode[MessageResponse](t, rec).Message)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, nil).Code)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
