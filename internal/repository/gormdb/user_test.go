package gormdb

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/product-registry/internal/apperror"
	"github.com/sakif/product-registry/internal/auth"
	"github.com/sakif/product-registry/internal/model"
	"github.com/sakif/product-registry/internal/repository"
)

// newTestDB opens a fresh in-memory database per test. bcrypt runs at
// MinCost so user-heavy tests stay fast.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:", WithHasher(auth.NewPasswordServiceForTest()))
	require.NoError(t, err, "failed to create test db")
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, email string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		Nom:       "Dupont",
		Prenom:    "Jeanne",
		Email:     email,
		Telephone: "0102030405",
		Role:      role,
	}
	require.NoError(t, db.Users().Create(context.Background(), u, "password123"))
	return u
}

// ===== CREATE =====

func TestUserCreate_AssignsIDAndHashesPassword(t *testing.T) {
	db := newTestDB(t)

	u := createTestUser(t, db, "jeanne@example.fr", model.RoleParticulier)

	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.False(t, u.CreatedAt.IsZero())
	assert.NotEqual(t, "password123", u.Password)
	assert.True(t, auth.NewPasswordServiceForTest().Verify("password123", u.Password))
}

func TestUserCreate_NormalizesEmail(t *testing.T) {
	db := newTestDB(t)

	u := createTestUser(t, db, "  Jeanne@Example.FR ", model.RoleParticulier)

	assert.Equal(t, "jeanne@example.fr", u.Email)
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createTestUser(t, db, "a@b.com", model.RoleMairie)

	dup := &model.User{Nom: "X", Prenom: "Y", Email: " A@B.COM", Role: model.RoleParticulier}
	err := db.Users().Create(ctx, dup, "password123")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrDuplicateEmail)

	var count int64
	require.NoError(t, db.conn.Model(&model.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "second insert must be rolled back")
}

func TestUserCreate_UniqueIndexBackstop(t *testing.T) {
	db := newTestDB(t)

	createTestUser(t, db, "a@b.com", model.RoleMairie)

	// Bypass the pre-check to hit the index directly.
	err := db.conn.Create(&model.User{Nom: "X", Prenom: "Y", Email: "a@b.com", Role: model.RoleMairie, Password: "x"}).Error
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), "got %v", err)
}

func TestUserCreate_InvalidRole(t *testing.T) {
	db := newTestDB(t)

	err := db.Users().Create(context.Background(), &model.User{Email: "a@b.com", Role: "admin"}, "password123")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestUserCreate_PasswordTooLong(t *testing.T) {
	db := newTestDB(t)

	u := &model.User{Email: "a@b.com", Role: model.RoleParticulier}
	err := db.Users().Create(context.Background(), u, strings.Repeat("x", 73))
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// ===== FIND =====

func TestUserFindByEmail_Normalized(t *testing.T) {
	db := newTestDB(t)

	created := createTestUser(t, db, "a@b.com", model.RoleParticulier)

	got, err := db.Users().FindByEmail(context.Background(), "  A@B.COM ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestUserFindByEmail_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Users().FindByEmail(context.Background(), "nobody@example.fr")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserFindByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "a@b.com", model.RoleMairie)

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"existing", created.ID.String(), nil},
		{"unknown uuid", uuid.NewString(), apperror.ErrNotFound},
		{"malformed", "not-a-uuid", apperror.ErrValidation},
		{"empty", "", apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Users().FindByID(context.Background(), tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, created.Email, got.Email)
			assert.Equal(t, model.RoleMairie, got.Role)
		})
	}
}

// ===== UPDATE / DELETE =====

func TestUserUpdate_PartialFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "a@b.com", model.RoleParticulier)

	nom := "Martin"
	email := " New@B.com "
	pw := "another-password"
	got, err := db.Users().Update(ctx, u.ID.String(), repository.UserPatch{Nom: &nom, Email: &email, Password: &pw})
	require.NoError(t, err)

	assert.Equal(t, "Martin", got.Nom)
	assert.Equal(t, "Jeanne", got.Prenom, "untouched field")
	assert.Equal(t, "new@b.com", got.Email)
	assert.True(t, auth.NewPasswordServiceForTest().Verify(pw, got.Password))
	assert.False(t, got.UpdatedAt.Before(u.UpdatedAt))
}

func TestUserUpdate_EmailTaken(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "taken@b.com", model.RoleParticulier)
	u := createTestUser(t, db, "mine@b.com", model.RoleParticulier)

	email := "TAKEN@b.com"
	_, err := db.Users().Update(ctx, u.ID.String(), repository.UserPatch{Email: &email})
	assert.ErrorIs(t, err, apperror.ErrDuplicateEmail)
}

func TestUserUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)
	nom := "x"

	_, err := db.Users().Update(context.Background(), uuid.NewString(), repository.UserPatch{Nom: &nom})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserSoftDelete_StillVisible(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "a@b.com", model.RoleParticulier)

	require.NoError(t, db.Users().SoftDelete(ctx, u.ID.String()))

	got, err := db.Users().FindByID(ctx, u.ID.String())
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)

	err = db.Users().SoftDelete(ctx, uuid.NewString())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
