package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/yegara-dev/community-api/internal/models"
)

type authRepoStub struct {
	users map[string]*models.User

	resetTokenHash   map[string]string
	resetTokenExpiry map[string]time.Time
}

func newAuthRepoStub(users ...*models.User) *authRepoStub {
	stub := &authRepoStub{
		users:            map[string]*models.User{},
		resetTokenHash:   map[string]string{},
		resetTokenExpiry: map[string]time.Time{},
	}
	for _, u := range users {
		stub.users[u.ID] = u
	}
	return stub
}

func (r *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (r *authRepoStub) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	for id, hash := range r.resetTokenHash {
		if hash == tokenHash && r.resetTokenExpiry[id].After(now) {
			return r.users[id], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *authRepoStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	var out []models.User
	for _, user := range r.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.ActiveOnly && !user.IsActive {
			continue
		}
		out = append(out, *user)
	}
	return out, nil
}

func (r *authRepoStub) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.users[user.ID] = user
	return nil
}

func (r *authRepoStub) Update(ctx context.Context, user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *authRepoStub) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	user, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	return nil
}

func (r *authRepoStub) Activate(ctx context.Context, id, passwordHash string) error {
	user, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	user.IsActive = true
	user.MustChangePassword = false
	return nil
}

func (r *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	user, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.LastLogin = &ts
	return nil
}

func (r *authRepoStub) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	r.resetTokenHash[id] = tokenHash
	r.resetTokenExpiry[id] = expiresAt
	return nil
}

func (r *authRepoStub) ClearResetToken(ctx context.Context, id string) error {
	delete(r.resetTokenHash, id)
	delete(r.resetTokenExpiry, id)
	return nil
}

func newAuthServiceForTest(t *testing.T, users ...*models.User) (*AuthService, *authRepoStub, *notifierStub) {
	t.Helper()
	repo := newAuthRepoStub(users...)
	notifier := &notifierStub{}
	svc := NewAuthService(repo, notifier, nil, zap.NewNop(), AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		FrontendURL: "http://localhost:3000",
	})
	return svc, repo, notifier
}

func TestAuthServiceRegisterResident(t *testing.T) {
	svc, repo, _ := newAuthServiceForTest(t)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "Resident@Example.com",
		Password: "secret1",
		FullName: "Abebe Kebede",
		Role:     models.RoleResident,
		Woreda:   "Woreda 1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Token)
	assert.False(t, resp.RequiresActivation)
	assert.Equal(t, "resident@example.com", resp.User.Email)

	claims, err := svc.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, models.RoleResident, claims.Role)

	stored, err := repo.FindByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
}

func TestAuthServiceRegisterOfficerPendingActivation(t *testing.T) {
	svc, repo, notifier := newAuthServiceForTest(t)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:      "officer@example.com",
		Password:   "secret1",
		FullName:   "Sara Tadesse",
		Role:       models.RoleOfficer,
		Department: "Water",
	})
	require.NoError(t, err)

	assert.Empty(t, resp.Token)
	assert.True(t, resp.RequiresActivation)

	stored, err := repo.FindByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	require.NotNil(t, stored.Department)
	assert.Equal(t, models.DepartmentWater, *stored.Department)

	// Pending registrations get an access code, stored on the account and
	// mailed to the registrant.
	require.NotNil(t, stored.AccessCode)
	assert.NotEmpty(t, *stored.AccessCode)
	require.Len(t, notifier.intents, 1)
	assert.Equal(t, stored.Email, notifier.intents[0].Recipients[0].Email)
	assert.Contains(t, notifier.intents[0].HTMLBody, *stored.AccessCode)
}

func TestAuthServiceRegisterCustomWoredaNotifiesSubcityAdmins(t *testing.T) {
	subcity := &models.User{ID: "s1", Email: "subcity@example.com", Role: models.RoleSubcityAdmin, IsActive: true}
	dormant := &models.User{ID: "s2", Email: "old-subcity@example.com", Role: models.RoleSubcityAdmin, IsActive: false}
	svc, _, notifier := newAuthServiceForTest(t, subcity, dormant)

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:            "resident@example.com",
		Password:         "secret1",
		FullName:         "Abebe Kebede",
		Role:             models.RoleResident,
		Woreda:           "Woreda 15",
		CustomWoredaName: "Woreda 15",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	// Only the active sub-city admins hear about the new district request.
	require.Len(t, notifier.intents, 1)
	require.Len(t, notifier.intents[0].Recipients, 1)
	assert.Equal(t, subcity.Email, notifier.intents[0].Recipients[0].Email)
	assert.Contains(t, notifier.intents[0].HTMLBody, "Woreda 15")
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "resident@example.com",
		Password: "secret1",
		FullName: "No District",
		Role:     models.RoleResident,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "woreda is required")

	_, err = svc.Register(context.Background(), models.RegisterRequest{
		Email:    "officer@example.com",
		Password: "secret1",
		FullName: "No Department",
		Role:     models.RoleOfficer,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "department is required")
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	existing := &models.User{ID: "u1", Email: "taken@example.com"}
	svc, _, _ := newAuthServiceForTest(t, existing)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "Taken@example.com",
		Password: "secret1",
		FullName: "Duplicate",
		Role:     models.RoleResident,
		Woreda:   "Woreda 1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestAuthServiceLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           "u1",
		Email:        "resident@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleResident,
		IsActive:     true,
	}
	svc, repo, _ := newAuthServiceForTest(t, user)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "resident@example.com", Password: "wrong"})
	require.Error(t, err)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "Resident@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	stored, err := repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogin)
}

func TestAuthServiceLoginFlagsPendingAccounts(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("temp123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:                 "u1",
		Email:              "pending@example.com",
		PasswordHash:       string(hash),
		Role:               models.RoleOfficer,
		IsActive:           false,
		MustChangePassword: true,
	}
	svc, _, _ := newAuthServiceForTest(t, user)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "pending@example.com", Password: "temp123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.RequiresActivation)
	assert.True(t, resp.RequiresPasswordChange)
}

func TestAuthServiceActivate(t *testing.T) {
	user := &models.User{
		ID:                 "u1",
		Email:              "pending@example.com",
		Role:               models.RoleOfficer,
		IsActive:           false,
		MustChangePassword: true,
	}
	svc, repo, _ := newAuthServiceForTest(t, user)

	resp, err := svc.Activate(context.Background(), user.ID, models.ActivateRequest{NewPassword: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.False(t, resp.RequiresActivation)
	assert.False(t, resp.RequiresPasswordChange)

	stored, err := repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.False(t, stored.MustChangePassword)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
}

func TestAuthServicePasswordResetFlow(t *testing.T) {
	user := &models.User{ID: "u1", Email: "resident@example.com", Role: models.RoleResident, IsActive: true}
	svc, repo, notifier := newAuthServiceForTest(t, user)

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "resident@example.com"}))

	// Only the hash is stored; the raw token travels in the mail alone.
	require.Len(t, notifier.intents, 1)
	body := notifier.intents[0].HTMLBody
	marker := "/reset-password/"
	idx := strings.Index(body, marker)
	require.GreaterOrEqual(t, idx, 0)
	rawToken := body[idx+len(marker):]
	rawToken = rawToken[:strings.IndexAny(rawToken, "\"")]
	assert.NotEqual(t, rawToken, repo.resetTokenHash[user.ID])

	resp, err := svc.ResetPassword(context.Background(), rawToken, models.ResetPasswordRequest{Password: "newsecret"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[user.ID].PasswordHash), []byte("newsecret")))

	// The token is single use.
	_, err = svc.ResetPassword(context.Background(), rawToken, models.ResetPasswordRequest{Password: "another1"})
	require.Error(t, err)
}

func TestAuthServiceResetPasswordUnknownToken(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t)

	_, err := svc.ResetPassword(context.Background(), "bogus", models.ResetPasswordRequest{Password: "newsecret"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid or expired")
}

func TestAuthServiceUpdatePassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("current1"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{ID: "u1", Email: "resident@example.com", PasswordHash: string(hash), Role: models.RoleResident, IsActive: true}
	svc, repo, _ := newAuthServiceForTest(t, user)

	_, err = svc.UpdatePassword(context.Background(), user.ID, models.UpdatePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "newsecret",
	})
	require.Error(t, err)

	resp, err := svc.UpdatePassword(context.Background(), user.ID, models.UpdatePasswordRequest{
		CurrentPassword: "current1",
		NewPassword:     "newsecret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[user.ID].PasswordHash), []byte("newsecret")))
}

func TestAuthServiceParseTokenRejectsTampering(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t)

	_, err := svc.ParseToken("not-a-token")
	require.Error(t, err)

	other := NewAuthService(newAuthRepoStub(), nil, nil, zap.NewNop(), AuthConfig{
		TokenSecret: "different-secret",
		TokenExpiry: time.Hour,
	})
	resp, err := other.Register(context.Background(), models.RegisterRequest{
		Email:    "resident@example.com",
		Password: "secret1",
		FullName: "Abebe Kebede",
		Role:     models.RoleResident,
		Woreda:   "Woreda 1",
	})
	require.NoError(t, err)

	_, err = svc.ParseToken(resp.Token)
	require.Error(t, err)
}
