package services

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/inkpress/account_service/internal/domain"
	"github.com/inkpress/account_service/internal/dto"
	"github.com/inkpress/account_service/internal/helper"
	"github.com/inkpress/account_service/internal/helper/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const strongPassword = "S0me-Str0ng#Passw0rd"

// --- fakes ---

type fakeUserRepo struct {
	users  map[uint]*domain.User
	nextID uint
	saves  int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uint]*domain.User{}}
}

func (f *fakeUserRepo) CreateUser(user *domain.User) (*domain.User, error) {
	f.nextID++
	user.ID = f.nextID
	cp := *user
	f.users[user.ID] = &cp
	return user, nil
}

func (f *fakeUserRepo) FindUserByUsername(username string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindUserByEmail(email string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindUserById(userID uint) (*domain.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) FindUserByResetTokenHash(hash string) (*domain.User, error) {
	for _, u := range f.users {
		if u.ResetTokenHash != "" && u.ResetTokenHash == hash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) SaveUser(user *domain.User) error {
	f.saves++
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) DeleteUser(userID uint) error {
	delete(f.users, userID)
	return nil
}

func (f *fakeUserRepo) SearchUsers(search string, limit, offset int) ([]domain.User, int64, error) {
	var out []domain.User
	for _, u := range f.users {
		if search == "" ||
			strings.Contains(strings.ToLower(u.Username), strings.ToLower(search)) ||
			strings.Contains(strings.ToLower(u.Email), strings.ToLower(search)) ||
			strings.Contains(strings.ToLower(u.DisplayName), strings.ToLower(search)) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

type fakeRoleRepo struct {
	roles  map[string]*domain.Role
	nextID uint
}

func newFakeRoleRepo(names ...string) *fakeRoleRepo {
	f := &fakeRoleRepo{roles: map[string]*domain.Role{}}
	for _, n := range names {
		f.nextID++
		f.roles[n] = &domain.Role{ID: f.nextID, Name: n}
	}
	return f
}

func (f *fakeRoleRepo) FindByName(name string) (*domain.Role, error) {
	r, ok := f.roles[name]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r, nil
}

func (f *fakeRoleRepo) FindByNames(names []string) ([]domain.Role, error) {
	var out []domain.Role
	for _, n := range names {
		if r, ok := f.roles[n]; ok {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRoleRepo) List(limit, offset int) ([]domain.Role, error) {
	var out []domain.Role
	for _, r := range f.roles {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRoleRepo) EnsureRole(name string) (*domain.Role, error) {
	if r, ok := f.roles[name]; ok {
		return r, nil
	}
	f.nextID++
	r := &domain.Role{ID: f.nextID, Name: name}
	f.roles[name] = r
	return r, nil
}

type fakeUserRoleRepo struct {
	roleRepo *fakeRoleRepo
	byUser   map[uint][]uint
	replaces int
}

func newFakeUserRoleRepo(roleRepo *fakeRoleRepo) *fakeUserRoleRepo {
	return &fakeUserRoleRepo{roleRepo: roleRepo, byUser: map[uint][]uint{}}
}

func (f *fakeUserRoleRepo) ReplaceUserRoles(userID uint, roleIDs []uint) error {
	f.replaces++
	f.byUser[userID] = append([]uint(nil), roleIDs...)
	return nil
}

func (f *fakeUserRoleRepo) GetRolesByUserID(userID uint) ([]domain.Role, error) {
	var out []domain.Role
	for _, rid := range f.byUser[userID] {
		for _, r := range f.roleRepo.roles {
			if r.ID == rid {
				out = append(out, *r)
			}
		}
	}
	return out, nil
}

func (f *fakeUserRoleRepo) UserHasRole(userID uint, roleName string) (bool, error) {
	roles, _ := f.GetRolesByUserID(userID)
	for _, r := range roles {
		if r.Name == roleName {
			return true, nil
		}
	}
	return false, nil
}

type fakeAuditRepo struct {
	entries []domain.AuditLog
}

func (f *fakeAuditRepo) CreateEntry(entry *domain.AuditLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

type fakeProducer struct {
	keys     []string
	payloads []string
	failWith error
}

func (f *fakeProducer) PublishMessage(key, value []byte) error {
	f.keys = append(f.keys, string(key))
	f.payloads = append(f.payloads, string(value))
	return f.failWith
}

type accountFixture struct {
	svc       AccountService
	users     *fakeUserRepo
	roles     *fakeRoleRepo
	userRoles *fakeUserRoleRepo
	audit     *fakeAuditRepo
	producer  *fakeProducer
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	users := newFakeUserRepo()
	roles := newFakeRoleRepo(domain.RoleUser, domain.RoleAdmin)
	userRoles := newFakeUserRoleRepo(roles)
	audit := &fakeAuditRepo{}
	producer := &fakeProducer{}
	return &accountFixture{
		svc:       NewAccountService(users, roles, userRoles, audit, producer),
		users:     users,
		roles:     roles,
		userRoles: userRoles,
		audit:     audit,
		producer:  producer,
	}
}

func (fx *accountFixture) signUp(t *testing.T, username string) *domain.User {
	t.Helper()
	user, _, err := fx.svc.SignUp(dto.SignupRequest{
		Username:  username,
		Email:     username + "@example.com",
		Password:  strongPassword,
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(t, err)
	return user
}

// --- tests ---

func TestSignUpAssignsDefaultRole(t *testing.T) {
	fx := newAccountFixture(t)

	user, roles, err := fx.svc.SignUp(dto.SignupRequest{
		Username:  "Alice",
		Email:     "Alice@Example.COM",
		Password:  strongPassword,
		FirstName: "Alice",
		LastName:  "Smith",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice Smith", user.DisplayName)
	assert.Equal(t, domain.ProviderLocal, user.Provider)
	assert.NotEmpty(t, user.Salt)
	assert.NotEmpty(t, user.PasswordHash)
	assert.Equal(t, []string{domain.RoleUser}, roles)

	isAdmin, err := fx.svc.HasRole(user.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestSignUpRejectsWeakPassword(t *testing.T) {
	fx := newAccountFixture(t)

	_, _, err := fx.svc.SignUp(dto.SignupRequest{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "weak",
		FirstName: "Alice",
		LastName:  "Smith",
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "at least 10 characters")

	// nothing persisted
	assert.Empty(t, fx.users.users)
}

func TestSignUpRejectsMissingPassword(t *testing.T) {
	fx := newAccountFixture(t)

	_, _, err := fx.svc.SignUp(dto.SignupRequest{
		Username:  "alice",
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Smith",
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, fx.users.users)
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	fx := newAccountFixture(t)
	fx.signUp(t, "alice")

	_, _, err := fx.svc.SignUp(dto.SignupRequest{
		Username:  "alice2",
		Email:     "alice@example.com",
		Password:  strongPassword,
		FirstName: "Alice",
		LastName:  "Smith",
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Len(t, fx.users.users, 1)
}

func TestSignInUniformFailure(t *testing.T) {
	fx := newAccountFixture(t)
	fx.signUp(t, "bob")

	_, _, errUnknownUser := fx.svc.SignIn(dto.SigninRequest{Username: "nobody", Password: strongPassword})
	_, _, errWrongPassword := fx.svc.SignIn(dto.SigninRequest{Username: "bob", Password: "wrong-password"})

	require.Error(t, errUnknownUser)
	require.Error(t, errWrongPassword)
	assert.ErrorIs(t, errUnknownUser, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrongPassword, ErrInvalidCredentials)
	assert.Equal(t, errUnknownUser.Error(), errWrongPassword.Error())
}

func TestSignInSuccessResolvesRoles(t *testing.T) {
	fx := newAccountFixture(t)
	created := fx.signUp(t, "bob")

	user, roles, err := fx.svc.SignIn(dto.SigninRequest{Username: "bob", Password: strongPassword})
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, []string{domain.RoleUser}, roles)
}

func TestUpdateProfileLeavesCredentialUntouched(t *testing.T) {
	fx := newAccountFixture(t)
	created := fx.signUp(t, "carol")

	before := fx.users.users[created.ID]
	salt, hash := before.Salt, before.PasswordHash

	newName := "Caroline"
	_, err := fx.svc.UpdateProfile(created.ID, dto.UpdateProfileRequest{FirstName: &newName})
	require.NoError(t, err)

	after := fx.users.users[created.ID]
	assert.Equal(t, "Caroline", after.FirstName)
	assert.Equal(t, "Caroline User", after.DisplayName)
	assert.Equal(t, salt, after.Salt)
	assert.Equal(t, hash, after.PasswordHash)
}

func TestForgotPasswordUnknownUserIsSilent(t *testing.T) {
	fx := newAccountFixture(t)

	err := fx.svc.ForgotPassword("nobody")
	require.NoError(t, err)
	assert.Empty(t, fx.producer.keys)
	assert.Zero(t, fx.users.saves)
}

func TestForgotPasswordIssuesToken(t *testing.T) {
	fx := newAccountFixture(t)
	created := fx.signUp(t, "carol")

	require.NoError(t, fx.svc.ForgotPassword("carol"))

	require.Equal(t, []string{"user.reset_password"}, fx.producer.keys)
	var event struct {
		UserID    uint   `json:"user_id"`
		Email     string `json:"email"`
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal([]byte(fx.producer.payloads[0]), &event))
	assert.Equal(t, created.ID, event.UserID)
	assert.Equal(t, "carol@example.com", event.Email)
	require.NotEmpty(t, event.Token)

	stored := fx.users.users[created.ID]
	assert.Equal(t, utils.Sha256Hex(event.Token), stored.ResetTokenHash)
	require.NotNil(t, stored.ResetTokenExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *stored.ResetTokenExpiresAt, time.Minute)
}

func TestForgotPasswordPayloadSurvivesQuotedName(t *testing.T) {
	fx := newAccountFixture(t)
	created := fx.signUp(t, "carol")
	fx.users.users[created.ID].DisplayName = `Carol "CJ" Jones`

	require.NoError(t, fx.svc.ForgotPassword("carol"))

	var event struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(fx.producer.payloads[0]), &event))
	assert.Equal(t, `Carol "CJ" Jones`, event.Name)
}

func TestForgotPasswordSurvivesPublishFailure(t *testing.T) {
	fx := newAccountFixture(t)
	created := fx.signUp(t, "carol")
	fx.producer.failWith = errors.New("broker unreachable")

	// the event is best effort; the token must still be stored
	require.NoError(t, fx.svc.ForgotPassword("carol"))
	assert.NotEmpty(t, fx.users.users[created.ID].ResetTokenHash)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	fx := newAccountFixture(t)
	created := fx.signUp(t, "carol")

	expired := time.Now().Add(-time.Minute)
	stored := fx.users.users[created.ID]
	stored.ResetTokenHash = utils.Sha256Hex("the-token")
	stored.ResetTokenExpiresAt = &expired

	err := fx.svc.ResetPassword(dto.ResetPasswordRequest{Token: "the-token", NewPassword: strongPassword})
	require.ErrorIs(t, err, ErrTokenInvalid)

	// token stays unusable; no retroactive success
	err = fx.svc.ResetPassword(dto.ResetPasswordRequest{Token: "the-token", NewPassword: strongPassword})
	require.ErrorIs(t, err, ErrTokenInvalid)
	assert.Equal(t, utils.Sha256Hex("the-token"), fx.users.users[created.ID].ResetTokenHash)
}

func TestResetPasswordIsSingleUse(t *testing.T) {
	fx := newAccountFixture(t)
	created := fx.signUp(t, "carol")

	future := time.Now().Add(30 * time.Minute)
	stored := fx.users.users[created.ID]
	stored.ResetTokenHash = utils.Sha256Hex("the-token")
	stored.ResetTokenExpiresAt = &future

	newPassword := "An0ther-Str0ng#Pass"
	require.NoError(t, fx.svc.ResetPassword(dto.ResetPasswordRequest{Token: "the-token", NewPassword: newPassword}))

	after := fx.users.users[created.ID]
	assert.Empty(t, after.ResetTokenHash)
	assert.Nil(t, after.ResetTokenExpiresAt)
	assert.True(t, helper.VerifyPassword(newPassword, after.Salt, after.PasswordHash))

	err := fx.svc.ResetPassword(dto.ResetPasswordRequest{Token: "the-token", NewPassword: newPassword})
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestResetPasswordRejectsWeakReplacement(t *testing.T) {
	fx := newAccountFixture(t)
	created := fx.signUp(t, "carol")

	future := time.Now().Add(30 * time.Minute)
	stored := fx.users.users[created.ID]
	stored.ResetTokenHash = utils.Sha256Hex("the-token")
	stored.ResetTokenExpiresAt = &future

	err := fx.svc.ResetPassword(dto.ResetPasswordRequest{Token: "the-token", NewPassword: "weak"})
	require.ErrorIs(t, err, ErrValidation)

	// token not consumed by the failed attempt
	assert.Equal(t, utils.Sha256Hex("the-token"), fx.users.users[created.ID].ResetTokenHash)
}

func TestChangePassword(t *testing.T) {
	fx := newAccountFixture(t)
	created := fx.signUp(t, "dave")

	err := fx.svc.ChangePassword(created.ID, dto.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "An0ther-Str0ng#Pass",
	})
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, fx.svc.ChangePassword(created.ID, dto.ChangePasswordRequest{
		CurrentPassword: strongPassword,
		NewPassword:     "An0ther-Str0ng#Pass",
	}))

	after := fx.users.users[created.ID]
	assert.True(t, helper.VerifyPassword("An0ther-Str0ng#Pass", after.Salt, after.PasswordHash))
}

func TestSetRolesGrantsAndRevokes(t *testing.T) {
	fx := newAccountFixture(t)
	bob := fx.signUp(t, "bob")
	admin := fx.signUp(t, "root")

	isAdmin, err := fx.svc.HasRole(bob.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	require.NoError(t, fx.svc.SetRoles(admin.ID, bob.ID, []string{domain.RoleAdmin}))

	isAdmin, err = fx.svc.HasRole(bob.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	// replacement, not accumulation
	isUser, err := fx.svc.HasRole(bob.ID, domain.RoleUser)
	require.NoError(t, err)
	assert.False(t, isUser)

	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, "set_roles", fx.audit.entries[0].Action)
	assert.Equal(t, admin.ID, fx.audit.entries[0].ActorID)
	assert.Equal(t, bob.ID, fx.audit.entries[0].EntityID)
}

func TestSetRolesUnknownRole(t *testing.T) {
	fx := newAccountFixture(t)
	bob := fx.signUp(t, "bob")

	err := fx.svc.SetRoles(1, bob.ID, []string{"superuser"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "superuser")
}

func TestDeleteUserAudits(t *testing.T) {
	fx := newAccountFixture(t)
	bob := fx.signUp(t, "bob")

	require.NoError(t, fx.svc.DeleteUser(99, bob.ID))
	assert.NotContains(t, fx.users.users, bob.ID)
	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, "delete_user", fx.audit.entries[0].Action)

	err := fx.svc.DeleteUser(99, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetRolesDeduplicatesNames(t *testing.T) {
	fx := newAccountFixture(t)
	bob := fx.signUp(t, "bob")

	require.NoError(t, fx.svc.SetRoles(1, bob.ID, []string{"User", " user ", domain.RoleAdmin}))

	roles, err := fx.svc.RolesOf(bob.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{domain.RoleUser, domain.RoleAdmin}, roles)
}

func TestListRoles(t *testing.T) {
	fx := newAccountFixture(t)

	roles, err := fx.svc.ListRoles()
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, domain.RoleUser, roles[0].Name)
	assert.Equal(t, domain.RoleAdmin, roles[1].Name)
}

func TestListUsersSearch(t *testing.T) {
	fx := newAccountFixture(t)
	fx.signUp(t, "alice")
	fx.signUp(t, "bob")

	users, total, err := fx.svc.ListUsers("ali", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
}

func TestRolesOfInvalidUser(t *testing.T) {
	fx := newAccountFixture(t)

	_, err := fx.svc.RolesOf(0)
	assert.ErrorIs(t, err, ErrValidation)
}
