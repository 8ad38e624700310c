package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/inkpress/account_service/internal/domain"
	"github.com/inkpress/account_service/internal/dto"
	"github.com/inkpress/account_service/internal/helper"
	"github.com/inkpress/account_service/internal/helper/utils"
	"github.com/inkpress/account_service/internal/interfaces"
	"github.com/inkpress/account_service/internal/repository"
	"gorm.io/gorm"
)

const resetTokenTTL = time.Hour

type AccountService interface {
	// Auth
	SignUp(input dto.SignupRequest) (*domain.User, []string, error)
	SignIn(input dto.SigninRequest) (*domain.User, []string, error)
	ForgotPassword(username string) error
	ValidateResetToken(token string) error
	ResetPassword(input dto.ResetPasswordRequest) error

	// Profile
	GetProfile(userID uint) (*domain.User, []string, error)
	UpdateProfile(userID uint, input dto.UpdateProfileRequest) (*domain.User, error)
	ChangePassword(userID uint, input dto.ChangePasswordRequest) error

	// Authorization gate
	RolesOf(userID uint) ([]string, error)
	HasRole(userID uint, roleName string) (bool, error)
	SetRoles(actorID, userID uint, roleNames []string) error

	// Admin
	ListRoles() ([]domain.Role, error)
	ListUsers(search string, limit, offset int) ([]domain.User, int64, error)
	GetUser(userID uint) (*domain.User, []string, error)
	UpdateUser(actorID, userID uint, input dto.UpdateProfileRequest) (*domain.User, error)
	DeleteUser(actorID, userID uint) error
}

type accountService struct {
	repo         repository.UserRepository
	roleRepo     repository.RoleRepository
	userRoleRepo repository.UserRoleRepository
	auditRepo    repository.AuditRepository
	policy       helper.StrengthPolicy
	producer     interfaces.ProducerHandler
}

func NewAccountService(
	repo repository.UserRepository,
	roleRepo repository.RoleRepository,
	userRoleRepo repository.UserRoleRepository,
	auditRepo repository.AuditRepository,
	producer interfaces.ProducerHandler,
) AccountService {
	return &accountService{
		repo:         repo,
		roleRepo:     roleRepo,
		userRoleRepo: userRoleRepo,
		auditRepo:    auditRepo,
		policy:       helper.DefaultStrengthPolicy(),
		producer:     producer,
	}
}

// AUTH

func (s *accountService) SignUp(input dto.SignupRequest) (*domain.User, []string, error) {
	username := strings.TrimSpace(strings.ToLower(input.Username))
	email := strings.TrimSpace(strings.ToLower(input.Email))
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)

	if username == "" || email == "" || firstName == "" || lastName == "" {
		return nil, nil, validationErr("username, email, first_name and last_name are required")
	}
	if !strings.Contains(email, "@") {
		return nil, nil, validationErr("invalid email address")
	}

	// local accounts must carry a credential; validate before deriving
	if strings.TrimSpace(input.Password) == "" {
		return nil, nil, validationErr("password is required")
	}
	if err := s.policy.Check(input.Password); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	// existence check before the slow derivation; the unique indexes still
	// backstop races via IsDuplicateKey below
	if _, err := s.repo.FindUserByEmail(email); err == nil {
		return nil, nil, validationErr("username or email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	salt, hash, err := helper.DerivePassword(input.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	newUser := &domain.User{
		Username:     username,
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		DisplayName:  firstName + " " + lastName,
		Salt:         salt,
		PasswordHash: hash,
		Provider:     domain.ProviderLocal,
	}

	usr, err := s.repo.CreateUser(newUser)
	if err != nil {
		if helper.IsDuplicateKey(err) {
			return nil, nil, validationErr("username or email already exists")
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// Signups always start with the default role; roles from the request body
	// are never honored.
	role, err := s.roleRepo.FindByName(domain.RoleUser)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := s.userRoleRepo.ReplaceUserRoles(usr.ID, []uint{role.ID}); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	return usr, []string{domain.RoleUser}, nil
}

func (s *accountService) SignIn(input dto.SigninRequest) (*domain.User, []string, error) {
	username := strings.TrimSpace(strings.ToLower(input.Username))
	password := input.Password

	if username == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	user, err := s.repo.FindUserByUsername(username)
	if err != nil || user == nil || user.ID == 0 {
		// unknown user and wrong password must be indistinguishable
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsLocal() || user.PasswordHash == "" || user.Salt == "" {
		return nil, nil, ErrInvalidCredentials
	}

	if !helper.VerifyPassword(password, user.Salt, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	roles, err := s.RolesOf(user.ID)
	if err != nil {
		return nil, nil, err
	}

	return user, roles, nil
}

func (s *accountService) ForgotPassword(username string) error {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return validationErr("username is required")
	}

	user, err := s.repo.FindUserByUsername(username)
	if err != nil || user == nil {
		// respond identically whether or not the account exists
		log.Printf("forgot password: no account for %q", username)
		return nil
	}
	if !user.IsLocal() {
		log.Printf("forgot password: %q is a %s account", username, user.Provider)
		return nil
	}

	plain, err := utils.RandomToken(20)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	exp := time.Now().Add(resetTokenTTL)
	user.ResetTokenHash = utils.Sha256Hex(plain)
	user.ResetTokenExpiresAt = &exp
	if err := s.repo.SaveUser(user); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// the mailer owns delivery; this service's job ends at the token event.
	// A lost event is logged, not surfaced: the token is stored and a retry
	// of the forgot flow issues a fresh one.
	if s.producer != nil {
		payload, err := json.Marshal(struct {
			UserID    uint   `json:"user_id"`
			Email     string `json:"email"`
			Name      string `json:"name"`
			Token     string `json:"token"`
			ExpiresAt string `json:"expires_at"`
		}{user.ID, user.Email, user.DisplayName, plain, exp.Format(time.RFC3339)})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if err := s.producer.PublishMessage([]byte("user.reset_password"), payload); err != nil {
			log.Printf("reset password event for %q not published: %v", user.Username, err)
		}
	}

	return nil
}

func (s *accountService) ValidateResetToken(token string) error {
	_, err := s.userByValidResetToken(token)
	return err
}

func (s *accountService) ResetPassword(input dto.ResetPasswordRequest) error {
	user, err := s.userByValidResetToken(input.Token)
	if err != nil {
		return err
	}

	newPassword := input.NewPassword
	if strings.TrimSpace(newPassword) == "" {
		return validationErr("new password is required")
	}
	if err := s.policy.Check(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	salt, hash, err := helper.DerivePassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// single use: the token is cleared in the same save as the new credential
	user.Salt = salt
	user.PasswordHash = hash
	user.ResetTokenHash = ""
	user.ResetTokenExpiresAt = nil

	if err := s.repo.SaveUser(user); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *accountService) userByValidResetToken(token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	user, err := s.repo.FindUserByResetTokenHash(utils.Sha256Hex(token))
	if err != nil || user == nil {
		return nil, ErrTokenInvalid
	}
	if user.ResetTokenExpiresAt == nil || time.Now().After(*user.ResetTokenExpiresAt) {
		return nil, ErrTokenInvalid
	}
	return user, nil
}

// PROFILE

func (s *accountService) GetProfile(userID uint) (*domain.User, []string, error) {
	if userID == 0 {
		return nil, nil, validationErr("invalid user_id")
	}

	user, err := s.repo.FindUserById(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	roles, err := s.RolesOf(userID)
	if err != nil {
		return nil, nil, err
	}
	return user, roles, nil
}

// UpdateProfile patches non-credential fields. The stored salt and hash are
// never recomputed here; only the reset and change-password paths touch them.
func (s *accountService) UpdateProfile(userID uint, input dto.UpdateProfileRequest) (*domain.User, error) {
	if userID == 0 {
		return nil, validationErr("invalid user_id")
	}

	user, err := s.repo.FindUserById(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if input.FirstName != nil {
		fn := strings.TrimSpace(*input.FirstName)
		if fn == "" {
			return nil, validationErr("first_name cannot be empty")
		}
		user.FirstName = fn
	}

	if input.LastName != nil {
		ln := strings.TrimSpace(*input.LastName)
		if ln == "" {
			return nil, validationErr("last_name cannot be empty")
		}
		user.LastName = ln
	}

	if input.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*input.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, validationErr("invalid email address")
		}
		user.Email = email
	}

	user.DisplayName = user.FirstName + " " + user.LastName

	if err := s.repo.SaveUser(user); err != nil {
		if helper.IsDuplicateKey(err) {
			return nil, validationErr("email already exists")
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return user, nil
}

func (s *accountService) ChangePassword(userID uint, input dto.ChangePasswordRequest) error {
	if userID == 0 {
		return validationErr("invalid user_id")
	}

	user, err := s.repo.FindUserById(userID)
	if err != nil || user == nil {
		return ErrNotFound
	}
	if !user.IsLocal() {
		return validationErr("account has no local credential")
	}

	if !helper.VerifyPassword(input.CurrentPassword, user.Salt, user.PasswordHash) {
		return validationErr("current password is incorrect")
	}
	if err := s.policy.Check(input.NewPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	salt, hash, err := helper.DerivePassword(input.NewPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	user.Salt = salt
	user.PasswordHash = hash

	if err := s.repo.SaveUser(user); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// AUTHORIZATION GATE

func (s *accountService) RolesOf(userID uint) ([]string, error) {
	if userID == 0 {
		return nil, validationErr("invalid user_id")
	}

	roles, err := s.userRoleRepo.GetRolesByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names, nil
}

func (s *accountService) HasRole(userID uint, roleName string) (bool, error) {
	if userID == 0 || roleName == "" {
		return false, validationErr("invalid input")
	}

	ok, err := s.userRoleRepo.UserHasRole(userID, roleName)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return ok, nil
}

func (s *accountService) SetRoles(actorID, userID uint, roleNames []string) error {
	if userID == 0 {
		return validationErr("invalid user_id")
	}
	if len(roleNames) == 0 {
		return validationErr("roles are required")
	}

	seen := map[string]bool{}
	names := make([]string, 0, len(roleNames))
	for _, name := range roleNames {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return validationErr("roles are required")
	}

	roles, err := s.roleRepo.FindByNames(names)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	byName := make(map[string]uint, len(roles))
	for _, r := range roles {
		byName[r.Name] = r.ID
	}

	roleIDs := make([]uint, 0, len(names))
	for _, name := range names {
		id, ok := byName[name]
		if !ok {
			return validationErr("unknown role %q", name)
		}
		roleIDs = append(roleIDs, id)
	}

	if err := s.userRoleRepo.ReplaceUserRoles(userID, roleIDs); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.audit(actorID, "set_roles", "user", userID, strings.Join(names, ","))
	return nil
}

// ADMIN

func (s *accountService) ListRoles() ([]domain.Role, error) {
	roles, err := s.roleRepo.List(100, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return roles, nil
}

func (s *accountService) ListUsers(search string, limit, offset int) ([]domain.User, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	users, total, err := s.repo.SearchUsers(strings.TrimSpace(search), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return users, total, nil
}

func (s *accountService) GetUser(userID uint) (*domain.User, []string, error) {
	return s.GetProfile(userID)
}

func (s *accountService) UpdateUser(actorID, userID uint, input dto.UpdateProfileRequest) (*domain.User, error) {
	user, err := s.UpdateProfile(userID, input)
	if err != nil {
		return nil, err
	}
	s.audit(actorID, "update_user", "user", userID, "")
	return user, nil
}

func (s *accountService) DeleteUser(actorID, userID uint) error {
	if userID == 0 {
		return validationErr("invalid user_id")
	}

	if _, err := s.repo.FindUserById(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if err := s.repo.DeleteUser(userID); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	s.audit(actorID, "delete_user", "user", userID, "")
	return nil
}

func (s *accountService) audit(actorID uint, action, entity string, entityID uint, note string) {
	if s.auditRepo == nil {
		return
	}
	entry := &domain.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
	}
	if note != "" {
		entry.Note = &note
	}
	if err := s.auditRepo.CreateEntry(entry); err != nil {
		log.Printf("audit entry error: %v", err)
	}
}
