// Package seed provisions baseline reference data: the role set and the
// default local accounts. It runs before the listener accepts traffic, under
// the caller's migration lock, and receives all of its options explicitly.
package seed

import (
	"errors"
	"fmt"
	"log"

	"github.com/inkpress/account_service/config"
	"github.com/inkpress/account_service/internal/domain"
	"github.com/inkpress/account_service/internal/helper"
	"github.com/inkpress/account_service/internal/repository"
	"gorm.io/gorm"
)

type Seeder struct {
	userRepo     repository.UserRepository
	roleRepo     repository.RoleRepository
	userRoleRepo repository.UserRoleRepository
	production   bool
}

func New(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	userRoleRepo repository.UserRoleRepository,
	production bool,
) *Seeder {
	return &Seeder{
		userRepo:     userRepo,
		roleRepo:     roleRepo,
		userRoleRepo: userRoleRepo,
		production:   production,
	}
}

// EnsureRoles guarantees every named role exists. Find-or-create per name:
// running it twice leaves exactly one row per role.
func (s *Seeder) EnsureRoles(names []string) error {
	for _, name := range names {
		if _, err := s.roleRepo.EnsureRole(name); err != nil {
			return fmt.Errorf("ensure role %q: %w", name, err)
		}
	}
	return nil
}

// Run ensures the role set and seeds default accounts. The roles are
// reference data signups depend on, so they are ensured even when account
// seeding is disabled. In production only the admin account is provisioned,
// and only if absent; elsewhere both the admin and the regular account are
// re-provisioned, replacing same-named accounts.
func (s *Seeder) Run(opts config.SeedOptions) error {
	if err := s.EnsureRoles(opts.Roles); err != nil {
		return err
	}

	if !opts.Enabled {
		return nil
	}

	if s.production {
		return s.provisionAccount(opts.Admin, false, opts.LogPasswords)
	}

	if err := s.provisionAccount(opts.User, true, opts.LogPasswords); err != nil {
		return err
	}
	return s.provisionAccount(opts.Admin, true, opts.LogPasswords)
}

func (s *Seeder) provisionAccount(acct config.SeedAccount, replace bool, logPasswords bool) error {
	if acct.Username == "" || acct.Email == "" {
		return errors.New("seed account requires username and email")
	}

	existing, err := s.userRepo.FindUserByUsername(acct.Username)
	switch {
	case err == nil && existing != nil:
		if !replace {
			log.Printf("Database seeding: local account %q already exists, skipping", acct.Username)
			return nil
		}
		if err := s.userRepo.DeleteUser(existing.ID); err != nil {
			return fmt.Errorf("remove local account %q: %w", acct.Username, err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fresh account
	default:
		return fmt.Errorf("look up local account %q: %w", acct.Username, err)
	}

	passphrase, err := helper.GenerateRandomPassphrase()
	if err != nil {
		return err
	}
	salt, hash, err := helper.DerivePassword(passphrase)
	if err != nil {
		return err
	}

	user := &domain.User{
		Username:     acct.Username,
		Email:        acct.Email,
		FirstName:    acct.FirstName,
		LastName:     acct.LastName,
		DisplayName:  acct.DisplayName,
		Salt:         salt,
		PasswordHash: hash,
		Provider:     domain.ProviderLocal,
	}
	created, err := s.userRepo.CreateUser(user)
	if err != nil {
		return fmt.Errorf("add local account %q: %w", acct.Username, err)
	}

	var roleIDs []uint
	for _, name := range acct.Roles {
		role, err := s.roleRepo.FindByName(name)
		if err != nil {
			return fmt.Errorf("resolve role %q: %w", name, err)
		}
		roleIDs = append(roleIDs, role.ID)
	}
	if err := s.userRoleRepo.ReplaceUserRoles(created.ID, roleIDs); err != nil {
		return fmt.Errorf("assign roles to %q: %w", acct.Username, err)
	}

	if logPasswords {
		log.Printf("Database seeding: local account %q added with password set to %s", acct.Username, passphrase)
	} else {
		log.Printf("Database seeding: local account %q added", acct.Username)
	}
	return nil
}
