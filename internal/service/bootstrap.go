package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mmoldabe-dev/subtrack/internal/domain"
	"github.com/mmoldabe-dev/subtrack/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const minAdminPasswordLen = domain.MinPasswordLen

// BootstrapInput describes the users a fresh database needs. The admin is
// optional; the system user is not.
type BootstrapInput struct {
	SystemUserID  uuid.UUID
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// Bootstrap creates the system actor used by the sweep and, when
// configured, a first ADMIN account. Existing rows are left untouched.
func Bootstrap(ctx context.Context, users repository.UserInterface, in BootstrapInput, log *slog.Logger) error {
	const op = "service.Bootstrap"
	log = log.With(slog.String("op", op))

	if in.SystemUserID == uuid.Nil {
		return fmt.Errorf("%s: system user id is required", op)
	}

	// nobody logs in as the system user; its password is random and discarded
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	systemHash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(secret)), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	created, err := users.Ensure(ctx, &domain.User{
		ID:           in.SystemUserID,
		Name:         "System",
		Email:        "system@subtrack.local",
		PasswordHash: string(systemHash),
		Role:         domain.RoleAdmin,
		Active:       false,
	})
	if err != nil {
		return fmt.Errorf("%s: system user: %w", op, err)
	}
	log.Info("system user", slog.String("id", in.SystemUserID.String()), slog.Bool("created", created))

	email := strings.ToLower(strings.TrimSpace(in.AdminEmail))
	if email == "" {
		return nil
	}
	if len(in.AdminPassword) < minAdminPasswordLen {
		return fmt.Errorf("%s: admin password must have at least %d characters", op, minAdminPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	name := strings.TrimSpace(in.AdminName)
	if name == "" {
		name = "Administrator"
	}

	admin := &domain.User{
		ID:                 uuid.New(),
		Name:               name,
		Email:              email,
		PasswordHash:       string(hash),
		Role:               domain.RoleAdmin,
		Active:             true,
		MustChangePassword: true,
	}
	created, err = users.Ensure(ctx, admin)
	if err != nil {
		return fmt.Errorf("%s: admin: %w", op, err)
	}
	log.Info("bootstrap admin", slog.String("email", email), slog.Bool("created", created))
	return nil
}
