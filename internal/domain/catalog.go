package domain

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Department struct {
	ID                int64      `json:"id" db:"id"`
	Description       string     `json:"description" db:"description"`
	SubscriptionCount int        `json:"subscription_count" db:"-"`
	DeletedAt         *time.Time `json:"-" db:"deleted_at"`
}

type DepartmentInput struct {
	Description string `json:"description"`
}

func (in *DepartmentInput) Validate() error {
	in.Description = strings.TrimSpace(in.Description)
	if len(in.Description) < 2 {
		return Validation("description must have at least 2 characters")
	}
	return nil
}

// Service is a third-party vendor subscriptions are bought from.
type Service struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	Name              string     `json:"name" db:"name"`
	Website           *string    `json:"website" db:"website"`
	SubscriptionCount int        `json:"subscription_count" db:"-"`
	DeletedAt         *time.Time `json:"-" db:"deleted_at"`
}

type ServiceInput struct {
	Name    string  `json:"name"`
	Website *string `json:"website"`
}

func (in *ServiceInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if len(in.Name) < 2 {
		return Validation("name must have at least 2 characters")
	}
	if in.Website != nil {
		site := strings.TrimSpace(*in.Website)
		if site == "" {
			in.Website = nil
			return nil
		}
		u, err := url.ParseRequestURI(site)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Validation("website must be an absolute http(s) URL")
		}
		in.Website = &site
	}
	return nil
}

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleViewer  Role = "VIEWER"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleViewer
}

type User struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	Name               string     `json:"name" db:"name"`
	Email              string     `json:"email" db:"email"`
	PasswordHash       string     `json:"-" db:"password_hash"`
	Role               Role       `json:"role" db:"role"`
	Active             bool       `json:"active" db:"active"`
	MustChangePassword bool       `json:"must_change_password" db:"must_change_password"`
	DeletedAt          *time.Time `json:"-" db:"deleted_at"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

const MinPasswordLen = 8

// UserInput is the admin-supplied payload for a new account.
type UserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

func (in *UserInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if len(in.Name) < 2 {
		return Validation("name must have at least 2 characters")
	}
	at := strings.IndexByte(in.Email, '@')
	if at < 1 || at == len(in.Email)-1 {
		return Validation("email is invalid")
	}
	if len(in.Password) < MinPasswordLen {
		return Validation("password must have at least 8 characters")
	}
	if !in.Role.Valid() {
		return Validation("role must be one of ADMIN, MANAGER, VIEWER")
	}
	return nil
}
