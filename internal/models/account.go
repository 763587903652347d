package models

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

var Roles = []Role{RoleUser, RoleVendor, RoleAdmin}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleVendor, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type AccountStatus string

const (
	AccountStatusInactive AccountStatus = "inactive"
	AccountStatusActive   AccountStatus = "active"
)

// Account is the durable record shared by users, vendors and admins. Each
// role lives in its own table; IsApproved only gates vendors.
type Account struct {
	ID           string
	Email        string
	PasswordHash []byte
	FullName     string
	Phone        string
	BusinessName string
	Category     string
	Role         Role
	IsVerified   bool
	IsApproved   bool
	Status       AccountStatus
	AvatarURL    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the registration payload held while a registration waits for
// its OTP. PasswordHash is already hashed when the profile is stored.
type Profile struct {
	Email        string `json:"email"`
	PasswordHash []byte `json:"passwordHash"`
	FullName     string `json:"fullName"`
	Phone        string `json:"phone,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
	Category     string `json:"category,omitempty"`
}

type LoginEvent struct {
	ID        string
	AccountID string
	Role      Role
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}
