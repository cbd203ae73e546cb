package model

import (
	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin  UserRole = "ADMIN"
	UserRoleAgent  UserRole = "AGENT"
	UserRoleViewer UserRole = "VIEWER"
)

type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   UserRole
}

func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

// CanLocate reports whether the user may submit photos for matching.
// Viewers only read past searches.
func (p Principal) CanLocate() bool {
	return p.Role == UserRoleAdmin || p.Role == UserRoleAgent
}

// CanRead reports whether the user may read a search owned by ownerID.
func (p Principal) CanRead(ownerID uuid.UUID) bool {
	return p.IsAdmin() || p.UserID == ownerID
}
