// Package domain defines the persistence models behind the demo account
// endpoints. These types are mapped with GORM.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Account roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Account is a registered API user.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Email: unique login address, stored lowercased.
//   - Name: display name.
//   - Role: "member" or "admin" (enforced by DB constraint).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type Account struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Email     string         `json:"email"      gorm:"type:varchar(320);not null;uniqueIndex:idx_account_email"`
	Name      string         `json:"name"       gorm:"type:varchar(255);not null"`
	Role      string         `json:"role"       gorm:"type:varchar(16);not null;default:'member';check:role IN ('member','admin')"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Account.
func (Account) TableName() string { return "accounts" }

// ValidRole reports whether r is a known account role.
func ValidRole(r string) bool { return r == RoleMember || r == RoleAdmin }
