package models

// Role values assignable to a user.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account. Email and WalletAddress are
// pointers so that absent values stay NULL and do not collide on the
// unique indexes.
type User struct {
	BaseModel
	Username      string  `gorm:"uniqueIndex;size:64" json:"username"`
	Email         *string `gorm:"uniqueIndex;size:255" json:"email,omitempty"`
	PasswordHash  string  `json:"-"`
	WalletAddress *string `gorm:"uniqueIndex;size:42" json:"wallet_address,omitempty"`
	Role          string  `gorm:"size:16;default:user" json:"role"`
	Orders        []Order `json:"orders,omitempty"`
}

// PublicProfile returns the projection safe to hand to clients.
func (u *User) PublicProfile() map[string]any {
	profile := map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"role":       u.Role,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	}
	if u.Email != nil {
		profile["email"] = *u.Email
	}
	if u.WalletAddress != nil {
		profile["wallet_address"] = *u.WalletAddress
	}
	return profile
}
