package domain

import "time"

// AuthToken maps a bearer token to its owning user. Token issuance and user
// registration are handled outside this service; this table is read-only here.
type AuthToken struct {
	Key       string    `gorm:"type:text;primaryKey" json:"key"`
	UserID    string    `gorm:"type:text;not null;index:idx_auth_tokens_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for AuthToken.
func (AuthToken) TableName() string {
	return "auth_tokens"
}
