package models

// UserModel is a presenter account. Students are not persisted; their
// identities are opaque strings supplied by the identity provider.
type UserModel struct {
	Base
	Username     string `json:"username" gorm:"uniqueIndex;size:190;not null"`
	Name         string `json:"name"`
	PasswordHash string `json:"-" gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }
