package model

import "time"

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User — зарегистрированный покупатель.
type User struct {
	ID       int64   `gorm:"primaryKey" json:"id"`
	Username string  `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email    string  `gorm:"size:100;not null;uniqueIndex" json:"email"` // всегда в нижнем регистре
	Phone    *string `gorm:"size:15" json:"phone"`
	Password string  `gorm:"not null" json:"-"` // bcrypt-хеш
	Role     string  `gorm:"size:10;not null;default:user" json:"role"`

	ProfileImage string `gorm:"size:500" json:"profile_image"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PhoneValue возвращает телефон или пустую строку.
func (u *User) PhoneValue() string {
	if u == nil || u.Phone == nil {
		return ""
	}
	return *u.Phone
}
