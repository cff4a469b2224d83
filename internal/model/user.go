package model

import "time"

type User struct {
	ID           uint       `gorm:"column:user_id;primaryKey" json:"user_id"`
	Username     string     `gorm:"column:username;size:50;not null;uniqueIndex" json:"username"`
	Email        string     `gorm:"column:email;size:100;not null;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"column:password_hash;size:255;not null" json:"-"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	LastLogin    *time.Time `gorm:"column:last_login" json:"last_login,omitempty"`
}

func (User) TableName() string { return "users" }
