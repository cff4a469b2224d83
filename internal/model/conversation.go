package model

import "time"

type Conversation struct {
	ID        uint      `gorm:"column:conversation_id;primaryKey" json:"conversation_id"`
	UserID    *uint     `gorm:"column:user_id" json:"user_id,omitempty"`
	Title     *string   `gorm:"column:title;size:255" json:"title,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	User *User `gorm:"foreignKey:UserID;references:ID" json:"-"`
}

func (Conversation) TableName() string { return "conversations" }
