package model

import "time"

// Message is a single chat turn. IsUser distinguishes user turns from
// assistant turns.
type Message struct {
	ID             uint      `gorm:"column:message_id;primaryKey" json:"message_id"`
	ConversationID *uint     `gorm:"column:conversation_id" json:"conversation_id,omitempty"`
	IsUser         bool      `gorm:"column:is_user;not null" json:"is_user"`
	Content        string    `gorm:"column:content;type:text;not null" json:"content"`
	Timestamp      time.Time `gorm:"column:timestamp;autoCreateTime" json:"timestamp"`

	Conversation *Conversation `gorm:"foreignKey:ConversationID;references:ID" json:"-"`
}

func (Message) TableName() string { return "messages" }
