package model

import "time"

// Document is an uploaded file owned by a user. VectorStoreID references the
// logical chunk store built during processing; it stays empty until the
// document has been processed.
type Document struct {
	ID            uint      `gorm:"column:document_id;primaryKey" json:"document_id"`
	UserID        *uint     `gorm:"column:user_id" json:"user_id,omitempty"`
	DocumentName  string    `gorm:"column:document_name;size:255;not null" json:"document_name"`
	DocumentType  string    `gorm:"column:document_type;size:50;not null" json:"document_type"`
	FilePath      string    `gorm:"column:file_path;size:255;not null" json:"file_path"`
	VectorStoreID *string   `gorm:"column:vector_store_id;size:255" json:"vector_store_id,omitempty"`
	UploadedAt    time.Time `gorm:"column:uploaded_at;autoCreateTime" json:"uploaded_at"`
	Processed     bool      `gorm:"column:processed;default:false" json:"processed"`

	User *User `gorm:"foreignKey:UserID;references:ID" json:"-"`
}

func (Document) TableName() string { return "documents" }
