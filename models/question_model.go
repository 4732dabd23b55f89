package models

import (
	"time"
)

type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:50;not null;uniqueIndex" json:"name"`
}

type Question struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	UserID      uint    `gorm:"not null;index" json:"user_id"`
	Title       string  `gorm:"size:255;not null" json:"title"`
	Description string  `gorm:"type:text;not null" json:"description"`
	ImageURL    *string `gorm:"size:512" json:"image_url,omitempty"`

	Tags    []*Tag   `gorm:"many2many:question_tags;" json:"tags,omitempty"`
	Answers []Answer `json:"answers,omitempty"`
	User    User     `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Answer struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	QuestionID uint   `gorm:"not null;index" json:"question_id"`
	UserID     uint   `gorm:"not null" json:"user_id"`
	Content    string `gorm:"type:text;not null" json:"content"`

	User User `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
