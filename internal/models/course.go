package models

import "time"

// Course is the read-only binding between a course and the teacher that owns it.
// Course management lives in another service; quizzes only need the ownership lookup.
type Course struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeacherID uint      `gorm:"not null;index" json:"teacher_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
