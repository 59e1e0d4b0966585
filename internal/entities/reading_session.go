package entities

import "time"

// ReadingSession records one reading sitting.
type ReadingSession struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	BookID         string `gorm:"index;size:64" json:"book_id"`
	PagesRead      int    `json:"pages_read"`
	DurationMillis int64  `json:"duration_ms"`
	Timestamp      int64  `gorm:"index" json:"timestamp"` // epoch milliseconds
}

func (ReadingSession) TableName() string {
	return "reading_sessions"
}

func (s ReadingSession) Duration() time.Duration {
	return time.Duration(s.DurationMillis) * time.Millisecond
}
