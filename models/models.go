// Package models defines the persistence schema for the query run log.
package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Session groups the runs of one CLI invocation or embedding process.
type Session struct {
	ID        string    `gorm:"primaryKey;type:varchar(20)"`
	StartedAt time.Time `gorm:"autoCreateTime"`
	EndedAt   *time.Time

	RunsCount int `gorm:"default:0"`

	// Client info (tool name, version, host)
	ClientInfo datatypes.JSON `gorm:"type:jsonb"`

	Runs []Run `gorm:"foreignKey:SessionID"`
}

// Run records one query execution against one file.
type Run struct {
	ID        string `gorm:"primaryKey;type:varchar(20)"`
	SessionID string `gorm:"type:varchar(20);index"`

	Language  string `gorm:"type:varchar(50);not null"`
	QueryName string `gorm:"type:varchar(100);not null"`
	File      string `gorm:"type:text"`

	// Result statistics
	Patterns   int `gorm:"default:0"`
	Matches    int `gorm:"default:0"`
	Captures   int `gorm:"default:0"`
	DurationMS int64

	// Per-capture-name hit counts
	CaptureCounts datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName customizations for cleaner names
func (Session) TableName() string { return "sessions" }
func (Run) TableName() string     { return "runs" }

// NewID creates a unique identifier with a prefix ("ses", "run").
func NewID(prefix string) string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(bytes))
}
