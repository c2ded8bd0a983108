package db

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/termfx/treequery/models"
)

// RunLog records query executions under one session.
type RunLog struct {
	db      *gorm.DB
	session *models.Session
}

// NewRunLog opens a session. clientInfo is stored as JSON and may be nil.
func NewRunLog(db *gorm.DB, clientInfo map[string]any) (*RunLog, error) {
	session := &models.Session{ID: models.NewID("ses")}
	if clientInfo != nil {
		raw, err := json.Marshal(clientInfo)
		if err != nil {
			return nil, fmt.Errorf("encoding client info: %w", err)
		}
		session.ClientInfo = datatypes.JSON(raw)
	}
	if err := db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &RunLog{db: db, session: session}, nil
}

// SessionID returns the id of the open session.
func (l *RunLog) SessionID() string {
	return l.session.ID
}

// Record persists one run and bumps the session counter. captureCounts maps
// capture names to hit counts.
func (l *RunLog) Record(language, queryName, file string, patterns, matches, captures int,
	duration time.Duration, captureCounts map[string]int,
) error {
	run := &models.Run{
		ID:         models.NewID("run"),
		SessionID:  l.session.ID,
		Language:   language,
		QueryName:  queryName,
		File:       file,
		Patterns:   patterns,
		Matches:    matches,
		Captures:   captures,
		DurationMS: duration.Milliseconds(),
	}
	if captureCounts != nil {
		raw, err := json.Marshal(captureCounts)
		if err != nil {
			return fmt.Errorf("encoding capture counts: %w", err)
		}
		run.CaptureCounts = datatypes.JSON(raw)
	}

	return l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("creating run: %w", err)
		}
		return tx.Model(l.session).
			UpdateColumn("runs_count", gorm.Expr("runs_count + 1")).Error
	})
}

// Close stamps the session's end time.
func (l *RunLog) Close() error {
	now := time.Now()
	return l.db.Model(l.session).Update("ended_at", &now).Error
}
