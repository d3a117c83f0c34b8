package db

import (
	"database/sql"

	"github.com/ad/go-telegram-funnel/internal/models"
)

type SettingsRepository struct {
	queue *Queue
}

func NewSettingsRepository(queue *Queue) *SettingsRepository {
	return &SettingsRepository{queue: queue}
}

func (r *SettingsRepository) Get(key string) (string, error) {
	result, err := r.queue.Execute(func(db *sql.DB) (interface{}, error) {
		var value string
		err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
		return value, err
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.queue.Execute(func(db *sql.DB) (interface{}, error) {
		_, err := db.Exec(`
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
		return nil, err
	})
	return err
}

// GetTexts collects the funnel's message texts. Missing keys keep zero
// values; the engine falls back to hardcoded defaults for those.
func (r *SettingsRepository) GetTexts() (*models.Texts, error) {
	result, err := r.queue.Execute(func(db *sql.DB) (interface{}, error) {
		rows, err := db.Query(`SELECT key, value FROM settings`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		texts := &models.Texts{}
		for rows.Next() {
			var key, value string
			if err := rows.Scan(&key, &value); err != nil {
				return nil, err
			}
			switch key {
			case "completion_message":
				texts.CompletionMessage = value
			case "retry_message":
				texts.RetryMessage = value
			case "unknown_action_message":
				texts.UnknownActionMessage = value
			case "invalid_goto_message":
				texts.InvalidGotoMessage = value
			}
		}
		return texts, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Texts), nil
}
