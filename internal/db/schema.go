package db

import (
	"database/sql"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY,
    first_name TEXT,
    last_name TEXT,
    username TEXT,
    ref TEXT NOT NULL DEFAULT 'no_ref',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS user_progress (
    user_id INTEGER PRIMARY KEY REFERENCES users(id),
    step_index INTEGER NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const defaultSettings = `
INSERT OR IGNORE INTO settings (key, value) VALUES
    ('completion_message', '🎉 Ты прошёл все шаги! Спасибо, что был с нами.'),
    ('retry_message', '⚠️ Не удалось отправить сообщение, попробуйте ещё раз.'),
    ('unknown_action_message', '⏳ Эта кнопка пока не реализована'),
    ('invalid_goto_message', '⚠️ Некорректный номер шага');
`

// Sink tables are append-only and live apart from the funnel state, so the
// whole analytics schema can be skipped when the sink is disabled.
const sinkSchema = `
CREATE TABLE IF NOT EXISTS analytics_users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts DATETIME NOT NULL,
    user_id INTEGER NOT NULL,
    username TEXT,
    first_name TEXT,
    last_name TEXT,
    ref TEXT
);

CREATE TABLE IF NOT EXISTS analytics_steps (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts DATETIME NOT NULL,
    user_id INTEGER NOT NULL,
    step_index INTEGER NOT NULL,
    step_kind TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS analytics_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts DATETIME NOT NULL,
    user_id INTEGER NOT NULL,
    type TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '{}'
);
`

func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}

	_, err := db.Exec(defaultSettings)
	return err
}

func InitSinkSchema(db *sql.DB) error {
	_, err := db.Exec(sinkSchema)
	return err
}
