package db

import (
	"database/sql"
)

// ProgressRepository is the durable user → step index map. Set is an
// upsert: the last write for a user wins, which is exactly the consistency
// the engine is allowed to assume.
type ProgressRepository struct {
	queue *Queue
}

func NewProgressRepository(queue *Queue) *ProgressRepository {
	return &ProgressRepository{queue: queue}
}

func (r *ProgressRepository) Get(userID int64) (int, bool, error) {
	result, err := r.queue.Execute(func(db *sql.DB) (interface{}, error) {
		var index int
		err := db.QueryRow(`
			SELECT step_index FROM user_progress WHERE user_id = ?
		`, userID).Scan(&index)
		return index, err
	})
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return result.(int), true, nil
}

func (r *ProgressRepository) Set(userID int64, index int) error {
	_, err := r.queue.Execute(func(db *sql.DB) (interface{}, error) {
		_, err := db.Exec(`
			INSERT INTO user_progress (user_id, step_index, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(user_id) DO UPDATE SET
				step_index = excluded.step_index,
				updated_at = excluded.updated_at
		`, userID, index)
		return nil, err
	})
	return err
}

func (r *ProgressRepository) LoadAll() (map[int64]int, error) {
	result, err := r.queue.Execute(func(db *sql.DB) (interface{}, error) {
		rows, err := db.Query(`SELECT user_id, step_index FROM user_progress`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		all := make(map[int64]int)
		for rows.Next() {
			var userID int64
			var index int
			if err := rows.Scan(&userID, &index); err != nil {
				return nil, err
			}
			all[userID] = index
		}
		return all, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.(map[int64]int), nil
}
