package db

import (
	"database/sql"
	"time"

	"github.com/ad/go-telegram-funnel/internal/models"
)

// SinkRepository appends analytics rows. Rows are only ever inserted,
// never updated or deleted; the three tables mirror the Users/Steps/Events
// sheets of the operator's reporting workbook.
type SinkRepository struct {
	queue *Queue
}

func NewSinkRepository(queue *Queue) *SinkRepository {
	return &SinkRepository{queue: queue}
}

func (r *SinkRepository) AppendUser(ts time.Time, user models.User, ref string) error {
	_, err := r.queue.Execute(func(db *sql.DB) (interface{}, error) {
		_, err := db.Exec(`
			INSERT INTO analytics_users (ts, user_id, username, first_name, last_name, ref)
			VALUES (?, ?, ?, ?, ?, ?)
		`, ts, user.ID, user.Username, user.FirstName, user.LastName, ref)
		return nil, err
	})
	return err
}

func (r *SinkRepository) AppendStep(ts time.Time, userID int64, stepIndex int, stepKind models.StepKind) error {
	_, err := r.queue.Execute(func(db *sql.DB) (interface{}, error) {
		_, err := db.Exec(`
			INSERT INTO analytics_steps (ts, user_id, step_index, step_kind)
			VALUES (?, ?, ?, ?)
		`, ts, userID, stepIndex, stepKind)
		return nil, err
	})
	return err
}

func (r *SinkRepository) AppendEvent(ts time.Time, userID int64, eventType models.EventType, data string) error {
	_, err := r.queue.Execute(func(db *sql.DB) (interface{}, error) {
		_, err := db.Exec(`
			INSERT INTO analytics_events (ts, user_id, type, data)
			VALUES (?, ?, ?, ?)
		`, ts, userID, eventType, data)
		return nil, err
	})
	return err
}
