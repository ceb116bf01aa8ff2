package audit

import (
	"time"

	"gorm.io/gorm"
)

// Entity type tags used by the recorder's consumers.
const (
	EntityVerificationRequest = "verification_request"
	EntityDataRoom            = "data_room"
)

// Entry is one append-only audit row. Seq is a monotone sequence that
// breaks timestamp ties; ordering is by insertion.
type Entry struct {
	Seq            uint64    `gorm:"primaryKey;autoIncrement" json:"seq"`
	EntityType     string    `gorm:"not null;index:idx_history_entity,priority:1" json:"entity_type"`
	EntityID       uint      `gorm:"not null;index:idx_history_entity,priority:2" json:"entity_id"`
	Action         string    `gorm:"not null" json:"action"`
	ActionByID     uint      `json:"action_by_id"`
	ActionByType   string    `json:"action_by_type"`
	PreviousStatus *string   `json:"previous_status"`
	NewStatus      *string   `json:"new_status"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Entry) TableName() string { return "history_entries" }

// Recorder appends history rows. There is no update or delete operation;
// both workflow components call Record inside their own transaction so a
// failed history write rolls back the state change with it.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends a single entry using the caller's transaction handle.
func (r *Recorder) Record(tx *gorm.DB, e *Entry) error {
	return tx.Create(e).Error
}

// List returns entries for one entity, newest first.
func (r *Recorder) List(tx *gorm.DB, entityType string, entityID uint) ([]Entry, error) {
	var entries []Entry
	err := tx.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("seq DESC").
		Find(&entries).Error
	return entries, err
}
