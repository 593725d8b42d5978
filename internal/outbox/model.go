package outbox

// EntryStatus tracks the delivery lifecycle of one outbox entry.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusFailed    EntryStatus = "failed"
)

// Entry is one pending remote-persistence operation. Entries are written in
// the same transaction scope as the local mutation they mirror and delivered
// later by the worker, so a crashed process never loses a coaching write.
type Entry struct {
	EntryID            string      `gorm:"column:entry_id;primaryKey;size:190;not null"`
	Collection         string      `gorm:"column:collection;size:190;not null"`
	RecordID           string      `gorm:"column:record_id;size:190;not null"`
	PayloadJSON        string      `gorm:"column:payload_json;type:text;not null"`
	Attempts           int         `gorm:"column:attempts;not null;default:0"`
	MaxAttempts        int         `gorm:"column:max_attempts;not null;default:5"`
	NextAttemptSeconds int64       `gorm:"column:next_attempt_at_s;not null;index:idx_outbox_due,priority:2"`
	Status             EntryStatus `gorm:"column:status;size:16;not null;default:'pending';index:idx_outbox_due,priority:1"`
	LastError          string      `gorm:"column:last_error;size:512;not null;default:''"`
	CreatedAtSeconds   int64       `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds   int64       `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "outbox_entries"
}
