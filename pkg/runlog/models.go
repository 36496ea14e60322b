package runlog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Run is one row of batch-job run history: the codec parameters used
// and the result of running that job.
type Run struct {
	ID         string    `gorm:"primarykey;size:36" json:"id"`
	JobName    string    `gorm:"index;not null" json:"job_name"`
	Mode       string    `gorm:"not null" json:"mode"` // "encode" or "decode"
	K          int       `gorm:"not null" json:"k"`
	Polys      string    `gorm:"not null" json:"polys"` // comma-separated octal
	DoTail     bool      `gorm:"not null" json:"do_tail"`
	Recursive  bool      `gorm:"not null" json:"recursive"`
	BitsIn     int       `gorm:"not null" json:"bits_in"`
	BitsOut    int       `gorm:"not null" json:"bits_out"`
	NumErrs    uint32    `gorm:"not null" json:"num_errs"`
	DurationMS int64     `gorm:"not null" json:"duration_ms"`
	StartedAt  time.Time `gorm:"index;not null" json:"started_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for Run.
func (Run) TableName() string {
	return "runs"
}

// BeforeCreate assigns a UUID and creation timestamp if not already set.
func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = r.CreatedAt
	}
	return nil
}
