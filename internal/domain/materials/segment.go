package materials

import (
	"time"

	"github.com/google/uuid"
)

// SourceSegment is the provider-neutral shape extraction providers emit
// before anything is persisted. Exactly one provenance family is set per
// segment: Page for documents, StartSec/EndSec for time-coded media.
type SourceSegment struct {
	Text string `json:"text"`
	// Document provenance
	Page *int `json:"page,omitempty"`
	// Audio/video provenance
	StartSec *float64 `json:"start_sec,omitempty"`
	EndSec   *float64 `json:"end_sec,omitempty"`
	// Confidence when providers return it
	Confidence *float64       `json:"confidence,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func PtrFloat(v float64) *float64 { return &v }

func PtrInt(v int) *int { return &v }

// Segment is a page- or time-bounded unit of a file's extracted content.
// Rows are written once during the storing stage and never updated after;
// they go away only when the owning file is deleted or reprocessed.
type Segment struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FileID uuid.UUID `gorm:"type:uuid;not null;index" json:"file_id"`
	File   *File     `gorm:"constraint:OnDelete:CASCADE;foreignKey:FileID;references:ID" json:"-"`

	Ordinal int    `gorm:"column:ordinal;not null" json:"ordinal"`
	Text    string `gorm:"column:text;type:text;not null" json:"text"`

	// Document provenance.
	Page *int `gorm:"column:page" json:"page,omitempty"`
	// Time-coded provenance.
	StartSec *float64 `gorm:"column:start_sec" json:"start_sec,omitempty"`
	EndSec   *float64 `gorm:"column:end_sec" json:"end_sec,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Segment) TableName() string { return "material_segment" }
