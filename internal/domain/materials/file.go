package materials

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SourceKind identifies how a file's content is extracted.
type SourceKind string

const (
	SourceKindPDF     SourceKind = "pdf"
	SourceKindYouTube SourceKind = "youtube"
	SourceKindText    SourceKind = "text"
	SourceKindImage   SourceKind = "image"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceKindPDF, SourceKindYouTube, SourceKindText, SourceKindImage:
		return true
	}
	return false
}

// IsTimeCoded reports whether extraction output for this kind carries
// start/end seconds rather than page numbers.
func (k SourceKind) IsTimeCoded() bool { return k == SourceKindYouTube }

type File struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`

	DisplayName string     `gorm:"column:display_name;not null" json:"display_name"`
	SourceKind  SourceKind `gorm:"column:source_kind;not null;index" json:"source_kind"`
	SourceURI   string     `gorm:"column:source_uri" json:"source_uri"`
	StorageKey  string     `gorm:"column:storage_key" json:"storage_key"`
	MimeType    string     `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes   int64      `gorm:"column:size_bytes" json:"size_bytes"`

	Status Status `gorm:"column:status;not null;default:'uploaded';index" json:"status"`

	Language           string `gorm:"column:language;not null;default:'en'" json:"language"`
	ComprehensionLevel string `gorm:"column:comprehension_level;not null;default:'intermediate'" json:"comprehension_level"`

	// Duration is known for time-coded sources once metadata is fetched.
	DurationSec *float64 `gorm:"column:duration_sec" json:"duration_sec,omitempty"`

	ExtractedAt        *time.Time     `gorm:"column:extracted_at" json:"extracted_at,omitempty"`
	ExtractionWarnings datatypes.JSON `gorm:"column:extraction_warnings;type:jsonb" json:"extraction_warnings,omitempty"`
	FailureStage       string         `gorm:"column:failure_stage" json:"failure_stage,omitempty"`
	FailureReason      string         `gorm:"column:failure_reason" json:"failure_reason,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (File) TableName() string { return "material_file" }
