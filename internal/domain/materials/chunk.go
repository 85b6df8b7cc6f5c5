package materials

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Chunk is the unit of retrieval: a token-sized slice of exactly one
// Segment, carrying its embedding and enough provenance to cite it.
type Chunk struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FileID    uuid.UUID `gorm:"type:uuid;not null;index" json:"file_id"`
	File      *File     `gorm:"constraint:OnDelete:CASCADE;foreignKey:FileID;references:ID" json:"-"`
	SegmentID uuid.UUID `gorm:"type:uuid;not null;index" json:"segment_id"`
	Segment   *Segment  `gorm:"constraint:OnDelete:CASCADE;foreignKey:SegmentID;references:ID" json:"-"`

	Ordinal    int    `gorm:"column:ordinal;not null" json:"ordinal"`
	Text       string `gorm:"column:text;type:text;not null" json:"text"`
	TokenCount int    `gorm:"column:token_count;not null;default:0" json:"token_count"`

	// Embedding is the raw vector as a jsonb float array. VectorID keys the
	// same vector in the external index.
	Embedding datatypes.JSON `gorm:"column:embedding;type:jsonb" json:"-"`
	VectorID  string         `gorm:"column:vector_id;index" json:"vector_id,omitempty"`

	Page     *int     `gorm:"column:page" json:"page,omitempty"`
	StartSec *float64 `gorm:"column:start_sec" json:"start_sec,omitempty"`
	EndSec   *float64 `gorm:"column:end_sec" json:"end_sec,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Chunk) TableName() string { return "material_chunk" }
