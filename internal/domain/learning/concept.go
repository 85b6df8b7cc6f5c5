package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Concept is a key idea pulled from one file: a title/explanation pair with
// a source locator (page for documents, a start/end window for video).
// IsCustom marks user-authored concepts, which the pipeline never touches.
type Concept struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FileID      uuid.UUID `gorm:"type:uuid;not null;index" json:"file_id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`

	Title       string `gorm:"column:title;not null" json:"title"`
	Explanation string `gorm:"column:explanation;type:text;not null" json:"explanation"`

	Page     *int     `gorm:"column:page" json:"page,omitempty"`
	StartSec *float64 `gorm:"column:start_sec" json:"start_sec,omitempty"`
	EndSec   *float64 `gorm:"column:end_sec" json:"end_sec,omitempty"`

	IsCustom bool `gorm:"column:is_custom;not null;default:false" json:"is_custom"`

	SortIndex int            `gorm:"column:sort_index;not null;default:0" json:"sort_index"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Concept) TableName() string { return "key_concept" }

const (
	EdgeTypePrereq  = "prereq"
	EdgeTypeRelated = "related"
)

// ConceptEdge is a best-effort relation between two concepts of one file,
// proposed by the model after concepts persist and mirrored to the graph
// store when one is configured.
type ConceptEdge struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FileID        uuid.UUID `gorm:"type:uuid;not null;index" json:"file_id"`
	FromConceptID uuid.UUID `gorm:"type:uuid;not null;index" json:"from_concept_id"`
	ToConceptID   uuid.UUID `gorm:"type:uuid;not null;index" json:"to_concept_id"`

	// EdgeType is "prereq" or "related".
	EdgeType string  `gorm:"column:edge_type;not null" json:"edge_type"`
	Strength float64 `gorm:"column:strength;not null;default:0" json:"strength"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ConceptEdge) TableName() string { return "key_concept_edge" }
