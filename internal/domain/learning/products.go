package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Flashcard is a front/back study card derived from one concept. Cards are
// independent of each other: deleting one never touches siblings.
type Flashcard struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FileID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"file_id"`
	OwnerUserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	ConceptID   *uuid.UUID `gorm:"type:uuid;index" json:"concept_id,omitempty"`

	Front string `gorm:"column:front;type:text;not null" json:"front"`
	Back  string `gorm:"column:back;type:text;not null" json:"back"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Flashcard) TableName() string { return "flashcard" }

// Quiz question kinds.
const (
	QuizKindMultipleChoice = "multiple_choice"
	QuizKindTrueFalse      = "true_false"
)

// QuizQuestion covers both multiple-choice (four options, one correct) and
// true/false items. Options is empty for true/false; Answer holds the option
// index or "true"/"false".
type QuizQuestion struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FileID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"file_id"`
	OwnerUserID uuid.UUID  `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	ConceptID   *uuid.UUID `gorm:"type:uuid;index" json:"concept_id,omitempty"`

	Kind        string         `gorm:"column:kind;not null" json:"kind"`
	Question    string         `gorm:"column:question;type:text;not null" json:"question"`
	Options     datatypes.JSON `gorm:"column:options;type:jsonb" json:"options,omitempty"`
	Answer      string         `gorm:"column:answer;not null" json:"answer"`
	Explanation string         `gorm:"column:explanation;type:text" json:"explanation,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (QuizQuestion) TableName() string { return "quiz_question" }
