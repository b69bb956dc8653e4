package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is the persisted form of a lending event.
type EventRecord struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Seq        uint64            `gorm:"uniqueIndex;not null"`
	Type       string            `gorm:"size:64;index"`
	Account    string            `gorm:"size:96;index"`
	LoanID     *uint64           `gorm:"index"`
	Amount     string            `gorm:"size:80"`
	Attributes map[string]string `gorm:"serializer:json"`
	CreatedAt  time.Time
}

// TableName pins the table name independent of gorm's pluralisation rules.
func (EventRecord) TableName() string { return "lending_events" }

// AutoMigrate performs the schema migrations for the index.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{})
}
