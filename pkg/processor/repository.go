package processor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/patho-fhir/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RejectionModel is the audit row written for every rejected record.
type RejectionModel struct {
	ID         string            `gorm:"primaryKey;column:id" json:"id"`
	RecordID   string            `gorm:"column:record_id;index" json:"record_id"`
	RecordKind string            `gorm:"column:record_kind" json:"record_kind"`
	ErrorKind  string            `gorm:"column:error_kind;index" json:"error_kind"`
	Reason     string            `gorm:"column:reason" json:"reason"`
	Payload    datatypes.JSONMap `gorm:"column:payload" json:"payload"`
	CreatedAt  time.Time         `gorm:"column:created_at" json:"created_at"`
}

func (RejectionModel) TableName() string {
	return "rejected_records"
}

type RejectionRepository struct {
	db *gorm.DB
}

func NewRejectionRepository(db *gorm.DB) *RejectionRepository {
	return &RejectionRepository{db: db}
}

func (r *RejectionRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&RejectionModel{})
}

func (r *RejectionRepository) Save(ctx context.Context, rec *RejectionModel) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(rec).Error
}

// ListByRecord returns every rejection of one record, newest first.
func (r *RejectionRepository) ListByRecord(ctx context.Context, kind models.RecordKind, recordID string) ([]RejectionModel, error) {
	var rows []RejectionModel
	err := r.db.WithContext(ctx).
		Where("record_kind = ? AND record_id = ?", string(kind), recordID).
		Order("created_at desc").
		Find(&rows).Error
	return rows, err
}

// payloadMap keeps undecodable payloads as a raw string.
func payloadMap(payload []byte) datatypes.JSONMap {
	var m map[string]interface{}
	if err := json.Unmarshal(payload, &m); err != nil || m == nil {
		return datatypes.JSONMap{"raw": string(payload)}
	}
	return datatypes.JSONMap(m)
}
