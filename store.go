package main

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VerificationRecord is one audited signature check.
//
// MessageDigest is the hex-encoded magic hash of the message so the raw
// text never has to be queried to correlate requests.
type VerificationRecord struct {
	ID            uint           `gorm:"primaryKey"`
	Address       string         `gorm:"column:address;index:idx_verifications_address"`
	MessageDigest string         `gorm:"column:message_digest"`
	Message       string         `gorm:"column:message"`
	Signature     string         `gorm:"column:signature"`
	Valid         bool           `gorm:"column:valid"`
	Reason        string         `gorm:"column:reason"`
	Params        datatypes.JSON `gorm:"column:params"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
}

func (VerificationRecord) TableName() string {
	return "verification_records"
}

// RecordParams is the network context stored alongside each record.
type RecordParams struct {
	Network string `json:"network"`
}

// RecordStore persists verification outcomes.
type RecordStore struct {
	db *gorm.DB
}

func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{db: db}
}

// Save appends a verification outcome to the audit log.
func (s *RecordStore) Save(address, digest, message, signature string, valid bool, reason, network string) error {
	params, err := json.Marshal(RecordParams{Network: network})
	if err != nil {
		return errors.Wrap(err, "failed to marshal record params")
	}

	record := &VerificationRecord{
		Address:       address,
		MessageDigest: digest,
		Message:       message,
		Signature:     signature,
		Valid:         valid,
		Reason:        reason,
		Params:        params,
		CreatedAt:     time.Now(),
	}
	return errors.Wrap(s.db.Create(record).Error, "failed to save verification record")
}

// Recent returns the newest records, capped at limit. A non-positive limit
// falls back to a page of 100.
func (s *RecordStore) Recent(limit int) ([]VerificationRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var records []VerificationRecord
	err := s.db.Order("id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query verification records")
	}
	return records, nil
}
