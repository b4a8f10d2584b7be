package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

type TableStatus string

const (
	StatusAvailable TableStatus = "available"
	StatusOccupied  TableStatus = "occupied"
	StatusReserved  TableStatus = "reserved"
)

// AllStatuses lists every status a table may be persisted with.
var AllStatuses = []TableStatus{StatusAvailable, StatusOccupied, StatusReserved}

var ErrInvalidStatus = errors.New("invalid table status")

// Valid reports whether s is one of the enumerated statuses.
func (s TableStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusOccupied, StatusReserved:
		return true
	}
	return false
}

// ParseStatus maps raw input to a TableStatus. Empty input means available.
func ParseStatus(raw string) (TableStatus, error) {
	s := TableStatus(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return StatusAvailable, nil
	}
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

type Table struct {
	ID        string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string      `gorm:"type:varchar(100);not null" json:"name"`
	NameKey   string      `gorm:"type:varchar(255);not null;uniqueIndex:idx_tables_name_key" json:"-"`
	Status    TableStatus `gorm:"type:varchar(20);not null;default:'available'" json:"status"`
	CreatedAt time.Time   `gorm:"not null;index" json:"createdAt"`
	UpdatedAt time.Time   `gorm:"not null" json:"updatedAt"`
}

// NameKey is the comparison form of a table name: trimmed and Unicode case folded.
// Accents are significant, so "Café" and "Cafe" are different names.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// BeforeSave keeps name_key in step with name and refuses unknown statuses.
func (t *Table) BeforeSave(tx *gorm.DB) error {
	t.Name = strings.TrimSpace(t.Name)
	t.NameKey = NameKey(t.Name)
	if t.Status == "" {
		t.Status = StatusAvailable
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	return nil
}

// BulkNames returns the candidate names "{prefix} 1" .. "{prefix} n".
func BulkNames(prefix string, count int) []string {
	if count < 1 {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	names := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		names = append(names, fmt.Sprintf("%s %d", prefix, i))
	}
	return names
}
