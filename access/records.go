package access

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrRecordNotFound is returned when an identity has no authorization record.
var ErrRecordNotFound = errors.New("authorization record not found")

// Record is one remote authorization entry. DeviceID transitions once from
// empty to set (first-use binding) and is compared, never overwritten, after
// that.
type Record struct {
	Identity   string
	LicenseKey string
	Paid       bool
	DeviceID   string
}

// RecordStore abstracts the remote authorization datastore: point read by
// identity and a single-field device binding update.
type RecordStore interface {
	Fetch(ctx context.Context, identity string) (*Record, error)
	BindDevice(ctx context.Context, identity, deviceID string) error
}

// AuthRecordRow is the persisted form of an authorization record.
type AuthRecordRow struct {
	gorm.Model
	Identity   string `gorm:"uniqueIndex;not null"`
	LicenseKey string `gorm:"not null"`
	Paid       bool   `gorm:"default:false"`
	DeviceID   string `gorm:"index"`
}

// GormRecordStore implements RecordStore on a relational database.
type GormRecordStore struct {
	db *gorm.DB
}

// NewGormRecordStore opens the authorization record store.
func NewGormRecordStore(storeType, connection string) (*GormRecordStore, error) {
	var dialector gorm.Dialector
	switch storeType {
	case "sqlite":
		dialector = sqlite.Open(connection)
	case "postgres":
		dialector = postgres.Open(connection)
	default:
		return nil, fmt.Errorf("unsupported record store type: %s", storeType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to record store: %w", err)
	}

	if err := db.AutoMigrate(&AuthRecordRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate record store schema: %w", err)
	}

	return &GormRecordStore{db: db}, nil
}

// Fetch returns the record for an identity, or ErrRecordNotFound.
func (s *GormRecordStore) Fetch(ctx context.Context, identity string) (*Record, error) {
	var row AuthRecordRow
	if err := s.db.WithContext(ctx).Where("identity = ?", identity).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to fetch authorization record: %w", err)
	}

	return &Record{
		Identity:   row.Identity,
		LicenseKey: row.LicenseKey,
		Paid:       row.Paid,
		DeviceID:   row.DeviceID,
	}, nil
}

// BindDevice sets the record's device field. Only called on first use, when
// the field is still empty.
func (s *GormRecordStore) BindDevice(ctx context.Context, identity, deviceID string) error {
	result := s.db.WithContext(ctx).Model(&AuthRecordRow{}).
		Where("identity = ? AND (device_id = '' OR device_id IS NULL)", identity).
		Update("device_id", deviceID)
	if result.Error != nil {
		return fmt.Errorf("failed to bind device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("device binding raced or record missing for %s", identity)
	}
	return nil
}

// Upsert writes a record; used for provisioning and tests.
func (s *GormRecordStore) Upsert(ctx context.Context, record Record) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&AuthRecordRow{}).Where("identity = ?", record.Identity).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check for record: %w", err)
	}

	if count == 0 {
		row := AuthRecordRow{
			Identity:   record.Identity,
			LicenseKey: record.LicenseKey,
			Paid:       record.Paid,
			DeviceID:   record.DeviceID,
		}
		return s.db.WithContext(ctx).Create(&row).Error
	}

	updates := map[string]interface{}{
		"license_key": record.LicenseKey,
		"paid":        record.Paid,
		"device_id":   record.DeviceID,
	}
	return s.db.WithContext(ctx).Model(&AuthRecordRow{}).Where("identity = ?", record.Identity).Updates(updates).Error
}
