package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/yeremiapane/table-manager/models"
	"gorm.io/gorm"
)

// GormTableStore is the gorm backed TableStore. Name uniqueness is enforced by the
// unique index on tables.name_key, so a concurrent insert of the same name fails here
// even when every caller's pre-check passed.
type GormTableStore struct {
	db  *gorm.DB
	now func() time.Time
}

type Option func(*GormTableStore)

// WithClock overrides the timestamp source used for createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *GormTableStore) { s.now = now }
}

func NewGormTableStore(db *gorm.DB, opts ...Option) *GormTableStore {
	if db == nil {
		panic("database connection cannot be nil for GormTableStore")
	}
	s := &GormTableStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates or updates the tables schema. On MySQL name_key is switched to a
// binary collation so the unique index compares exactly what NameKey produced.
func (s *GormTableStore) Migrate() error {
	if err := s.db.AutoMigrate(&models.Table{}); err != nil {
		return fmt.Errorf("gorm: migrate tables: %w", err)
	}
	if s.db.Dialector.Name() == "mysql" {
		err := s.db.Exec("ALTER TABLE tables MODIFY name_key varchar(255) NOT NULL COLLATE utf8mb4_bin").Error
		if err != nil {
			return fmt.Errorf("gorm: set name_key collation: %w", err)
		}
	}
	return nil
}

func (s *GormTableStore) FindAll(ctx context.Context) ([]models.Table, error) {
	tables := make([]models.Table, 0)
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&tables).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find all tables: %w", translateError(err))
	}
	return tables, nil
}

func (s *GormTableStore) FindByID(ctx context.Context, id string) (*models.Table, error) {
	var t models.Table
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("gorm: find table by id %q: %w", id, translateError(err))
	}
	return &t, nil
}

func (s *GormTableStore) FindByName(ctx context.Context, name string) (*models.Table, error) {
	var t models.Table
	if err := s.db.WithContext(ctx).Where("name_key = ?", models.NameKey(name)).First(&t).Error; err != nil {
		return nil, fmt.Errorf("gorm: find table by name %q: %w", name, translateError(err))
	}
	return &t, nil
}

func (s *GormTableStore) Insert(ctx context.Context, name string, status models.TableStatus) (*models.Table, error) {
	now := s.now()
	t := &models.Table{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, fmt.Errorf("gorm: insert table %q: %w", name, translateError(err))
	}
	return t, nil
}

func (s *GormTableStore) Update(ctx context.Context, id string, fields TableUpdate) (*models.Table, error) {
	updates := map[string]interface{}{"updated_at": s.now()}
	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		updates["name"] = name
		updates["name_key"] = models.NameKey(name)
	}
	if fields.Status != nil {
		if !fields.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", models.ErrInvalidStatus, *fields.Status)
		}
		updates["status"] = *fields.Status
	}

	var updated models.Table
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// MySQL reports changed rows rather than matched rows, so existence is checked first.
		if err := tx.First(&updated, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Table{}).Where("id = ?", id).UpdateColumns(updates).Error; err != nil {
			return err
		}
		return tx.First(&updated, "id = ?", id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("gorm: update table %q: %w", id, translateError(err))
	}
	return &updated, nil
}

func (s *GormTableStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Table{})
	if res.Error != nil {
		return fmt.Errorf("gorm: delete table %q: %w", id, translateError(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("gorm: delete table %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *GormTableStore) CountByStatus(ctx context.Context) (map[models.TableStatus]int64, error) {
	var rows []struct {
		Status models.TableStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Table{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: count tables by status: %w", translateError(err))
	}

	counts := make(map[models.TableStatus]int64, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		counts[st] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// translateError maps driver errors onto the repository sentinels.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateName
	case errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return ErrDuplicateName
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateName
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrDuplicateName
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
