package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-manager/models"
	"github.com/yeremiapane/table-manager/repository"
	"github.com/yeremiapane/table-manager/utils"
	"golang.org/x/sync/errgroup"
)

const (
	MaxNameLength          = 100
	MaxBulkCount           = 500
	DefaultBulkConcurrency = 8
)

// TableStats counts tables per status.
type TableStats struct {
	Available int64 `json:"available"`
	Occupied  int64 `json:"occupied"`
	Reserved  int64 `json:"reserved"`
	Total     int64 `json:"total"`
}

// TableService holds the table collection rules on top of a TableStore.
type TableService struct {
	store           repository.TableStore
	bulkConcurrency int
}

// NewTableService creates a TableService. A bulkConcurrency below 1 falls back to
// DefaultBulkConcurrency.
func NewTableService(store repository.TableStore, bulkConcurrency int) *TableService {
	if store == nil {
		panic("TableStore cannot be nil for TableService")
	}
	if bulkConcurrency < 1 {
		bulkConcurrency = DefaultBulkConcurrency
	}
	return &TableService{store: store, bulkConcurrency: bulkConcurrency}
}

// List returns every table, newest first.
func (s *TableService) List(ctx context.Context) ([]models.Table, error) {
	tables, err := s.store.FindAll(ctx)
	if err != nil {
		utils.ErrorLogger.WithError(err).Error("List tables: store error")
		return nil, mapStoreError(err)
	}
	return tables, nil
}

func (s *TableService) Get(ctx context.Context, id string) (*models.Table, error) {
	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return t, nil
}

// Create adds one table. The duplicate pre-check only gives fast feedback; the store's
// unique index is what actually rejects a name created concurrently.
func (s *TableService) Create(ctx context.Context, name, status string) (*models.Table, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	st, err := models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	logCtx := utils.InfoLogger.WithFields(logrus.Fields{"name": name, "status": st})

	existing, err := s.store.FindByName(ctx, name)
	switch {
	case err == nil:
		logCtx.Warn("Create table: name already taken")
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, existing.Name)
	case !errors.Is(err, repository.ErrNotFound):
		utils.ErrorLogger.WithError(err).WithField("name", name).Error("Create table: pre-check failed")
		return nil, mapStoreError(err)
	}

	t, err := s.store.Insert(ctx, name, st)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			logCtx.Warn("Create table: name taken concurrently")
		} else {
			utils.ErrorLogger.WithError(err).WithField("name", name).Error("Create table: insert failed")
		}
		return nil, mapStoreError(err)
	}

	logCtx.WithField("id", t.ID).Info("Table created")
	return t, nil
}

// BulkCreate creates "{prefix} 1" .. "{prefix} count". The whole batch is rejected
// with a DuplicateNamesError if any candidate collides with an existing name. Once
// accepted, inserts run concurrently and independently: the returned tables are the
// ones persisted, and a *BulkError lists the names that failed.
func (s *TableService) BulkCreate(ctx context.Context, prefix string, count int) ([]models.Table, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("%w: table prefix is required", ErrInvalidInput)
	}
	if count < 1 || count > MaxBulkCount {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidInput, MaxBulkCount)
	}
	names := models.BulkNames(prefix, count)
	if _, err := validateName(names[len(names)-1]); err != nil {
		return nil, err
	}
	logCtx := utils.InfoLogger.WithFields(logrus.Fields{"prefix": prefix, "count": count})

	existing, err := s.store.FindAll(ctx)
	if err != nil {
		utils.ErrorLogger.WithError(err).Error("Bulk create: pre-check failed")
		return nil, mapStoreError(err)
	}
	taken := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		taken[models.NameKey(t.Name)] = struct{}{}
	}
	var dups []string
	for _, name := range names {
		if _, ok := taken[models.NameKey(name)]; ok {
			dups = append(dups, name)
		}
	}
	if len(dups) > 0 {
		logCtx.WithField("duplicates", dups).Warn("Bulk create rejected")
		return nil, &DuplicateNamesError{Names: dups}
	}

	results := make([]*models.Table, len(names))
	errs := make([]error, len(names))
	var g errgroup.Group
	g.SetLimit(s.bulkConcurrency)
	for i, name := range names {
		g.Go(func() error {
			results[i], errs[i] = s.store.Insert(ctx, name, models.StatusAvailable)
			return nil
		})
	}
	_ = g.Wait()

	created := make([]models.Table, 0, len(names))
	bulkErr := &BulkError{Op: "create", Total: len(names)}
	for i, name := range names {
		if errs[i] != nil {
			bulkErr.add(name, mapStoreError(errs[i]))
			continue
		}
		created = append(created, *results[i])
	}

	if len(bulkErr.Failures) > 0 {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"prefix":  prefix,
			"created": len(created),
			"failed":  bulkErr.Keys(),
		}).Error("Bulk create partially failed")
		return created, bulkErr
	}
	logCtx.Info("Bulk create completed")
	return created, nil
}

// Update renames a table and optionally changes its status. An empty status keeps
// the current one. Renaming onto another table's name is rejected.
func (s *TableService) Update(ctx context.Context, id, name, status string) (*models.Table, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	fields := repository.TableUpdate{Name: &name}
	if strings.TrimSpace(status) != "" {
		st, err := models.ParseStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		fields.Status = &st
	}

	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if models.NameKey(name) != models.NameKey(current.Name) {
		other, err := s.store.FindByName(ctx, name)
		switch {
		case err == nil && other.ID != id:
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, other.Name)
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, mapStoreError(err)
		}
	}

	t, err := s.store.Update(ctx, id, fields)
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("id", id).Warn("Update table failed")
		return nil, mapStoreError(err)
	}
	utils.InfoLogger.WithFields(logrus.Fields{"id": t.ID, "name": t.Name, "status": t.Status}).Info("Table updated")
	return t, nil
}

func (s *TableService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return mapStoreError(err)
	}
	utils.InfoLogger.WithField("id", id).Info("Table deleted")
	return nil
}

// BulkDelete deletes every id independently and concurrently. It returns the ids that
// were deleted; failures, including ids that were already gone, come back as a
// *BulkError and do not block the others.
func (s *TableService) BulkDelete(ctx context.Context, ids []string) ([]string, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no table ids given", ErrInvalidInput)
	}

	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(s.bulkConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			errs[i] = s.store.Delete(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	deleted := make([]string, 0, len(ids))
	bulkErr := &BulkError{Op: "delete", Total: len(ids)}
	for i, id := range ids {
		if errs[i] != nil {
			bulkErr.add(id, mapStoreError(errs[i]))
			continue
		}
		deleted = append(deleted, id)
	}

	logCtx := utils.InfoLogger.WithFields(logrus.Fields{"requested": len(ids), "deleted": len(deleted)})
	if len(bulkErr.Failures) > 0 {
		logCtx.WithField("failed", bulkErr.Keys()).Warn("Bulk delete partially failed")
		return deleted, bulkErr
	}
	logCtx.Info("Bulk delete completed")
	return deleted, nil
}

// Stats counts tables per status.
func (s *TableService) Stats(ctx context.Context) (TableStats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return TableStats{}, mapStoreError(err)
	}
	stats := TableStats{
		Available: counts[models.StatusAvailable],
		Occupied:  counts[models.StatusOccupied],
		Reserved:  counts[models.StatusReserved],
	}
	stats.Total = stats.Available + stats.Occupied + stats.Reserved
	return stats, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: table name is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: table name longer than %d characters", ErrInvalidInput, MaxNameLength)
	}
	return name, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
