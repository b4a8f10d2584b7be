package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yeremiapane/table-manager/models"
	"golang.org/x/sync/errgroup"
)

// API is the subset of the table API the Manager needs. *Client implements it.
type API interface {
	List(ctx context.Context) ([]models.Table, error)
	Create(ctx context.Context, name string, status models.TableStatus) (*models.Table, error)
	Update(ctx context.Context, id, name string, status models.TableStatus) (*models.Table, error)
	Delete(ctx context.Context, id string) error
}

// MaxBulkCount matches the server's limit on one bulk create.
const MaxBulkCount = 500

// maxInFlight bounds the requests one bulk operation has open at a time.
const maxInFlight = 16

type Phase int

const (
	PhaseLoading Phase = iota
	PhaseReady
	// PhaseError is terminal: the initial load failed and is not retried.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Manager mirrors the server's table collection for one UI session. Its copy is
// advisory: local entries are only ever replaced by records the server returned.
//
// A Manager is driven from a single goroutine. Bulk operations fan requests out
// concurrently but apply their results after every request has settled.
//
// Invariant: every selected id belongs to a table in the mirror.
type Manager struct {
	api      API
	phase    Phase
	loadErr  error
	tables   []models.Table
	selected map[string]struct{}
	editing  *models.Table
}

func NewManager(api API) *Manager {
	return &Manager{
		api:      api,
		phase:    PhaseLoading,
		selected: make(map[string]struct{}),
	}
}

// Load fetches the collection once. A failure moves the Manager to PhaseError for
// good; later calls return the same error without fetching again.
func (m *Manager) Load(ctx context.Context) error {
	switch m.phase {
	case PhaseError:
		return m.loadErr
	case PhaseReady:
		return nil
	}

	tables, err := m.api.List(ctx)
	if err != nil {
		m.phase = PhaseError
		m.loadErr = fmt.Errorf("failed to fetch tables: %w", err)
		return m.loadErr
	}
	m.tables = tables
	m.phase = PhaseReady
	return nil
}

// Refresh replaces the mirror with a fresh fetch and drops selections of tables
// that no longer exist. On failure the current mirror is kept.
func (m *Manager) Refresh(ctx context.Context) error {
	if m.phase != PhaseReady {
		return ErrNotReady
	}
	tables, err := m.api.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch tables: %w", err)
	}
	m.tables = tables
	m.pruneSelection()
	return nil
}

func (m *Manager) Phase() Phase { return m.phase }

// Err is the load error once the Manager is in PhaseError.
func (m *Manager) Err() error { return m.loadErr }

func (m *Manager) Tables() []models.Table {
	out := make([]models.Table, len(m.tables))
	copy(out, m.tables)
	return out
}

// Selected returns the selected ids in table order.
func (m *Manager) Selected() []string {
	ids := make([]string, 0, len(m.selected))
	for _, t := range m.tables {
		if _, ok := m.selected[t.ID]; ok {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func (m *Manager) IsSelected(id string) bool {
	_, ok := m.selected[id]
	return ok
}

// AllSelected reports whether every table is selected, which is what the
// "select all" checkbox shows.
func (m *Manager) AllSelected() bool {
	return len(m.tables) > 0 && len(m.selected) == len(m.tables)
}

// Editing returns a copy of the table being edited, or nil.
func (m *Manager) Editing() *models.Table {
	if m.editing == nil {
		return nil
	}
	t := *m.editing
	return &t
}

// AddTable validates locally, then creates the table and appends the server's record.
func (m *Manager) AddTable(ctx context.Context, name string) (*models.Table, error) {
	if m.phase != PhaseReady {
		return nil, ErrNotReady
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: please enter a valid table name", ErrInvalidInput)
	}
	if m.hasName(name) {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	t, err := m.api.Create(ctx, name, models.StatusAvailable)
	if err != nil {
		return nil, err
	}
	m.tables = append(m.tables, *t)
	return t, nil
}

// BulkAddTables creates "{prefix} 1" .. "{prefix} count" with one request per name,
// up to maxInFlight at a time. The batch is refused before any request if a name already
// exists in the mirror. Every record the server returned is appended even when
// other requests failed; those come back in a *BulkError.
func (m *Manager) BulkAddTables(ctx context.Context, prefix string, count int) ([]models.Table, error) {
	if m.phase != PhaseReady {
		return nil, ErrNotReady
	}
	if strings.TrimSpace(prefix) == "" {
		return nil, fmt.Errorf("%w: please enter a valid table prefix", ErrInvalidInput)
	}
	if count < 1 || count > MaxBulkCount {
		return nil, fmt.Errorf("%w: please enter a number of tables between 1 and %d", ErrInvalidInput, MaxBulkCount)
	}

	names := models.BulkNames(prefix, count)
	var dups []string
	for _, name := range names {
		if m.hasName(name) {
			dups = append(dups, name)
		}
	}
	if len(dups) > 0 {
		return nil, &DuplicateNamesError{Names: dups}
	}

	results := make([]*models.Table, len(names))
	errs := make([]error, len(names))
	var g errgroup.Group
	g.SetLimit(maxInFlight)
	for i, name := range names {
		g.Go(func() error {
			results[i], errs[i] = m.api.Create(ctx, name, models.StatusAvailable)
			return nil
		})
	}
	_ = g.Wait()

	added := make([]models.Table, 0, len(names))
	bulkErr := &BulkError{Op: "create", Total: len(names)}
	for i, name := range names {
		if errs[i] != nil {
			bulkErr.Failures = append(bulkErr.Failures, BulkFailure{Key: name, Err: errs[i]})
			continue
		}
		added = append(added, *results[i])
	}
	m.tables = append(m.tables, added...)

	if len(bulkErr.Failures) > 0 {
		return added, bulkErr
	}
	return added, nil
}

// StartEdit puts a copy of the table with the given id into the editing slot.
func (m *Manager) StartEdit(id string) error {
	if m.phase != PhaseReady {
		return ErrNotReady
	}
	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t := m.tables[i]
	m.editing = &t
	return nil
}

func (m *Manager) CancelEdit() {
	m.editing = nil
}

// SaveEdit renames the table being edited and replaces it with the server's record.
// The editing slot is kept on failure so the user can retry.
func (m *Manager) SaveEdit(ctx context.Context, name string) (*models.Table, error) {
	if m.editing == nil {
		return nil, fmt.Errorf("%w: no table is being edited", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: please enter a valid table name", ErrInvalidInput)
	}

	t, err := m.api.Update(ctx, m.editing.ID, name, "")
	if err != nil {
		return nil, err
	}
	m.replace(*t)
	m.editing = nil
	return t, nil
}

// SetStatus changes the status of one table, keeping its name.
func (m *Manager) SetStatus(ctx context.Context, id string, status models.TableStatus) (*models.Table, error) {
	if m.phase != PhaseReady {
		return nil, ErrNotReady
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}
	i := m.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	t, err := m.api.Update(ctx, id, m.tables[i].Name, status)
	if err != nil {
		return nil, err
	}
	m.replace(*t)
	return t, nil
}

// DeleteTable deletes one table and drops it from the mirror and the selection.
func (m *Manager) DeleteTable(ctx context.Context, id string) error {
	if m.phase != PhaseReady {
		return ErrNotReady
	}
	if err := m.api.Delete(ctx, id); err != nil {
		return err
	}
	m.remove(map[string]struct{}{id: {}})
	return nil
}

// BulkDeleteSelected deletes every selected table, up to maxInFlight requests at a time.
// Tables that were deleted, or that the server no longer knows, leave the mirror and
// the selection. Other failures keep their rows and come back in a *BulkError.
func (m *Manager) BulkDeleteSelected(ctx context.Context) ([]string, error) {
	if m.phase != PhaseReady {
		return nil, ErrNotReady
	}
	ids := m.Selected()
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no tables selected for deletion", ErrInvalidInput)
	}

	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(maxInFlight)
	for i, id := range ids {
		g.Go(func() error {
			errs[i] = m.api.Delete(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	gone := make(map[string]struct{}, len(ids))
	deleted := make([]string, 0, len(ids))
	bulkErr := &BulkError{Op: "delete", Total: len(ids)}
	for i, id := range ids {
		switch {
		case errs[i] == nil:
			deleted = append(deleted, id)
			gone[id] = struct{}{}
		case errors.Is(errs[i], ErrNotFound):
			gone[id] = struct{}{}
			bulkErr.Failures = append(bulkErr.Failures, BulkFailure{Key: id, Err: errs[i]})
		default:
			bulkErr.Failures = append(bulkErr.Failures, BulkFailure{Key: id, Err: errs[i]})
		}
	}
	m.remove(gone)

	if len(bulkErr.Failures) > 0 {
		return deleted, bulkErr
	}
	return deleted, nil
}

// ToggleSelection flips the selection of one table.
func (m *Manager) ToggleSelection(id string) error {
	if m.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, ok := m.selected[id]; ok {
		delete(m.selected, id)
	} else {
		m.selected[id] = struct{}{}
	}
	return nil
}

// SelectAll clears the selection when every current table is selected and selects
// every current table otherwise. It looks only at the current state.
func (m *Manager) SelectAll() {
	if m.AllSelected() {
		m.selected = make(map[string]struct{})
		return
	}
	m.selected = make(map[string]struct{}, len(m.tables))
	for _, t := range m.tables {
		m.selected[t.ID] = struct{}{}
	}
}

func (m *Manager) hasName(name string) bool {
	key := models.NameKey(name)
	for _, t := range m.tables {
		if models.NameKey(t.Name) == key {
			return true
		}
	}
	return false
}

func (m *Manager) indexOf(id string) int {
	for i, t := range m.tables {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) replace(t models.Table) {
	if i := m.indexOf(t.ID); i >= 0 {
		m.tables[i] = t
	}
	if m.editing != nil && m.editing.ID == t.ID {
		m.editing = &t
	}
}

func (m *Manager) remove(ids map[string]struct{}) {
	kept := m.tables[:0]
	for _, t := range m.tables {
		if _, ok := ids[t.ID]; !ok {
			kept = append(kept, t)
		}
	}
	m.tables = kept
	for id := range ids {
		delete(m.selected, id)
	}
	if m.editing != nil {
		if _, ok := ids[m.editing.ID]; ok {
			m.editing = nil
		}
	}
	m.pruneSelection()
}

func (m *Manager) pruneSelection() {
	for id := range m.selected {
		if m.indexOf(id) < 0 {
			delete(m.selected, id)
		}
	}
	if m.editing != nil && m.indexOf(m.editing.ID) < 0 {
		m.editing = nil
	}
}
