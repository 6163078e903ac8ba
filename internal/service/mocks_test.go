package service

import (
	"context"
	"sync"
	"time"

	"github.com/bigkaa/sheetstore/internal/domain/model"
	"github.com/bigkaa/sheetstore/internal/repository"
)

// --- Моки репозиториев для unit-тестов ---

// mockRowRepo — мок RowRepository.
type mockRowRepo struct {
	createFn              func(ctx context.Context, row *model.SheetRow) error
	createBatchFn         func(ctx context.Context, rows []*model.SheetRow) error
	getByIDFn             func(ctx context.Context, id int64) (*model.SheetRow, error)
	listLiveFn            func(ctx context.Context, fileName, sheetName string, limit, offset int) ([]*model.SheetRow, error)
	countLiveFn           func(ctx context.Context, fileName, sheetName string) (int, error)
	listAsOfFn            func(ctx context.Context, fileName, sheetName string, asOf time.Time) ([]*model.SheetRow, error)
	updateVersionedFn     func(ctx context.Context, row *model.SheetRow, expectedVersion int) error
	softDeleteFn          func(ctx context.Context, id int64, actor string) error
	softDeleteSheetFn     func(ctx context.Context, fileName, sheetName, actor string) (int, error)
	softDeleteFileFn      func(ctx context.Context, fileName, actor string) (int, error)
	maxRowIndexFn         func(ctx context.Context, fileName, sheetName string) (int, error)
	listModifiedBetweenFn func(ctx context.Context, fileName, sheetName string, from, to time.Time) ([]*model.SheetRow, error)
	listChangeInfoFn      func(ctx context.Context, fileName string) ([]*model.RowChangeInfo, error)
	listRowVersionsFn     func(ctx context.Context, rowID int64) ([]*model.SheetRow, error)
}

func (m *mockRowRepo) Create(ctx context.Context, row *model.SheetRow) error {
	if m.createFn != nil {
		return m.createFn(ctx, row)
	}
	row.ID = 1
	row.Version = 1
	return nil
}

func (m *mockRowRepo) CreateBatch(ctx context.Context, rows []*model.SheetRow) error {
	if m.createBatchFn != nil {
		return m.createBatchFn(ctx, rows)
	}
	return nil
}

func (m *mockRowRepo) GetByID(ctx context.Context, id int64) (*model.SheetRow, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockRowRepo) ListLive(ctx context.Context, fileName, sheetName string, limit, offset int) ([]*model.SheetRow, error) {
	if m.listLiveFn != nil {
		return m.listLiveFn(ctx, fileName, sheetName, limit, offset)
	}
	return nil, nil
}

func (m *mockRowRepo) CountLive(ctx context.Context, fileName, sheetName string) (int, error) {
	if m.countLiveFn != nil {
		return m.countLiveFn(ctx, fileName, sheetName)
	}
	return 0, nil
}

func (m *mockRowRepo) ListAsOf(ctx context.Context, fileName, sheetName string, asOf time.Time) ([]*model.SheetRow, error) {
	if m.listAsOfFn != nil {
		return m.listAsOfFn(ctx, fileName, sheetName, asOf)
	}
	return nil, nil
}

func (m *mockRowRepo) UpdateVersioned(ctx context.Context, row *model.SheetRow, expectedVersion int) error {
	if m.updateVersionedFn != nil {
		return m.updateVersionedFn(ctx, row, expectedVersion)
	}
	return nil
}

func (m *mockRowRepo) SoftDelete(ctx context.Context, id int64, actor string) error {
	if m.softDeleteFn != nil {
		return m.softDeleteFn(ctx, id, actor)
	}
	return nil
}

func (m *mockRowRepo) SoftDeleteSheet(ctx context.Context, fileName, sheetName, actor string) (int, error) {
	if m.softDeleteSheetFn != nil {
		return m.softDeleteSheetFn(ctx, fileName, sheetName, actor)
	}
	return 0, nil
}

func (m *mockRowRepo) SoftDeleteFile(ctx context.Context, fileName, actor string) (int, error) {
	if m.softDeleteFileFn != nil {
		return m.softDeleteFileFn(ctx, fileName, actor)
	}
	return 0, nil
}

func (m *mockRowRepo) MaxRowIndex(ctx context.Context, fileName, sheetName string) (int, error) {
	if m.maxRowIndexFn != nil {
		return m.maxRowIndexFn(ctx, fileName, sheetName)
	}
	return 0, nil
}

func (m *mockRowRepo) ListModifiedBetween(ctx context.Context, fileName, sheetName string, from, to time.Time) ([]*model.SheetRow, error) {
	if m.listModifiedBetweenFn != nil {
		return m.listModifiedBetweenFn(ctx, fileName, sheetName, from, to)
	}
	return nil, nil
}

func (m *mockRowRepo) ListChangeInfo(ctx context.Context, fileName string) ([]*model.RowChangeInfo, error) {
	if m.listChangeInfoFn != nil {
		return m.listChangeInfoFn(ctx, fileName)
	}
	return nil, nil
}

func (m *mockRowRepo) ListRowVersions(ctx context.Context, rowID int64) ([]*model.SheetRow, error) {
	if m.listRowVersionsFn != nil {
		return m.listRowVersionsFn(ctx, rowID)
	}
	return nil, repository.ErrNotFound
}

// mockFileRegistryRepo — мок FileRegistryRepository.
type mockFileRegistryRepo struct {
	registerFn   func(ctx context.Context, f *model.FileRecord) error
	getByNameFn  func(ctx context.Context, fileName string) (*model.FileRecord, error)
	listFn       func(ctx context.Context, limit, offset int) ([]*model.FileRecord, error)
	countFn      func(ctx context.Context) (int, error)
	deactivateFn func(ctx context.Context, fileName string) error
}

func (m *mockFileRegistryRepo) Register(ctx context.Context, f *model.FileRecord) error {
	if m.registerFn != nil {
		return m.registerFn(ctx, f)
	}
	f.ID = 1
	return nil
}

func (m *mockFileRegistryRepo) GetByName(ctx context.Context, fileName string) (*model.FileRecord, error) {
	if m.getByNameFn != nil {
		return m.getByNameFn(ctx, fileName)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRegistryRepo) List(ctx context.Context, limit, offset int) ([]*model.FileRecord, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockFileRegistryRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

func (m *mockFileRegistryRepo) Deactivate(ctx context.Context, fileName string) error {
	if m.deactivateFn != nil {
		return m.deactivateFn(ctx, fileName)
	}
	return nil
}

// mockAuditRepo — мок AuditRepository.
type mockAuditRepo struct {
	appendFn     func(ctx context.Context, e *model.AuditEntry) error
	listByFileFn func(ctx context.Context, fileName string, limit, offset int) ([]*model.AuditEntry, error)
	listByRowFn  func(ctx context.Context, rowID int64) ([]*model.AuditEntry, error)
}

func (m *mockAuditRepo) Append(ctx context.Context, e *model.AuditEntry) error {
	if m.appendFn != nil {
		return m.appendFn(ctx, e)
	}
	return nil
}

func (m *mockAuditRepo) ListByFile(ctx context.Context, fileName string, limit, offset int) ([]*model.AuditEntry, error) {
	if m.listByFileFn != nil {
		return m.listByFileFn(ctx, fileName, limit, offset)
	}
	return nil, nil
}

func (m *mockAuditRepo) ListByRow(ctx context.Context, rowID int64) ([]*model.AuditEntry, error) {
	if m.listByRowFn != nil {
		return m.listByRowFn(ctx, rowID)
	}
	return nil, nil
}

// mockAuditRecorder — мок AuditRecorder, накапливает записи.
type mockAuditRecorder struct {
	mu      sync.Mutex
	entries []*model.AuditEntry
}

func (m *mockAuditRecorder) Record(_ context.Context, e *model.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *mockAuditRecorder) all() []*model.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.AuditEntry(nil), m.entries...)
}

// mockETLRepo — мок ETLRepository с in-memory состоянием.
type mockETLRepo struct {
	mu        sync.Mutex
	execs     map[string]*model.ETLExecution
	statusSet chan string // получает статус при каждом SetStatus
}

func newMockETLRepo() *mockETLRepo {
	return &mockETLRepo{
		execs:     make(map[string]*model.ETLExecution),
		statusSet: make(chan string, 8),
	}
}

func (m *mockETLRepo) Create(_ context.Context, e *model.ETLExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.execs[e.ID] = &cp
	return nil
}

func (m *mockETLRepo) GetByID(_ context.Context, id string) (*model.ETLExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.execs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockETLRepo) SetStatus(_ context.Context, id, status, message string) error {
	m.mu.Lock()
	e, ok := m.execs[id]
	if !ok || e.Status != model.ETLStatusRunning {
		m.mu.Unlock()
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	e.Status = status
	e.Message = message
	e.FinishedAt = &now
	m.mu.Unlock()

	m.statusSet <- status
	return nil
}

func (m *mockETLRepo) List(_ context.Context, limit, offset int) ([]*model.ETLExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*model.ETLExecution
	for _, e := range m.execs {
		cp := *e
		result = append(result, &cp)
	}
	return result, nil
}
