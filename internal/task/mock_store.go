package task

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockTaskStore implements the TaskStore interface for testing
type MockTaskStore struct {
	mutex          sync.RWMutex
	records        map[uuid.UUID]Record
	SaveFn         func(ctx context.Context, task Task) error
	UpdateStatusFn func(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error
}

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	store := &MockTaskStore{
		records: make(map[uuid.UUID]Record),
	}

	store.SaveFn = func(ctx context.Context, task Task) error {
		store.Put(Record{
			ID:      task.ID(),
			Type:    task.Type(),
			Payload: task.Payload(),
			Status:  task.Status(),
		})
		return nil
	}

	store.UpdateStatusFn = func(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error {
		store.mutex.Lock()
		defer store.mutex.Unlock()

		rec, exists := store.records[taskID]
		if !exists {
			return nil // Simulate "not found" as a no-op for testing simplicity
		}

		rec.Status = status
		rec.ErrorMessage = errorMsg
		rec.UpdatedAt = time.Now()
		store.records[taskID] = rec
		return nil
	}

	return store
}

// Put inserts or replaces a record directly.
func (s *MockTaskStore) Put(rec Record) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	s.records[rec.ID] = rec
}

// Get returns the stored record for id.
func (s *MockTaskStore) Get(id uuid.UUID) (Record, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// SaveTask persists a task to the mock store
func (s *MockTaskStore) SaveTask(ctx context.Context, task Task) error {
	return s.SaveFn(ctx, task)
}

// UpdateTaskStatus updates the status of a task in the mock store
func (s *MockTaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status TaskStatus,
	errorMsg string,
) error {
	return s.UpdateStatusFn(ctx, taskID, status, errorMsg)
}

// GetPendingTasks retrieves all tasks with "pending" status
func (s *MockTaskStore) GetPendingTasks(ctx context.Context) ([]Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var pending []Record
	for _, rec := range s.records {
		if rec.Status == TaskStatusPending {
			pending = append(pending, rec)
		}
	}

	return pending, nil
}

// GetProcessingTasks retrieves tasks with "processing" status
func (s *MockTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var processing []Record
	now := time.Now()

	for _, rec := range s.records {
		if rec.Status != TaskStatusProcessing {
			continue
		}
		if olderThan == 0 || now.Sub(rec.UpdatedAt) > olderThan {
			processing = append(processing, rec)
		}
	}

	return processing, nil
}

// WithTx implements TaskStore.WithTx for the mock store
// In the mock implementation, we just return the same store instance
func (s *MockTaskStore) WithTx(tx *sql.Tx) TaskStore {
	return s
}
