package datastore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

// EnqueuePendingSync добавляет отложенную операцию в конец очереди.
func (s *Store) EnqueuePendingSync(ctx context.Context, action domain.SyncAction, payload any) (domain.PendingSyncEntry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.PendingSyncEntry{}, fmt.Errorf("datastore: marshal pending payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := domain.PendingSyncEntry{
		ID:        s.newID(),
		Action:    action,
		Payload:   raw,
		Timestamp: s.now().UTC(),
	}
	next := append(append([]domain.PendingSyncEntry(nil), s.pending...), entry)
	if err := s.persist(ctx, write{s.keys.PendingSync, next}); err != nil {
		return domain.PendingSyncEntry{}, err
	}
	s.pending = next
	return entry, nil
}

// PendingSync возвращает очередь в порядке добавления.
func (s *Store) PendingSync() []domain.PendingSyncEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PendingSyncEntry(nil), s.pending...)
}

// RemovePendingSync удаляет запись после успешного воспроизведения.
func (s *Store) RemovePendingSync(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.pendingIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrPendingNotFound, id)
	}

	next := make([]domain.PendingSyncEntry, 0, len(s.pending)-1)
	next = append(next, s.pending[:idx]...)
	next = append(next, s.pending[idx+1:]...)
	if err := s.persist(ctx, write{s.keys.PendingSync, next}); err != nil {
		return err
	}
	s.pending = next
	return nil
}

// RecordPendingAttempt увеличивает счётчик попыток и запоминает последнюю ошибку.
func (s *Store) RecordPendingAttempt(ctx context.Context, id string, cause error) (domain.PendingSyncEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.pendingIndex(id)
	if idx < 0 {
		return domain.PendingSyncEntry{}, fmt.Errorf("%w: %s", domain.ErrPendingNotFound, id)
	}

	next := append([]domain.PendingSyncEntry(nil), s.pending...)
	next[idx].Attempts++
	if cause != nil {
		next[idx].LastError = cause.Error()
	}
	if err := s.persist(ctx, write{s.keys.PendingSync, next}); err != nil {
		return domain.PendingSyncEntry{}, err
	}
	s.pending = next
	return next[idx], nil
}

func (s *Store) pendingIndex(id string) int {
	for i, e := range s.pending {
		if e.ID == id {
			return i
		}
	}
	return -1
}
