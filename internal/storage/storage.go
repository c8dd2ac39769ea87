package storage

import (
	"context"

	"neoswaps/internal/model"
)

// Storage is a sink for the journal of applied events and for rejected commands.
type Storage interface {
	PutEntries(ctx context.Context, entries []model.JournalEntry) error
	PutErrors(ctx context.Context, errs []model.CommandError) error
}

// Multi writes to every sink in order and stops at the first failure.
type Multi []Storage

func (m Multi) PutEntries(ctx context.Context, entries []model.JournalEntry) error {
	for _, s := range m {
		if err := s.PutEntries(ctx, entries); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) PutErrors(ctx context.Context, errs []model.CommandError) error {
	for _, s := range m {
		if err := s.PutErrors(ctx, errs); err != nil {
			return err
		}
	}
	return nil
}
