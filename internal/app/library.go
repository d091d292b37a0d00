package app

import (
	"context"
	"sort"

	"quizbot/internal/bank"
)

// BankStore is a BankSource that operators can also add to and remove from.
type BankStore interface {
	BankSource
	Save(ctx context.Context, bankID string, data []byte) error
	Delete(ctx context.Context, bankID string) error
	List(ctx context.Context) ([]string, error)
}

// Library holds the administrative operations on question banks.
type Library struct {
	store BankStore
}

func NewLibrary(store BankStore) *Library {
	return &Library{store: store}
}

// Save stores a bank under the normalized form of name and reports how many
// rows parsed. A bank with zero valid rows is still stored.
func (l *Library) Save(ctx context.Context, name string, data []byte) (string, int, error) {
	id, err := bank.NormalizeID(name)
	if err != nil {
		return "", 0, err
	}
	if err := l.store.Save(ctx, id, data); err != nil {
		return "", 0, err
	}
	return id, len(bank.ParseBytes(data)), nil
}

func (l *Library) Delete(ctx context.Context, name string) (string, error) {
	id, err := bank.NormalizeID(name)
	if err != nil {
		return "", err
	}
	return id, l.store.Delete(ctx, id)
}

func (l *Library) List(ctx context.Context) ([]string, error) {
	ids, err := l.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Count reports how many rows of the bank parse as questions.
func (l *Library) Count(ctx context.Context, name string) (string, int, error) {
	id, err := bank.NormalizeID(name)
	if err != nil {
		return "", 0, err
	}
	data, err := l.store.LoadSource(ctx, id)
	if err != nil {
		return "", 0, err
	}
	return id, len(bank.ParseBytes(data)), nil
}
