package app_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"quizbot/internal/app"
	"quizbot/internal/domain"
	"quizbot/internal/infra/memory"
)

func TestLibrarySaveListDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBankStore(map[string]string{"zoology": scenarioBank})
	lib := app.NewLibrary(store)

	id, count, err := lib.Save(ctx, "Biology Basics.csv", []byte(scenarioBank))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id != "biology_basics" || count != 2 {
		t.Fatalf("expected biology_basics with 2 rows, got %s with %d", id, count)
	}

	// a bank with no valid rows is still stored
	id, count, err = lib.Save(ctx, "broken.csv", []byte("not,a,quiz\n"))
	if err != nil {
		t.Fatalf("save broken: %v", err)
	}
	if id != "broken" || count != 0 {
		t.Fatalf("expected broken with 0 rows, got %s with %d", id, count)
	}

	ids, err := lib.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if want := []string{"biology_basics", "broken", "zoology"}; !slices.Equal(ids, want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}

	id, err = lib.Delete(ctx, "Broken")
	if err != nil || id != "broken" {
		t.Fatalf("delete: id=%q err=%v", id, err)
	}
	if _, err := store.LoadSource(ctx, "broken"); !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound after delete, got %v", err)
	}

	if _, _, err := lib.Save(ctx, "../../etc/passwd", []byte(scenarioBank)); !errors.Is(err, domain.ErrInvalidBankID) {
		t.Fatalf("expected ErrInvalidBankID, got %v", err)
	}
}

func TestLibraryCount(t *testing.T) {
	ctx := context.Background()
	lib := app.NewLibrary(memory.NewBankStore(map[string]string{"basics": scenarioBank + "bad row\n"}))

	id, count, err := lib.Count(ctx, "Basics.csv")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if id != "basics" || count != 2 {
		t.Fatalf("expected basics with 2 rows, got %s with %d", id, count)
	}

	if _, _, err := lib.Count(ctx, "missing"); !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
}
