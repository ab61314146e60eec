package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/caseforms/internal/event"
	"github.com/matthewbaird/caseforms/internal/form"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlStore, err := OpenSQLite(context.Background(), "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlStore,
	}
}

func sample(id string) *form.Definition {
	return &form.Definition{ID: id, Title: "Intake", Status: "draft",
		Constants: map[string]any{"maxHousehold": float64(12)},
		Items: []*form.Item{
			{LinkID: "name", Kind: form.KindString, Label: "Name", Required: true},
			{LinkID: "household", Kind: form.KindGroup, Items: []*form.Item{
				{LinkID: "size", Kind: form.KindInteger,
					Bounds: &form.Bounds{Max: &form.BoundValue{Expression: "maxHousehold"}}},
			}},
		}}
}

func TestStore_SaveGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := s.Save(ctx, sample("a"))
			require.NoError(t, err)
			assert.True(t, created)

			got, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "Intake", got.Title)
			size, ancestors := got.Find("size")
			require.NotNil(t, size)
			require.Len(t, ancestors, 1)
			assert.Equal(t, "maxHousehold", size.Bounds.Max.Expression)
			assert.Equal(t, float64(12), got.Constants["maxHousehold"])

			updated := sample("a")
			updated.Title = "Intake v2"
			created, err = s.Save(ctx, updated)
			require.NoError(t, err)
			assert.False(t, created)
			got, err = s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "Intake v2", got.Title)
		})
	}
}

func TestStore_Errors(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)
			_, err = s.Save(ctx, &form.Definition{})
			assert.ErrorIs(t, err, ErrNoID)
		})
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Save(ctx, sample("a"))
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
			_, err = s.Save(ctx, sample("b"))
			require.NoError(t, err)

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "b", list[0].ID)
			assert.Equal(t, 3, list[0].Items)
			assert.False(t, list[0].CreatedAt.IsZero())

			require.NoError(t, s.Delete(ctx, "a"))
			list, err = s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
		})
	}
}

func TestStore_Events(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Save(ctx, sample("a"))
			require.NoError(t, err)

			first := event.NewItemDeleted(event.ItemDeletedPayload{DefinitionID: "a", LinkID: "name", Removed: []string{"name"}})
			second := event.NewItemRenamed(event.ItemRenamedPayload{DefinitionID: "a", From: "size", To: "members"})
			other := event.NewItemRenamed(event.ItemRenamedPayload{DefinitionID: "b", From: "x", To: "y"})
			for _, evt := range []event.DomainEvent{first, second, other} {
				require.NoError(t, s.AppendEvent(ctx, evt))
			}

			got, err := s.Events(ctx, "a")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, first.ID, got[0].ID)
			assert.Equal(t, "item_renamed", got[1].EventType)
			assert.Equal(t, []event.Ref{{Kind: "definition", ID: "a", Role: "context"}, {Kind: "item", ID: "members", Role: "subject"}}, got[1].AffectedEntities)

			require.NoError(t, s.Delete(ctx, "a"))
			got, err = s.Events(ctx, "a")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestSQLStore_MigrateTwice(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, "file::memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Save(ctx, sample("a"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))

	def, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Intake", def.Title)
}
