package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "state.json"))

	s, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Empty(t, s.Countries)
	require.Nil(t, s.Signature)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path)
	ctx := context.Background()

	sig := signatureFixture()
	s := NewState()
	s.Signature = &sig
	s.SetEntry("KG", "2024-01", CursorState{NextSkip: 90, WrittenInRun: 88, Done: false, ClientFilterActive: true})
	s.SetEntry("KG", "2024-02", CursorState{NextSkip: 30, Done: true})

	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded.Signature)
	require.True(t, loaded.Signature.Equal(sig))

	entry, ok := loaded.Entry("KG", "2024-01")
	require.True(t, ok)
	require.Equal(t, 90, entry.NextSkip)
	require.Equal(t, 88, entry.WrittenInRun)
	require.True(t, entry.ClientFilterActive)
	require.False(t, entry.Done)

	done, ok := loaded.Entry("KG", "2024-02")
	require.True(t, ok)
	require.True(t, done.Done)
}

func TestFileStoreSaveIsAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path)
	ctx := context.Background()

	s := NewState()
	s.SetEntry("RU", "all", CursorState{NextSkip: 30})
	require.NoError(t, store.Save(ctx, s))

	// No tmp residue after a successful save.
	_, err := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err), "tmp file must not remain after save")

	// A stray tmp file from a crashed save must not affect loading the
	// last valid document.
	require.NoError(t, os.WriteFile(path+".tmp", []byte("{partial"), 0o644))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	entry, ok := loaded.Entry("RU", "all")
	require.True(t, ok)
	require.Equal(t, 30, entry.NextSkip)
}

func TestFileStoreLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`["not", "a", "document"]`), 0o644))

	store := NewFileStore(path)
	s, err := store.Load(context.Background())
	require.NoError(t, err, "malformed state must not block a fresh run")
	require.Empty(t, s.Countries)
}

func TestFileStoreReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewState()))
	require.NoError(t, store.Reset(ctx))

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// Resetting an already absent file is fine.
	require.NoError(t, store.Reset(ctx))
}
