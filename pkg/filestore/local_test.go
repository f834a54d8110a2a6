package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLocalPutOpenDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	stored, err := store.Put(ctx, "answers.pdf", strings.NewReader("%PDF-1.4 jawaban"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(stored, "-answers.pdf"))

	reader, err := store.Open(ctx, stored)
	require.NoError(t, err)
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	require.Equal(t, "%PDF-1.4 jawaban", string(content))

	require.NoError(t, store.Delete(ctx, stored))
	_, err = os.Stat(filepath.Join(store.root, stored))
	require.True(t, os.IsNotExist(err))

	require.NoError(t, store.Delete(ctx, stored))
}

func TestLocalRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocal(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	_, err = store.Open(context.Background(), "../etc/passwd")
	require.ErrorIs(t, err, ErrInvalidPath)
	require.ErrorIs(t, store.Delete(context.Background(), "/etc/passwd"), ErrInvalidPath)
}

func TestLocalPutStripsDirectories(t *testing.T) {
	store, err := NewLocal(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	stored, err := store.Put(context.Background(), "../../quiz.pdf", strings.NewReader("x"))
	require.NoError(t, err)
	require.NotContains(t, stored, "..")
}
