package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxCommitWritesAll(t *testing.T) {
	s := tempStore(t)
	tx := s.Begin()
	require.NoError(t, tx.Stage(KindNodes, "walk", []byte(`{"id":"walk"}`)))
	require.NoError(t, tx.Stage(KindCuriosities, "walk", []byte(`{"central":"x"}`)))
	require.NoError(t, tx.Commit())

	got, err := s.Read(KindCuriosities, "walk")
	require.NoError(t, err)
	assert.Equal(t, `{"central":"x"}`, string(got))

	matches, _ := filepath.Glob(filepath.Join(s.Root(), "*", tmpPrefix+"*"))
	assert.Empty(t, matches)
}

func TestTxStageRejectsBadPath(t *testing.T) {
	s := tempStore(t)
	tx := s.Begin()
	require.Error(t, tx.Stage(KindEssays, "../x.md", []byte("x")))
	tx.Rollback()
	assert.Error(t, tx.Commit(), "commit after rollback must fail")
}

func TestTxRollsBackOnRenameFailure(t *testing.T) {
	s := tempStore(t)
	require.NoError(t, s.Write(KindNodes, "keep", []byte("old")))

	calls := 0
	rename = func(from, to string) error {
		calls++
		if calls == 3 {
			return errors.New("disk full")
		}
		return os.Rename(from, to)
	}
	t.Cleanup(func() { rename = os.Rename })

	tx := s.Begin()
	require.NoError(t, tx.Stage(KindNodes, "keep", []byte("new")))
	require.NoError(t, tx.Stage(KindNodes, "fresh", []byte("new")))
	require.NoError(t, tx.Stage(KindDurational, "late", []byte("new")))

	require.Error(t, tx.Commit())

	got, err := s.Read(KindNodes, "keep")
	require.NoError(t, err)
	assert.Equal(t, "old", string(got), "replaced file must be restored")
	_, err = os.Stat(filepath.Join(s.Dir(KindNodes), "fresh.json"))
	assert.True(t, os.IsNotExist(err), "new file must be removed")
	_, err = os.Stat(filepath.Join(s.Dir(KindDurational), "late.json"))
	assert.True(t, os.IsNotExist(err))

	for _, k := range Kinds {
		matches, _ := filepath.Glob(filepath.Join(s.Dir(k), tmpPrefix+"*"))
		assert.Empty(t, matches, "temp files left in %s", k)
	}
}
