package storage

import (
	"errors"
	"fmt"
	"os"

	"github.com/starford/strand/internal/apperr"
)

// rename is swapped in tests to simulate a failing filesystem.
var rename = os.Rename

// Tx stages several entity writes and commits them together: every payload is
// written to a temp file first, then the temps are renamed over their
// destinations. If a rename fails, destinations already replaced are restored
// to their previous content (or removed if they did not exist).
type Tx struct {
	fs     *FS
	writes []*stagedWrite
	done   bool
}

type stagedWrite struct {
	label   string
	dest    string
	data    []byte
	tmp     string
	prev    []byte
	existed bool
}

// Begin starts a new transaction.
func (f *FS) Begin() *Tx {
	return &Tx{fs: f}
}

// Stage queues data for entity id of kind. Path errors surface immediately.
func (tx *Tx) Stage(kind Kind, id string, data []byte) error {
	if tx.done {
		return errors.New("storage: transaction already finished")
	}
	abs, err := tx.fs.safePath(kind, id)
	if err != nil {
		return err
	}
	tx.writes = append(tx.writes, &stagedWrite{label: string(kind) + "/" + id, dest: abs, data: data})
	return nil
}

// Len returns the number of staged writes.
func (tx *Tx) Len() int { return len(tx.writes) }

// Commit writes every staged payload or none of them.
func (tx *Tx) Commit() error {
	if tx.done {
		return errors.New("storage: transaction already finished")
	}
	tx.done = true
	defer tx.cleanup()

	for _, w := range tx.writes {
		prev, err := os.ReadFile(w.dest)
		switch {
		case err == nil:
			w.prev, w.existed = prev, true
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("storage: tx read %s: %w: %w", w.label, apperr.ErrIOFailure, err)
		}
		tmp, err := writeTemp(w.dest, w.data)
		if err != nil {
			return fmt.Errorf("storage: tx stage %s: %w", w.label, err)
		}
		w.tmp = tmp
	}

	for i, w := range tx.writes {
		if err := rename(w.tmp, w.dest); err != nil {
			tx.restore(tx.writes[:i])
			return fmt.Errorf("storage: tx rename %s: %w: %w", w.label, apperr.ErrIOFailure, err)
		}
		w.tmp = ""
	}
	return nil
}

// Rollback drops the staged writes without touching any destination.
func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	tx.cleanup()
}

// restore puts back the previous content of already-renamed destinations.
func (tx *Tx) restore(applied []*stagedWrite) {
	for i := len(applied) - 1; i >= 0; i-- {
		w := applied[i]
		if w.existed {
			_ = writeAtomic(w.dest, w.prev)
		} else {
			_ = os.Remove(w.dest)
		}
	}
}

func (tx *Tx) cleanup() {
	for _, w := range tx.writes {
		if w.tmp != "" {
			_ = os.Remove(w.tmp)
			w.tmp = ""
		}
	}
}
