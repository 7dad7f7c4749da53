package mmio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/symtab"
	"github.com/rayforcedb/rayforce/pkg/value"
)

// ReadSplayed reads dir as a splayed table: one file per column, its name
// the column name, per spec §6. Column order is the directory's sorted
// filename order — os.ReadDir already returns entries sorted by name, so
// re-reading the same directory always rebuilds the same column order.
func ReadSplayed(h *heap.Heap, syms *symtab.Table, dir string) (*value.Value, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, rayerr.OS(fmt.Errorf("mmio: read splayed dir %s: %w", dir, err))
	}

	var names []int64
	var cols []*value.Value
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		col, err := ReadColumn(filepath.Join(dir, e.Name()))
		if err != nil {
			for _, c := range cols {
				value.Drop(false, c)
			}
			return nil, err
		}
		names = append(names, syms.Intern(e.Name()))
		cols = append(cols, col)
	}

	nameVec := value.NewVector(h, value.TSymbol, len(names))
	copy(value.I64(nameVec), names)
	return value.NewTable(nameVec, value.NewList(cols)), nil
}
