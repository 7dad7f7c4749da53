package mmio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/symtab"
	"github.com/rayforcedb/rayforce/pkg/value"
)

// dateLayout matches the dotted date literal syntax the source's own test
// suite uses for DATE atoms (e.g. "2024.01.01" in
// original_source/tests/parted.c), reused here as the partition directory
// naming convention spec §6 leaves otherwise unspecified.
const dateLayout = "2006.01.02"

// epoch is the DATE atom's zero point. spec §1 explicitly puts "temporal
// type codecs beyond their column-kind tag" out of scope for the core, so
// the exact epoch is this package's own implementation choice rather than
// something spec.md pins down; Unix epoch is the least surprising default.
var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Partition is one dated splayed table read from a parted root.
type Partition struct {
	Date  int32 // days since epoch, DATE atom encoding
	Table *value.Value
}

// ReadParted walks root's date-named subdirectories, each one a splayed
// table sharing a common schema (spec §6), returning them ordered by
// date ascending. Each partition's table gets a synthetic "Date" column
// prepended as a MAPCOMMON virtual constant (spec §3: "MAPCOMMON, virtual
// constant column for parted data") rather than a real per-row vector,
// since a parted table's date is uniform within a partition by
// definition and is never actually stored as a column file on disk.
func ReadParted(h *heap.Heap, syms *symtab.Table, root string) ([]Partition, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, rayerr.OS(fmt.Errorf("mmio: read parted root %s: %w", root, err))
	}

	var out []Partition
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		t, err := time.Parse(dateLayout, e.Name())
		if err != nil {
			continue // not a date-named partition directory; skip
		}
		days := int32(t.Sub(epoch).Hours() / 24)

		table, err := ReadSplayed(h, syms, filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		table = withDateColumn(h, syms, table, days)
		out = append(out, Partition{Date: days, Table: table})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// withDateColumn prepends a MAPCOMMON "Date" column of table's row count
// to table's existing name/column lists.
func withDateColumn(h *heap.Heap, syms *symtab.Table, table *value.Value, days int32) *value.Value {
	dateAtom := value.NewAtom(value.TDate, uint64(uint32(days)), 0)
	dateCol := value.NewMapCommon(dateAtom, table.RowCount())

	oldNames := value.I64(table.TableNames())
	names := make([]int64, 0, len(oldNames)+1)
	names = append(names, syms.Intern("Date"))
	names = append(names, oldNames...)

	oldCols := table.TableColumns().ListElems()
	cols := make([]*value.Value, 0, len(oldCols)+1)
	cols = append(cols, dateCol)
	cols = append(cols, oldCols...)

	nameVec := value.NewVector(h, value.TSymbol, len(names))
	copy(value.I64(nameVec), names)
	return value.NewTable(nameVec, value.NewList(cols))
}
