package mmio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/symtab"
	"github.com/rayforcedb/rayforce/pkg/value"
)

func writeColumn(t *testing.T, path string, tag value.Tag, vals []int64) {
	t.Helper()
	buf := make([]byte, 1+8*len(vals))
	buf[0] = byte(tag)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[1+8*i:], uint64(v))
	}
	require.NoError(t, os.WriteFile(path, buf, 0o600))
}

func TestReadColumnMapsFileBackedVector(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "px")
	writeColumn(t, path, value.TI64, []int64{10, 20, 30})

	v, err := ReadColumn(path)
	require.NoError(t, err)
	require.Equal(t, value.TI64, v.Tag)
	require.Equal(t, []int64{10, 20, 30}, value.I64(v))

	value.Drop(false, v)
}

func TestReadColumnEmptyPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(path, []byte{byte(value.TI64)}, 0o600))

	v, err := ReadColumn(path)
	require.NoError(t, err)
	require.Equal(t, 0, int(v.Len))
	value.Drop(false, v)
}

func TestReadColumnRejectsUnknownTag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad")
	require.NoError(t, os.WriteFile(path, []byte{byte(value.TList), 1, 2, 3}, 0o600))

	_, err := ReadColumn(path)
	require.Error(t, err)
}

func TestReadSplayedBuildsTableFromColumnFiles(t *testing.T) {
	dir := t.TempDir()
	writeColumn(t, filepath.Join(dir, "px"), value.TI64, []int64{1, 2, 3})
	writeColumn(t, filepath.Join(dir, "qty"), value.TI64, []int64{100, 200, 300})

	h, err := heap.New(0, heap.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer h.Close()
	syms := symtab.New()

	table, err := ReadSplayed(h, syms, dir)
	require.NoError(t, err)
	require.Equal(t, value.TTable, table.Tag)
	require.Equal(t, 3, table.RowCount())
	require.Equal(t, 2, len(table.TableColumns().ListElems()))
}

func TestReadPartedWalksDateDirectoriesInOrder(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"2024.01.02", "2024.01.01"} {
		partDir := filepath.Join(root, d)
		require.NoError(t, os.MkdirAll(partDir, 0o755))
		writeColumn(t, filepath.Join(partDir, "px"), value.TI64, []int64{1, 2})
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-date"), 0o755))

	h, err := heap.New(0, heap.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer h.Close()
	syms := symtab.New()

	parts, err := ReadParted(h, syms, root)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.Less(t, parts[0].Date, parts[1].Date)

	names := value.I64(parts[0].Table.TableNames())
	require.Equal(t, syms.Intern("Date"), names[0])

	dateCol := parts[0].Table.TableColumns().ListElems()[0]
	require.Equal(t, value.TMapCommon, dateCol.Tag)
	require.Equal(t, uint32(2), dateCol.Len)
}
