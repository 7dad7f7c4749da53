package query

import (
	"math"

	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/sched"
	"github.com/rayforcedb/rayforce/pkg/value"
)

// AggOp is the closed set of aggregation operators spec §4.5.1 requires:
// "sum, count, avg, min, max, first, last."
type AggOp int

const (
	AggSum AggOp = iota
	AggCount
	AggAvg
	AggMin
	AggMax
	AggFirst
	AggLast
)

// ParseAggOp resolves a builtin name to its AggOp.
func ParseAggOp(name string) (AggOp, bool) {
	switch name {
	case "sum":
		return AggSum, true
	case "count":
		return AggCount, true
	case "avg":
		return AggAvg, true
	case "min":
		return AggMin, true
	case "max":
		return AggMax, true
	case "first":
		return AggFirst, true
	case "last":
		return AggLast, true
	default:
		return 0, false
	}
}

// aggState is the per-group partial-aggregate record spec §4.5.1 names for
// the composite path's parallel arrays: "sum_i64, sum_f64, count, min/max
// per numeric type, first_row, last_row." RayforceDB shares this same
// layout for the perfect-hash path too, since both strategies only differ
// in how a row is mapped to a group id, not in what gets accumulated once
// it has one.
type aggState struct {
	sumI64         int64
	sumF64         float64
	count          int64
	minI64, maxI64 int64
	minF64, maxF64 float64
	firstRow       int64
	lastRow        int64
	seen           bool
}

func newAggState() aggState {
	return aggState{
		minI64:   math.MaxInt64,
		maxI64:   math.MinInt64,
		minF64:   math.Inf(1),
		maxF64:   math.Inf(-1),
		firstRow: -1,
		lastRow:  -1,
	}
}

// observe folds one row into the state. isNull rows are skipped except
// for count and for the first/last row positions; count's semantics treat
// it as "rows present" — this
// matches the teacher-independent convention used throughout §4 that
// count(*) style aggregates count rows, not non-null values; null-aware
// counting is a projection concern (count on a specific column would
// filter first).
func (s *aggState) observe(row int64, isFloat bool, i64 int64, f64 float64, isNull bool) {
	s.count++
	if s.firstRow < 0 {
		s.firstRow = row
	}
	s.lastRow = row
	if isNull {
		return
	}
	s.seen = true
	if isFloat {
		s.sumF64 += f64
		if f64 < s.minF64 {
			s.minF64 = f64
		}
		if f64 > s.maxF64 {
			s.maxF64 = f64
		}
		return
	}
	s.sumI64 += i64
	if i64 < s.minI64 {
		s.minI64 = i64
	}
	if i64 > s.maxI64 {
		s.maxI64 = i64
	}
}

// merge combines o into s, used by the parallel path's per-worker-array
// merge step.
func (s *aggState) merge(o aggState) {
	s.count += o.count
	s.sumI64 += o.sumI64
	s.sumF64 += o.sumF64
	if o.seen {
		s.seen = true
		if o.minI64 < s.minI64 {
			s.minI64 = o.minI64
		}
		if o.maxI64 > s.maxI64 {
			s.maxI64 = o.maxI64
		}
		if o.minF64 < s.minF64 {
			s.minF64 = o.minF64
		}
		if o.maxF64 > s.maxF64 {
			s.maxF64 = o.maxF64
		}
	}
	if o.firstRow >= 0 && (s.firstRow < 0 || o.firstRow < s.firstRow) {
		s.firstRow = o.firstRow
	}
	if o.lastRow >= 0 && o.lastRow > s.lastRow {
		s.lastRow = o.lastRow
	}
}

// Aggregate runs op over valueCol grouped by ga, choosing the sequential
// or pkg/sched-backed parallel accumulation path per spec §4.5.1's
// "N >= PARALLEL_AGG_THRESHOLD and the worker cap > 1" condition.
func Aggregate(h *heap.Heap, pool *sched.Pool, valueCol *value.Value, ga GroupAssignment, op AggOp) (*value.Value, error) {
	n := len(ga.groupOf)
	isFloat := value.VectorOf(valueCol.Tag) == value.TF64

	var states []aggState
	if pool != nil && pool.N() > 1 && n >= ParallelAggThreshold {
		states = aggregateParallel(pool, valueCol, ga, isFloat)
	} else {
		states = aggregateSequential(valueCol, ga, isFloat)
	}
	return materialize(h, valueCol, states, op, isFloat)
}

func aggregateSequential(col *value.Value, ga GroupAssignment, isFloat bool) []aggState {
	states := make([]aggState, ga.numGroups)
	for i := range states {
		states[i] = newAggState()
	}
	for row := 0; row < len(ga.groupOf); row++ {
		i64, f64, isNull := rowValue(col, int64(row))
		states[ga.groupOf[row]].observe(int64(row), isFloat, i64, f64, isNull)
	}
	return states
}

// aggregateParallel implements spec §4.5.1's parallel merge: split rows
// into chunks, each worker accumulates its own full per-group array
// (group ids are already global, assigned by groupRows before
// aggregation starts, so no local hash table or salt/probe step is
// needed here — merging is an elementwise combine across workers'
// arrays rather than a hash re-probe), capped at MaxAggWorkers.
func aggregateParallel(pool *sched.Pool, col *value.Value, ga GroupAssignment, isFloat bool) []aggState {
	n := len(ga.groupOf)
	workers := pool.SplitBy(n, int(ga.numGroups), false)
	if workers > MaxAggWorkers {
		workers = MaxAggWorkers
	}
	bounds := chunkBounds(n, workers)
	nChunks := len(bounds) - 1
	perWorker := make([][]aggState, nChunks)

	pool.Prepare()
	for c := 0; c < nChunks; c++ {
		lo, hi := bounds[c], bounds[c+1]
		local := make([]aggState, ga.numGroups)
		for i := range local {
			local[i] = newAggState()
		}
		perWorker[c] = local
		pool.AddTask(func(ctx *sched.ExecCtx, argv [sched.MaxTaskArgs]interface{}) (*value.Value, error) {
			for row := lo; row < hi; row++ {
				i64, f64, isNull := rowValue(col, int64(row))
				local[ga.groupOf[row]].observe(int64(row), isFloat, i64, f64, isNull)
			}
			return nil, nil
		})
	}
	pool.Run()

	merged := perWorker[0]
	for c := 1; c < nChunks; c++ {
		for g := range merged {
			merged[g].merge(perWorker[c][g])
		}
	}
	return merged
}

func chunkBounds(n, workers int) []int {
	if workers < 1 {
		workers = 1
	}
	size := sched.ChunkAligned(n, workers, 8)
	if size < 1 {
		size = n
	}
	bounds := []int{0}
	for pos := 0; pos < n; pos += size {
		end := pos + size
		if end > n {
			end = n
		}
		bounds = append(bounds, end)
	}
	return bounds
}

func rowValue(col *value.Value, row int64) (i64 int64, f64 float64, isNull bool) {
	switch value.VectorOf(col.Tag) {
	case value.TI64, value.TTimestamp:
		v := value.I64(col)[row]
		return v, float64(v), v == value.NullI64
	case value.TI32, value.TDate, value.TTime:
		v := value.I32(col)[row]
		return int64(v), float64(v), v == value.NullI32
	case value.TI16:
		v := value.I16(col)[row]
		return int64(v), float64(v), v == value.NullI16
	case value.TF64:
		v := value.F64(col)[row]
		return int64(v), v, math.IsNaN(v)
	case value.TU8, value.TC8:
		v := value.U8(col)[row]
		return int64(v), float64(v), v == value.NullU8
	default:
		return 0, 0, true
	}
}

func materialize(h *heap.Heap, col *value.Value, states []aggState, op AggOp, isFloat bool) (*value.Value, error) {
	n := len(states)
	switch op {
	case AggCount:
		out := value.NewVector(h, value.TI64, n)
		d := value.I64(out)
		for i, s := range states {
			d[i] = s.count
		}
		return out, nil
	case AggAvg:
		out := value.NewVector(h, value.TF64, n)
		d := value.F64(out)
		for i, s := range states {
			if !s.seen {
				d[i] = value.NullF64
				continue
			}
			sum := s.sumF64
			if !isFloat {
				sum = float64(s.sumI64)
			}
			d[i] = sum / float64(s.count)
		}
		return out, nil
	case AggSum:
		return materializeNumeric(h, states, isFloat, func(s aggState) (int64, float64) { return s.sumI64, s.sumF64 })
	case AggMin:
		return materializeNumeric(h, states, isFloat, func(s aggState) (int64, float64) { return s.minI64, s.minF64 })
	case AggMax:
		return materializeNumeric(h, states, isFloat, func(s aggState) (int64, float64) { return s.maxI64, s.maxF64 })
	case AggFirst:
		return materializeRowRef(h, col, states, func(s aggState) int64 { return s.firstRow })
	case AggLast:
		return materializeRowRef(h, col, states, func(s aggState) int64 { return s.lastRow })
	default:
		return nil, rayerr.NYI("aggregate operator")
	}
}

func materializeNumeric(h *heap.Heap, states []aggState, isFloat bool, pick func(aggState) (int64, float64)) (*value.Value, error) {
	n := len(states)
	if isFloat {
		out := value.NewVector(h, value.TF64, n)
		d := value.F64(out)
		for i, s := range states {
			if !s.seen {
				d[i] = value.NullF64
				continue
			}
			_, f := pick(s)
			d[i] = f
		}
		return out, nil
	}
	out := value.NewVector(h, value.TI64, n)
	d := value.I64(out)
	for i, s := range states {
		if !s.seen {
			d[i] = value.NullI64
			continue
		}
		iv, _ := pick(s)
		d[i] = iv
	}
	return out, nil
}

// materializeRowRef builds a group-indexed vector by gathering col at each
// group's recorded row, per spec §4.5.1's first_row/last_row fields;
// groups that never saw a row (a hole in a perfect-hash range) get the
// column's null sentinel.
func materializeRowRef(h *heap.Heap, col *value.Value, states []aggState, pick func(aggState) int64) (*value.Value, error) {
	tag := value.VectorOf(col.Tag)
	n := len(states)
	out := value.NewVector(h, tag, n)
	for i, s := range states {
		row := pick(s)
		if row < 0 {
			if err := writeNull(out, i, tag); err != nil {
				return nil, err
			}
			continue
		}
		if err := gatherOne(col, out, i, row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func gatherOne(src, dst *value.Value, dstIdx int, srcIdx int64) error {
	switch value.VectorOf(src.Tag) {
	case value.TB8:
		value.B8(dst)[dstIdx] = value.B8(src)[srcIdx]
	case value.TU8, value.TC8:
		value.U8(dst)[dstIdx] = value.U8(src)[srcIdx]
	case value.TI16:
		value.I16(dst)[dstIdx] = value.I16(src)[srcIdx]
	case value.TI32, value.TDate, value.TTime:
		value.I32(dst)[dstIdx] = value.I32(src)[srcIdx]
	case value.TI64, value.TSymbol, value.TTimestamp:
		value.I64(dst)[dstIdx] = value.I64(src)[srcIdx]
	case value.TF64:
		value.F64(dst)[dstIdx] = value.F64(src)[srcIdx]
	default:
		return rayerr.Type("gatherable vector", src.Tag.String(), 0, "aggregate first/last")
	}
	return nil
}

func writeNull(dst *value.Value, i int, tag value.Tag) error {
	switch tag {
	case value.TU8, value.TC8:
		value.U8(dst)[i] = value.NullU8
	case value.TI16:
		value.I16(dst)[i] = value.NullI16
	case value.TI32, value.TDate, value.TTime:
		value.I32(dst)[i] = value.NullI32
	case value.TI64, value.TSymbol, value.TTimestamp:
		value.I64(dst)[i] = value.NullI64
	case value.TF64:
		value.F64(dst)[i] = value.NullF64
	case value.TB8:
		value.B8(dst)[i] = false
	default:
		return rayerr.Type("nullable vector", tag.String(), 0, "aggregate first/last")
	}
	return nil
}
