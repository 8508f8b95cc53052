package sweep

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Schema is the column layout of a sweep record.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "family", Type: arrow.BinaryTypes.String},
	{Name: "width", Type: arrow.PrimitiveTypes.Int32},
	{Name: "height", Type: arrow.PrimitiveTypes.Int32},
	{Name: "channels", Type: arrow.PrimitiveTypes.Int32},
	{Name: "kernels", Type: arrow.PrimitiveTypes.Int32},
	{Name: "stride", Type: arrow.PrimitiveTypes.Int32},
	{Name: "rounds", Type: arrow.PrimitiveTypes.Int32},
	{Name: "row_width", Type: arrow.PrimitiveTypes.Int32},
	{Name: "feasible", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "kind", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "field", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "out_width", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	{Name: "out_height", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	{Name: "feature_map_rows", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	{Name: "mid_res_rows", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	{Name: "expected_transfers", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
}, nil)

// Record builds an Arrow record from points. Rejected points carry nulls in
// the plan columns and feasible ones in kind and field. The caller releases
// the record.
func Record(mem memory.Allocator, points []Point) arrow.Record {
	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	str := func(i int) *array.StringBuilder { return b.Field(i).(*array.StringBuilder) }
	i32 := func(i int) *array.Int32Builder { return b.Field(i).(*array.Int32Builder) }
	optStr := func(i int, ok bool, v string) {
		if ok {
			str(i).Append(v)
		} else {
			str(i).AppendNull()
		}
	}
	optInt := func(i int, ok bool, v int) {
		if ok {
			i32(i).Append(int32(v))
		} else {
			i32(i).AppendNull()
		}
	}

	for _, p := range points {
		str(0).Append(p.Family)
		i32(1).Append(int32(p.Width))
		i32(2).Append(int32(p.Height))
		i32(3).Append(int32(p.Channels))
		i32(4).Append(int32(p.Kernels))
		i32(5).Append(int32(p.Stride))
		i32(6).Append(int32(p.Rounds))
		i32(7).Append(int32(p.RowWidth))
		b.Field(8).(*array.BooleanBuilder).Append(p.Feasible)
		optStr(9, !p.Feasible, p.Kind)
		optStr(10, !p.Feasible && p.Field != "", p.Field)
		optInt(11, p.Feasible, p.OutWidth)
		optInt(12, p.Feasible, p.OutHeight)
		optInt(13, p.Feasible, p.FeatureMapRows)
		optInt(14, p.Feasible, p.MidResRows)
		optInt(15, p.Feasible, p.ExpectedTransfers)
	}
	return b.NewRecord()
}

// Write streams points to w in the Arrow IPC file format.
func Write(w io.Writer, points []Point) error {
	mem := memory.NewGoAllocator()
	rec := Record(mem, points)
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(Schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("create arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("write sweep record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close arrow writer: %w", err)
	}
	return nil
}

// WriteFile writes points to path as an Arrow IPC file.
func WriteFile(path string, points []Point) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, points); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
