package eltwise

import "github.com/23skdu/longbow-axi/internal/accel"

// InFormat is the element format of the operand streams.
type InFormat uint8

const (
	InU8 InFormat = iota
	InS8
	InU16
	InS16
	InU32
	InS32
	InFP16
	// InFP32 passes FP32 operands through without conversion.
	InFP32
)

var inNames = map[InFormat]string{
	InU8: "u8", InS8: "s8", InU16: "u16", InS16: "s16",
	InU32: "u32", InS32: "s32", InFP16: "fp16", InFP32: "fp32",
}

func (f InFormat) String() string { return accel.EnumString(inNames, "InFormat", f) }

func (f InFormat) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *InFormat) UnmarshalText(b []byte) error {
	return accel.ParseEnum(inNames, "input format", b, f)
}

// Float reports whether the format is a floating-point one.
func (f InFormat) Float() bool { return f == InFP16 || f == InFP32 }

// Bytes is the stream item width of one element.
func (f InFormat) Bytes() int { return elemBytes(uint8(f)) }

// CalcFormat is the format the arithmetic cells work in.
type CalcFormat uint8

const (
	CalcS16 CalcFormat = iota
	CalcS32
	CalcFP32
)

var calcNames = map[CalcFormat]string{CalcS16: "s16", CalcS32: "s32", CalcFP32: "fp32"}

func (f CalcFormat) String() string { return accel.EnumString(calcNames, "CalcFormat", f) }

func (f CalcFormat) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *CalcFormat) UnmarshalText(b []byte) error {
	return accel.ParseEnum(calcNames, "calculation format", b, f)
}

// OutFormat is the element format of the result stream.
type OutFormat uint8

const (
	OutU8 OutFormat = iota
	OutS8
	OutU16
	OutS16
	OutU32
	OutS32
	OutFP16
	// OutFP32 passes FP32 results through without conversion.
	OutFP32
)

var outNames = map[OutFormat]string{
	OutU8: "u8", OutS8: "s8", OutU16: "u16", OutS16: "s16",
	OutU32: "u32", OutS32: "s32", OutFP16: "fp16", OutFP32: "fp32",
}

func (f OutFormat) String() string { return accel.EnumString(outNames, "OutFormat", f) }

func (f OutFormat) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *OutFormat) UnmarshalText(b []byte) error {
	return accel.ParseEnum(outNames, "output format", b, f)
}

func (f OutFormat) Float() bool { return f == OutFP16 || f == OutFP32 }

func (f OutFormat) Bytes() int { return elemBytes(uint8(f)) }

// elemBytes relies on the input and output codes sharing one layout.
func elemBytes(code uint8) int {
	switch code {
	case 0, 1:
		return 1
	case 2, 3, 6:
		return 2
	}
	return 4
}

// Units selects the functional units of the pipeline. Unused units are
// bypassed.
type Units struct {
	InConvert  bool `yaml:"in_convert" json:"in_convert"`
	Pow2       bool `yaml:"pow2" json:"pow2"`
	MAC        bool `yaml:"mac" json:"mac"`
	OutConvert bool `yaml:"out_convert" json:"out_convert"`
	Round      bool `yaml:"round" json:"round"`
}

// Capabilities is the immutable snapshot discovered from one elementwise core.
type Capabilities struct {
	accel.Identity

	MM2SWidth int `json:"mm2s_width"`
	S2MMWidth int `json:"s2mm_width"`
	Pipelines int `json:"pipelines"`

	// Units lists the functional units present in the build.
	Units       Units `json:"units"`
	PerfMonitor bool  `json:"perf_monitor"`

	InWidth1  bool `json:"in_width_1b"`
	InWidth2  bool `json:"in_width_2b"`
	InWidth4  bool `json:"in_width_4b"`
	OutWidth1 bool `json:"out_width_1b"`
	OutWidth2 bool `json:"out_width_2b"`
	OutWidth4 bool `json:"out_width_4b"`
	InCvtFP16 bool `json:"in_cvt_fp16"`
	InCvtInt  bool `json:"in_cvt_int"`
	CalcS16   bool `json:"calc_s16"`
	CalcS32   bool `json:"calc_s32"`
	CalcFP32  bool `json:"calc_fp32"`
	OutCvtS33 bool `json:"out_cvt_s33"`
	RoundS33  bool `json:"round_s33"`
	RoundFP32 bool `json:"round_fp32"`
}

func (c Capabilities) SupportsCalc(f CalcFormat) bool {
	switch f {
	case CalcS16:
		return c.CalcS16
	case CalcS32:
		return c.CalcS32
	case CalcFP32:
		return c.CalcFP32
	}
	return false
}

func (c Capabilities) inWidth(n int) bool {
	return n == 1 && c.InWidth1 || n == 2 && c.InWidth2 || n == 4 && c.InWidth4
}

func (c Capabilities) outWidth(n int) bool {
	return n == 1 && c.OutWidth1 || n == 2 && c.OutWidth2 || n == 4 && c.OutWidth4
}

// Operand describes one of the multiply-add coefficients. A constant is
// taken from Value; otherwise it streams from the second operand buffer.
type Operand struct {
	Const bool   `yaml:"const" json:"const"`
	Value uint32 `yaml:"value" json:"value"`
}

// Descriptor is one elementwise operation y = A*x^p + B.
type Descriptor struct {
	InFormat   InFormat   `yaml:"in_format" json:"in_format"`
	CalcFormat CalcFormat `yaml:"calc_format" json:"calc_format"`
	OutFormat  OutFormat  `yaml:"out_format" json:"out_format"`
	Units      Units      `yaml:"units" json:"units"`

	// Fractional bits of the fixed-point quantities.
	InFrac       int `yaml:"in_frac" json:"in_frac"`
	OpXFrac      int `yaml:"op_x_frac" json:"op_x_frac"`
	OpAFrac      int `yaml:"op_a_frac" json:"op_a_frac"`
	S33Frac      int `yaml:"s33_frac" json:"s33_frac"`
	RoundInFrac  int `yaml:"round_in_frac" json:"round_in_frac"`
	RoundOutFrac int `yaml:"round_out_frac" json:"round_out_frac"`

	AIsOne  bool    `yaml:"a_is_one" json:"a_is_one"`
	BIsZero bool    `yaml:"b_is_zero" json:"b_is_zero"`
	A       Operand `yaml:"a" json:"a"`
	B       Operand `yaml:"b" json:"b"`
}

// StreamsA reports whether operand A is read from memory.
func (d Descriptor) StreamsA() bool { return !d.AIsOne && !d.A.Const }

// StreamsB reports whether operand B is read from memory.
func (d Descriptor) StreamsB() bool { return !d.BIsZero && !d.B.Const }

// StreamsSecond reports whether the run needs the second operand buffer.
func (d Descriptor) StreamsSecond() bool {
	return d.Units.MAC && (d.StreamsA() || d.StreamsB())
}

// PerfCounters is a snapshot of the performance monitor.
type PerfCounters struct {
	Cycles uint32 `json:"cycles"`
}
