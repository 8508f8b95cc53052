package pool

import "github.com/23skdu/longbow-axi/internal/accel"

// Mode selects pooling or upsampling.
type Mode uint8

const (
	Avg Mode = iota
	Max
	Upsample
)

var modeNames = map[Mode]string{Avg: "avg", Max: "max", Upsample: "upsample"}

func (m Mode) String() string { return accel.EnumString(modeNames, "Mode", m) }

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	return accel.ParseEnum(modeNames, "pool mode", b, m)
}

// Pooling reports whether m slides a window rather than replicating samples.
func (m Mode) Pooling() bool { return m == Avg || m == Max }

// Format is the calculation data format.
type Format uint8

const (
	INT8 Format = iota
	INT16
	FP16
)

var formatNames = map[Format]string{INT8: "int8", INT16: "int16", FP16: "fp16"}

func (f Format) String() string { return accel.EnumString(formatNames, "Format", f) }

func (f Format) Fixed() bool { return f == INT8 || f == INT16 }

func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Format) UnmarshalText(b []byte) error {
	return accel.ParseEnum(formatNames, "format", b, f)
}

// OutputType is the width of one output element.
type OutputType uint8

const (
	Out1Byte OutputType = iota
	Out2Byte
	Out4Byte
)

var outputNames = map[OutputType]string{Out1Byte: "1byte", Out2Byte: "2byte", Out4Byte: "4byte"}

func (o OutputType) String() string { return accel.EnumString(outputNames, "OutputType", o) }

func (o OutputType) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *OutputType) UnmarshalText(b []byte) error {
	return accel.ParseEnum(outputNames, "output type", b, o)
}

var rowWidthCodes = map[int]uint64{4: 0, 8: 1, 16: 2, 32: 3, 64: 4, 128: 5, 256: 6, 512: 7, 1024: 8, 2048: 9, 4096: 10}

// Capabilities is the immutable snapshot discovered from one pooling core.
type Capabilities struct {
	accel.Identity

	Avg          bool `json:"avg"`
	Max          bool `json:"max"`
	Upsample     bool `json:"upsample"`
	INT8         bool `json:"int8"`
	INT16        bool `json:"int16"`
	FP16         bool `json:"fp16"`
	PostMAC      bool `json:"post_mac"`
	ExtPadding   bool `json:"ext_padding"`
	ConstPadding bool `json:"const_padding"`
	PerfMonitor  bool `json:"perf_monitor"`

	AtomicC           int `json:"atomic_c"`
	PostMACParallel   int `json:"post_mac_parallel"`
	MM2SWidth         int `json:"mm2s_width"`
	S2MMWidth         int `json:"s2mm_width"`
	BankCount         int `json:"bank_count"`
	BankDepth         int `json:"bank_depth"`
	MaxFeatureMapRows int `json:"max_feature_map_rows"`
	MidResBankCount   int `json:"mid_res_bank_count"`
	MidResBankDepth   int `json:"mid_res_bank_depth"`
}

func (c Capabilities) SupportsMode(m Mode) bool {
	switch m {
	case Avg:
		return c.Avg
	case Max:
		return c.Max
	case Upsample:
		return c.Upsample
	}
	return false
}

func (c Capabilities) SupportsFormat(f Format) bool {
	switch f {
	case INT8:
		return c.INT8
	case INT16:
		return c.INT16
	case FP16:
		return c.FP16
	}
	return false
}

// PostMAC is the optional y = A*x + B stage after pooling. A and B are raw
// words in the calculation format.
type PostMAC struct {
	Use     bool   `yaml:"use" json:"use"`
	AIsOne  bool   `yaml:"a_is_one" json:"a_is_one"`
	BIsZero bool   `yaml:"b_is_zero" json:"b_is_zero"`
	Frac    int    `yaml:"frac" json:"frac"`
	A       uint32 `yaml:"a" json:"a"`
	B       uint32 `yaml:"b" json:"b"`
}

// Descriptor is one pooling or upsampling layer in natural units. Window and
// stride apply to the pooling modes, the upsample factors to Upsample.
type Descriptor struct {
	Mode   Mode   `yaml:"mode" json:"mode"`
	Format Format `yaml:"format" json:"format"`

	StrideH int `yaml:"stride_h" json:"stride_h"`
	StrideV int `yaml:"stride_v" json:"stride_v"`
	WindowW int `yaml:"window_w" json:"window_w"`
	WindowH int `yaml:"window_h" json:"window_h"`

	UpsampleH int `yaml:"upsample_h" json:"upsample_h"`
	UpsampleV int `yaml:"upsample_v" json:"upsample_v"`

	Width      int        `yaml:"width" json:"width"`
	Height     int        `yaml:"height" json:"height"`
	Channels   int        `yaml:"channels" json:"channels"`
	PadLeft    int        `yaml:"pad_left" json:"pad_left"`
	PadRight   int        `yaml:"pad_right" json:"pad_right"`
	PadTop     int        `yaml:"pad_top" json:"pad_top"`
	PadBottom  int        `yaml:"pad_bottom" json:"pad_bottom"`
	OutputType OutputType `yaml:"output_type" json:"output_type"`
	RowWidth   int        `yaml:"row_width" json:"row_width"`

	// ConstPadding fills the padding with ConstValue instead of zero.
	ConstPadding bool   `yaml:"const_padding" json:"const_padding"`
	ConstValue   uint16 `yaml:"const_value" json:"const_value"`

	PostMAC PostMAC `yaml:"post_mac" json:"post_mac"`

	InputAddr  uint32 `yaml:"input_addr" json:"input_addr"`
	OutputAddr uint32 `yaml:"output_addr" json:"output_addr"`
}

// Plan holds every value derived from a descriptor and the capabilities.
type Plan struct {
	ExtWidth  int `json:"ext_width"`
	ExtHeight int `json:"ext_height"`
	OutWidth  int `json:"out_width"`
	OutHeight int `json:"out_height"`
	InputSize int `json:"input_size"`

	FeatureMapRows    int `json:"feature_map_rows"`
	MidResBanksPerRow int `json:"mid_res_banks_per_row"`
	MidResRows        int `json:"mid_res_rows"`

	ExpectedTransfers int `json:"expected_transfers"`
}

// PerfCounters is a snapshot of the performance monitor.
type PerfCounters struct {
	Cycles       uint32 `json:"cycles"`
	MM2SBytes    uint32 `json:"mm2s_bytes"`
	S2MMBytes    uint32 `json:"s2mm_bytes"`
	UpdateCycles uint32 `json:"update_cycles"`
}
