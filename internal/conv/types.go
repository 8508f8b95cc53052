package conv

import "github.com/23skdu/longbow-axi/internal/accel"

// Format is the calculation data format.
type Format uint8

const (
	INT8 Format = iota
	INT16
	FP16
)

var formatNames = map[Format]string{INT8: "int8", INT16: "int16", FP16: "fp16"}

func (f Format) String() string { return accel.EnumString(formatNames, "Format", f) }

// Fixed reports whether the format is fixed-point.
func (f Format) Fixed() bool { return f == INT8 || f == INT16 }

// ElemBytes is the size of one input element.
func (f Format) ElemBytes() int {
	if f == INT8 {
		return 1
	}
	return 2
}

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

// Activation selects the activation function applied after batch norm.
type Activation uint8

const (
	ReLU Activation = iota
	LeakyReLU
	Sigmoid
	Tanh
)

var activationNames = map[Activation]string{
	ReLU:      "relu",
	LeakyReLU: "leaky_relu",
	Sigmoid:   "sigmoid",
	Tanh:      "tanh",
}

func (a Activation) String() string { return accel.EnumString(activationNames, "Activation", a) }

func (a Activation) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Activation) UnmarshalText(b []byte) error {
	return accel.ParseEnum(activationNames, "activation", b, a)
}

// Hardware enumerants. Lookups fail instead of silently encoding zero.
var (
	kernelShapeCodes = map[int]uint64{1: 0, 3: 1, 5: 2, 7: 3, 9: 4, 11: 5}
	rowWidthCodes    = map[int]uint64{4: 0, 8: 1, 16: 2, 32: 3, 64: 4, 128: 5, 256: 6, 512: 7, 1024: 8, 2048: 9, 4096: 10}
	surfaceCodes     = map[int]uint64{1: 0, 2: 1, 4: 2, 8: 3, 16: 4, 32: 5, 64: 6, 128: 7}
)

// Capabilities is the immutable snapshot discovered from one convolution core.
type Capabilities struct {
	accel.Identity

	BN           bool `json:"bn"`
	LeakyReLU    bool `json:"leaky_relu"`
	Sigmoid      bool `json:"sigmoid"`
	Tanh         bool `json:"tanh"`
	INT8         bool `json:"int8"`
	INT16        bool `json:"int16"`
	FP16         bool `json:"fp16"`
	LargeVStride bool `json:"large_v_stride"`
	LargeHStride bool `json:"large_h_stride"`
	GroupConv    bool `json:"group_conv"`
	ExtPadding   bool `json:"ext_padding"`
	InnerPadding bool `json:"inner_padding"`
	Dilation     bool `json:"dilation"`
	PerfMonitor  bool `json:"perf_monitor"`

	AtomicK           int `json:"atomic_k"`
	AtomicC           int `json:"atomic_c"`
	BNActParallel     int `json:"bn_act_parallel"`
	MaxCalcRounds     int `json:"max_calc_rounds"`
	MM2SWidth         int `json:"mm2s_width"`
	S2MMWidth         int `json:"s2mm_width"`
	BankCount         int `json:"bank_count"`
	BankDepth         int `json:"bank_depth"`
	MaxFeatureMapRows int `json:"max_feature_map_rows"`
	MaxKernels        int `json:"max_kernels"`
	MidResBankCount   int `json:"mid_res_bank_count"`
	MidResBankDepth   int `json:"mid_res_bank_depth"`
	MidResClockRate   int `json:"mid_res_clock_rate"`
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

func (c Capabilities) SupportsActivation(a Activation) bool {
	switch a {
	case ReLU:
		return true
	case LeakyReLU:
		return c.LeakyReLU
	case Sigmoid:
		return c.Sigmoid
	case Tanh:
		return c.Tanh
	}
	return false
}

// BNAct configures the batch-normalization and activation stage.
type BNAct struct {
	UseBN     bool `yaml:"use_bn" json:"use_bn"`
	BNFrac    int  `yaml:"bn_frac" json:"bn_frac"`
	BNAIsOne  bool `yaml:"bn_a_is_one" json:"bn_a_is_one"`
	BNBIsZero bool `yaml:"bn_b_is_zero" json:"bn_b_is_zero"`

	UseActivation bool       `yaml:"use_activation" json:"use_activation"`
	Activation    Activation `yaml:"activation" json:"activation"`
	LeakyFrac     int        `yaml:"leaky_frac" json:"leaky_frac"`
	LeakyAlpha    float32    `yaml:"leaky_alpha" json:"leaky_alpha"`
	SigmoidFrac   int        `yaml:"sigmoid_frac" json:"sigmoid_frac"`
}

// Enabled reports whether the BN/activation stage must be switched on.
func (b BNAct) Enabled() bool { return b.UseBN || b.UseActivation }

// Descriptor is one convolution layer in natural units.
type Descriptor struct {
	Format  Format `yaml:"format" json:"format"`
	StrideV int    `yaml:"stride_v" json:"stride_v"`
	StrideH int    `yaml:"stride_h" json:"stride_h"`
	Rounds  int    `yaml:"rounds" json:"rounds"`

	Width     int `yaml:"width" json:"width"`
	Height    int `yaml:"height" json:"height"`
	Channels  int `yaml:"channels" json:"channels"`
	PadLeft   int `yaml:"pad_left" json:"pad_left"`
	PadRight  int `yaml:"pad_right" json:"pad_right"`
	PadTop    int `yaml:"pad_top" json:"pad_top"`
	PadBottom int `yaml:"pad_bottom" json:"pad_bottom"`
	// InnerH and InnerV insert zeros between samples along each axis.
	InnerH     int        `yaml:"inner_h" json:"inner_h"`
	InnerV     int        `yaml:"inner_v" json:"inner_v"`
	OutputType OutputType `yaml:"output_type" json:"output_type"`

	KernelSize     int `yaml:"kernel_size" json:"kernel_size"`
	Dilation       int `yaml:"dilation" json:"dilation"`
	KernelChannels int `yaml:"kernel_channels" json:"kernel_channels"`
	Kernels        int `yaml:"kernels" json:"kernels"`

	Groups              int `yaml:"groups" json:"groups"`
	MaxWeightBlockWidth int `yaml:"max_weight_block_width" json:"max_weight_block_width"`

	FeatureMapBanks     int `yaml:"feature_map_banks" json:"feature_map_banks"`
	RowWidth            int `yaml:"row_width" json:"row_width"`
	WeightBlockSurfaces int `yaml:"weight_block_surfaces" json:"weight_block_surfaces"`

	BNAct BNAct `yaml:"bn_act" json:"bn_act"`

	InputAddr  uint32 `yaml:"input_addr" json:"input_addr"`
	OutputAddr uint32 `yaml:"output_addr" json:"output_addr"`
	WeightAddr uint32 `yaml:"weight_addr" json:"weight_addr"`
}

// Plan holds every value derived from a descriptor and the capabilities.
type Plan struct {
	ExtWidth       int `json:"ext_width"`
	ExtHeight      int `json:"ext_height"`
	ExtInputBottom int `json:"ext_input_bottom"`
	DilatedKernel  int `json:"dilated_kernel"`
	OutWidth       int `json:"out_width"`
	OutHeight      int `json:"out_height"`

	InputSize           int `json:"input_size"`
	ChannelsPerGroup    int `json:"channels_per_group"`
	ChannelsPerSet      int `json:"channels_per_set"`
	ChannelGroupsPerSet int `json:"channel_groups_per_set"`
	KernelSets          int `json:"kernel_sets"`
	GroupDataBytes      int `json:"group_data_bytes"`

	FeatureMapRows    int `json:"feature_map_rows"`
	WeightBlocks      int `json:"weight_blocks"`
	MidResItems       int `json:"mid_res_items"`
	MidResBanksPerRow int `json:"mid_res_banks_per_row"`
	MidResRows        int `json:"mid_res_rows"`

	ExpectedTransfers int `json:"expected_transfers"`
}

// BNParam is one (A, B) coefficient pair of the BN parameter memory.
type BNParam struct {
	A float32
	B float32
}

// PerfCounters is a snapshot of the performance monitor.
type PerfCounters struct {
	Cycles       uint32 `json:"cycles"`
	MM2S0Bytes   uint32 `json:"mm2s0_bytes"`
	MM2S1Bytes   uint32 `json:"mm2s1_bytes"`
	S2MMBytes    uint32 `json:"s2mm_bytes"`
	SurfacesDone uint32 `json:"surfaces_done"`
}
