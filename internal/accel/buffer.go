package accel

import "fmt"

// MaxBufferLen is the largest transfer length a DMA descriptor can carry.
const MaxBufferLen = 1<<24 - 1

// Buffer is one DMA-visible region, addressed as the accelerator sees it.
type Buffer struct {
	Addr uint32 `json:"addr" yaml:"addr"`
	Len  uint32 `json:"len" yaml:"len"`
}

// BufferConfig is the DMA-facing record passed at start: the operand
// stream, the optional second operand stream and the result stream.
type BufferConfig struct {
	Operand Buffer `json:"operand" yaml:"operand"`
	Second  Buffer `json:"second" yaml:"second"`
	Result  Buffer `json:"result" yaml:"result"`
}

// Check rejects lengths that do not fit the 24-bit length fields. The second
// operand is only checked when it will be streamed.
func (b BufferConfig) Check(useSecond bool) error {
	check := func(name string, buf Buffer) error {
		if buf.Len > MaxBufferLen {
			return fmt.Errorf("%s buffer: %w", name, OutOfRange("len", int64(buf.Len), 0, MaxBufferLen))
		}
		return nil
	}
	if err := check("operand", b.Operand); err != nil {
		return err
	}
	if useSecond {
		if err := check("second", b.Second); err != nil {
			return err
		}
	}
	return check("result", b.Result)
}
