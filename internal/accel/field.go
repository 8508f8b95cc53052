package accel

import (
	"fmt"
	"sort"

	"github.com/23skdu/longbow-axi/internal/mmio"
)

// Encoding is the transform between a natural value and its stored bits.
type Encoding uint8

const (
	// Direct stores the value as is: an n-bit field holds 0..2^n-1.
	Direct Encoding = iota
	// MinusOne stores value-1: an n-bit field holds 1..2^n.
	MinusOne
)

func (e Encoding) String() string {
	switch e {
	case Direct:
		return "direct"
	case MinusOne:
		return "minus_one"
	default:
		return fmt.Sprintf("Encoding(%d)", e)
	}
}

// Field is one row of a register layout table.
type Field struct {
	Name     string
	Offset   uint32
	Shift    uint
	Width    uint
	Encoding Encoding
}

func (f Field) mask() uint32 {
	return uint32((uint64(1)<<f.Width)-1) << f.Shift
}

// Range returns the legal natural values of the field.
func (f Field) Range() (lo, hi uint64) {
	span := uint64(1) << f.Width
	if f.Encoding == MinusOne {
		return 1, span
	}
	return 0, span - 1
}

// Encode converts a natural value into the field's bits positioned in the word.
func (f Field) Encode(v uint64) (uint32, error) {
	lo, hi := f.Range()
	if v < lo || v > hi {
		return 0, OutOfRange(f.Name, int64(v), int64(lo), int64(hi))
	}
	if f.Encoding == MinusOne {
		v--
	}
	return uint32(v<<f.Shift) & f.mask(), nil
}

// Decode extracts the natural value from a whole register word.
func (f Field) Decode(word uint32) uint64 {
	v := uint64((word & f.mask()) >> f.Shift)
	if f.Encoding == MinusOne {
		v++
	}
	return v
}

// Image is a staged register image: words keyed by offset, kept in the order
// they were first touched. Nothing reaches hardware until Commit.
type Image struct {
	order []uint32
	words map[uint32]uint32
}

func NewImage() *Image {
	return &Image{words: make(map[uint32]uint32)}
}

func (im *Image) touch(off uint32) {
	if _, ok := im.words[off]; !ok {
		im.order = append(im.order, off)
		im.words[off] = 0
	}
}

// Put encodes v into f, merging it with the other fields of the same word.
func (im *Image) Put(f Field, v uint64) error {
	bits, err := f.Encode(v)
	if err != nil {
		return err
	}
	im.touch(f.Offset)
	im.words[f.Offset] = (im.words[f.Offset] &^ f.mask()) | bits
	return nil
}

// PutBool stores a one-bit flag.
func (im *Image) PutBool(f Field, b bool) error {
	var v uint64
	if b {
		v = 1
	}
	return im.Put(f, v)
}

// SetWord stages a whole raw word, e.g. a DMA base address or float bits.
func (im *Image) SetWord(off uint32, v uint32) {
	im.touch(off)
	im.words[off] = v
}

// Word returns the staged word at off.
func (im *Image) Word(off uint32) (uint32, bool) {
	v, ok := im.words[off]
	return v, ok
}

// Get decodes f from the staged image.
func (im *Image) Get(f Field) uint64 {
	return f.Decode(im.words[f.Offset])
}

func (im *Image) Len() int { return len(im.order) }

// Words returns the staged words sorted by offset.
func (im *Image) Words() []mmio.Access {
	out := make([]mmio.Access, 0, len(im.order))
	for _, off := range im.order {
		out = append(out, mmio.Access{Offset: off, Value: im.words[off]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// Commit writes every staged word in first-touch order.
func (im *Image) Commit(rf mmio.RegisterFile) {
	for _, off := range im.order {
		rf.Write32(off, im.words[off])
	}
}

// Layout is a family's register table, used for dumps and decoding.
type Layout []Field

// Decode reads every field of the layout out of an image.
func (l Layout) Decode(im *Image) map[string]uint64 {
	out := make(map[string]uint64, len(l))
	for _, f := range l {
		if _, ok := im.Word(f.Offset); ok {
			out[f.Name] = im.Get(f)
		}
	}
	return out
}

// Lookup returns the field called name.
func (l Layout) Lookup(name string) (Field, bool) {
	for _, f := range l {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
