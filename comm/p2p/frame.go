package p2p

import (
	"github.com/spacemeshos/go-scale"
)

const (
	// maxFrameSize bounds a single frame on the wire, compressed or not.
	maxFrameSize = 1 << 30

	flagCompressed byte = 1 << 0
)

// frame is one message on a rank-to-rank stream.
type frame struct {
	Source uint32
	Tag    uint64
	Flags  byte
	Body   []byte
}

func (f *frame) compressed() bool {
	return f.Flags&flagCompressed != 0
}

func (f *frame) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeCompact32(enc, f.Source)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, f.Tag)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByte(enc, f.Flags)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, f.Body, maxFrameSize)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (f *frame) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		f.Source = field
	}
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		f.Tag = field
	}
	{
		field, n, err := scale.DecodeByte(dec)
		if err != nil {
			return total, err
		}
		total += n
		f.Flags = field
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, maxFrameSize)
		if err != nil {
			return total, err
		}
		total += n
		f.Body = field
	}
	return total, nil
}
