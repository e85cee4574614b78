package codec

import (
	"math"
	"testing"

	"github.com/spacemeshos/go-scale"
	"github.com/stretchr/testify/require"
)

type pair struct {
	A uint64
	B []byte
}

func (p *pair) EncodeScale(enc *scale.Encoder) (int, error) {
	total, err := scale.EncodeCompact64(enc, p.A)
	if err != nil {
		return total, err
	}
	n, err := scale.EncodeByteSliceWithLimit(enc, p.B, 16)
	return total + n, err
}

func (p *pair) DecodeScale(dec *scale.Decoder) (int, error) {
	a, total, err := scale.DecodeCompact64(dec)
	if err != nil {
		return total, err
	}
	p.A = a
	b, n, err := scale.DecodeByteSliceWithLimit(dec, 16)
	p.B = b
	return total + n, err
}

func TestEncodeDecode(t *testing.T) {
	in := pair{A: 1 << 40, B: []byte("payload")}
	buf, err := Encode(&in)
	require.NoError(t, err)

	var out pair
	require.NoError(t, Decode(buf, &out))
	require.Equal(t, in, out)

	require.Error(t, Decode(append(buf, 0), &out), "trailing bytes")
	require.Error(t, Decode(buf[:len(buf)-1], &out))
}

func TestEncodeLimit(t *testing.T) {
	_, err := Encode(&pair{B: make([]byte, 17)})
	require.Error(t, err)
}

type celsius float32

func TestNumbers(t *testing.T) {
	floats := []float64{0, -1.5, math.Inf(1), math.MaxFloat64}
	out, err := DecodeNumbers[float64](EncodeNumbers(floats), len(floats))
	require.NoError(t, err)
	require.Equal(t, floats, out)

	named := []celsius{36.6, -40}
	buf := EncodeNumbers(named)
	require.Len(t, buf, 8)
	back, err := DecodeNumbers[celsius](buf, 2)
	require.NoError(t, err)
	require.Equal(t, named, back)

	ints := []int32{math.MinInt32, 7}
	backInts, err := DecodeNumbers[int32](EncodeNumbers(ints), 2)
	require.NoError(t, err)
	require.Equal(t, ints, backInts)
}

func TestNumbersEmptyAndShort(t *testing.T) {
	require.Nil(t, EncodeNumbers[uint64](nil))
	out, err := DecodeNumbers[uint64](nil, 0)
	require.NoError(t, err)
	require.Empty(t, out)

	_, err = DecodeNumbers[uint64](make([]byte, 7), 1)
	require.Error(t, err)
	require.Equal(t, 8, SizeOf[uint64]())
	require.Equal(t, 1, SizeOf[int8]())
}
