package collective

import (
	"fmt"

	"github.com/spacemeshos/go-scale"
)

const (
	// maxBodySize bounds a single message body.
	maxBodySize = 1 << 30
	// maxReasonSize bounds the abort reason carried to peers.
	maxReasonSize = 1024
)

const flagAbort byte = 1

// Op identifies the collective operation a round belongs to. Peers that are
// in different operations for the same round are out of step.
type Op uint8

const (
	OpAllGather Op = iota + 1
	OpVerifyTable
	OpTableCounts
	OpPlanCounts
	OpPlanOffsets
	OpTake
	OpPlanConfirm
)

func (op Op) String() string {
	switch op {
	case OpAllGather:
		return "allgather"
	case OpVerifyTable:
		return "verify-table"
	case OpTableCounts:
		return "table-counts"
	case OpPlanCounts:
		return "plan-counts"
	case OpPlanOffsets:
		return "plan-offsets"
	case OpTake:
		return "take"
	case OpPlanConfirm:
		return "plan-confirm"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// envelope is the unit sent to every peer in a round.
type envelope struct {
	Seq    uint64
	Op     Op
	Flags  byte
	Reason []byte
	Body   []byte
}

func (e *envelope) aborted() bool {
	return e.Flags&flagAbort != 0
}

func (e *envelope) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := scale.EncodeCompact64(enc, e.Seq)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByte(enc, byte(e.Op))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByte(enc, e.Flags)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, e.Reason, maxReasonSize)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, e.Body, maxBodySize)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (e *envelope) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		e.Seq = field
	}
	{
		field, n, err := scale.DecodeByte(dec)
		if err != nil {
			return total, err
		}
		total += n
		e.Op = Op(field)
	}
	{
		field, n, err := scale.DecodeByte(dec)
		if err != nil {
			return total, err
		}
		total += n
		e.Flags = field
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, maxReasonSize)
		if err != nil {
			return total, err
		}
		total += n
		e.Reason = field
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, maxBodySize)
		if err != nil {
			return total, err
		}
		total += n
		e.Body = field
	}
	return total, nil
}
