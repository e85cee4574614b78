package gindex

import (
	"errors"

	"github.com/spacemeshos/go-gindex/collective"
	"github.com/spacemeshos/go-gindex/distribution"
)

var (
	// ErrShapeMismatch is returned when a local array does not have the
	// length the plan expects.
	ErrShapeMismatch = errors.New("shape mismatch")

	ErrInvalidDistribution      = distribution.ErrInvalidDistribution
	ErrInconsistentDistribution = distribution.ErrInconsistentDistribution
	ErrIndexOutOfRange          = distribution.ErrIndexOutOfRange
	ErrProtocolViolation        = collective.ErrProtocolViolation
	ErrExchangeTimeout          = collective.ErrExchangeTimeout
	ErrPeerAborted              = collective.ErrPeerAborted
)
