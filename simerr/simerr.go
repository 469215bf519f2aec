// Package simerr defines the error taxonomy shared by every subsystem of
// the simulator. Errors are plain wrapped Go errors, matched with
// errors.Is/errors.As by callers; nothing here is swallowed internally.
package simerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds used with errors.Is. Each mutating operation in the
// kernel wraps one of these with fmt.Errorf("...: %w", Kind...) so callers
// can classify a failure without parsing its message.
var (
	// ErrDevice covers a wrong-router dispatch, a missing BGP session, or
	// two routers that are not OSPF neighbors.
	ErrDevice = errors.New("device error")
	// ErrConfiguration covers duplicate expressions and modifiers whose
	// precondition is absent.
	ErrConfiguration = errors.New("configuration error")
	// ErrTopology covers unknown router/AS/link references.
	ErrTopology = errors.New("topology error")
	// ErrForwarding covers a black hole or forwarding loop.
	ErrForwarding = errors.New("forwarding error")
	// ErrSession covers an invalid session role or dual-client conflict.
	ErrSession = errors.New("session error")
	// ErrConvergence covers the message-limit-exceeded case.
	ErrConvergence = errors.New("convergence error")
	// ErrOspfConsistency covers LSA databases disagreeing across a
	// global<->local conversion.
	ErrOspfConsistency = errors.New("ospf consistency error")
	// ErrSerialization is propagated from the encoder/decoder.
	ErrSerialization = errors.New("serialization error")
)

// Wrap attaches kind to err's chain via fmt.Errorf's %w so that
// errors.Is(result, kind) reports true.
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// DeviceErrorf builds an ErrDevice.
func DeviceErrorf(format string, args ...any) error { return Wrap(ErrDevice, format, args...) }

// ConfigurationErrorf builds an ErrConfiguration.
func ConfigurationErrorf(format string, args ...any) error {
	return Wrap(ErrConfiguration, format, args...)
}

// TopologyErrorf builds an ErrTopology.
func TopologyErrorf(format string, args ...any) error { return Wrap(ErrTopology, format, args...) }

// ForwardingErrorf builds an ErrForwarding.
func ForwardingErrorf(format string, args ...any) error {
	return Wrap(ErrForwarding, format, args...)
}

// SessionErrorf builds an ErrSession.
func SessionErrorf(format string, args ...any) error { return Wrap(ErrSession, format, args...) }

// ConvergenceErrorf builds an ErrConvergence.
func ConvergenceErrorf(format string, args ...any) error {
	return Wrap(ErrConvergence, format, args...)
}

// OspfConsistencyErrorf builds an ErrOspfConsistency.
func OspfConsistencyErrorf(format string, args ...any) error {
	return Wrap(ErrOspfConsistency, format, args...)
}

// SerializationErrorf builds an ErrSerialization.
func SerializationErrorf(format string, args ...any) error {
	return Wrap(ErrSerialization, format, args...)
}
