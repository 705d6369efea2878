package packet

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Algorithm selects how a command's payload sum is formed before it is
// subtracted from the target constant.
type Algorithm uint8

const (
	// FullSum includes the declared length byte in the payload sum.
	FullSum Algorithm = iota

	// ValueOnly sums the payload bytes alone.
	ValueOnly
)

func (a Algorithm) String() string {
	switch a {
	case FullSum:
		return "fullSum"
	case ValueOnly:
		return "valueOnly"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

// UnmarshalYAML accepts the algorithm names used by command table files.
func (a *Algorithm) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "fullSum", "fullsum":
		*a = FullSum
	case "valueOnly", "valueonly":
		*a = ValueOnly
	default:
		return fmt.Errorf("unknown checksum algorithm %q", s)
	}
	return nil
}

// ChecksumSpec binds one command id to its checksum formula. Target is the
// per-command constant the payload sum is subtracted from. Swapped inverts the
// operand order, yielding sum-target instead of target-sum; the freedive alarm
// slot pairs share a target constant and differ only in this flag.
type ChecksumSpec struct {
	Command   byte      `yaml:"id"`
	Name      string    `yaml:"name,omitempty"`
	Algorithm Algorithm `yaml:"algorithm"`
	Target    byte      `yaml:"target"`
	Swapped   bool      `yaml:"swapped,omitempty"`
}

// Checksum computes the checksum byte for a frame with the given declared
// length byte and payload.
func (s ChecksumSpec) Checksum(length byte, payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	if s.Algorithm == FullSum {
		sum += length
	}
	if s.Swapped {
		return sum - s.Target
	}
	return s.Target - sum
}
