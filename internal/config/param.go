package config

import (
	"encoding/json"
	"fmt"
)

// Sentinel is the byte value the external configuration schema uses to mean
// "this threshold is not configured". Any check whose governing Param carries
// the sentinel must be skipped, never evaluated against 255 as a bound.
const Sentinel = 255

// Param is an optional integer threshold. The zero value is "not configured".
// It replaces the raw sentinel convention of the configuration schema with an
// explicit set/unset state, while the JSON codec preserves the legacy wire
// form (255 or null = unset).
type Param struct {
	value int
	set   bool
}

// Set returns a configured Param.
func Set(v int) Param {
	return Param{value: v, set: true}
}

// Unset returns an unconfigured Param.
func Unset() Param {
	return Param{}
}

// Enabled reports whether the parameter was configured.
func (p Param) Enabled() bool {
	return p.set
}

// Value returns the configured value, or 0 when unset.
func (p Param) Value() int {
	if !p.set {
		return 0
	}
	return p.value
}

// Or returns the configured value, or def when unset.
func (p Param) Or(def int) int {
	if !p.set {
		return def
	}
	return p.value
}

// String implements fmt.Stringer.
func (p Param) String() string {
	if !p.set {
		return "unset"
	}
	return fmt.Sprintf("%d", p.value)
}

// MarshalJSON writes the legacy wire form: the sentinel for unset params.
func (p Param) MarshalJSON() ([]byte, error) {
	if !p.set {
		return json.Marshal(Sentinel)
	}
	return json.Marshal(p.value)
}

// UnmarshalJSON accepts a number, null, or the sentinel. 255 and null both
// decode as unset; everything else is a configured value.
func (p *Param) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Param{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("param: %w", err)
	}
	if v == Sentinel {
		*p = Param{}
		return nil
	}
	if v < 0 {
		return fmt.Errorf("param: negative value %d", v)
	}
	*p = Param{value: v, set: true}
	return nil
}
