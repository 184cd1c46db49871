package signal

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Value is the tri-state outcome for one signal on one subject.
// The zero value is Unknown.
type Value uint8

const (
	// Unknown means the evidence needed to decide was not available.
	Unknown Value = iota
	// Present means the evidence shows the signal is satisfied.
	Present
	// Absent means the evidence was available and shows nothing.
	Absent
)

// String returns "true", "false" or "UNKNOWN".
func (v Value) String() string {
	switch v {
	case Present:
		return "true"
	case Absent:
		return "false"
	default:
		return "UNKNOWN"
	}
}

// Of converts a definite boolean into Present or Absent.
func Of(b bool) Value {
	if b {
		return Present
	}
	return Absent
}

// MarshalJSON encodes Present and Absent as booleans and Unknown as "UNKNOWN".
func (v Value) MarshalJSON() ([]byte, error) {
	switch v {
	case Present:
		return []byte("true"), nil
	case Absent:
		return []byte("false"), nil
	default:
		return []byte(`"UNKNOWN"`), nil
	}
}

// UnmarshalJSON accepts true, false, null and "UNKNOWN".
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	return v.set(raw)
}

// MarshalYAML mirrors MarshalJSON.
func (v Value) MarshalYAML() (interface{}, error) {
	switch v {
	case Present:
		return true, nil
	case Absent:
		return false, nil
	default:
		return "UNKNOWN", nil
	}
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return v.set(raw)
}

func (v *Value) set(raw interface{}) error {
	switch r := raw.(type) {
	case nil:
		*v = Unknown
	case bool:
		*v = Of(r)
	case string:
		if !strings.EqualFold(r, "UNKNOWN") {
			return fmt.Errorf("invalid signal value %q", r)
		}
		*v = Unknown
	default:
		return fmt.Errorf("invalid signal value %v", raw)
	}
	return nil
}

// Profile holds exactly one Value per canonical signal (CanonicalSignals).
// A zero Profile is entirely Unknown.
type Profile [numSignals]Value

// UnknownProfile returns a profile with every signal Unknown.
func UnknownProfile() Profile {
	return Profile{}
}

// Get returns the value of s.
func (p Profile) Get(s Signal) Value {
	return p[s]
}

// With returns a copy of p with s set to v.
func (p Profile) With(s Signal, v Value) Profile {
	p[s] = v
	return p
}

// Count returns how many signals hold v.
func (p Profile) Count(v Value) int {
	n := 0
	for _, got := range p {
		if got == v {
			n++
		}
	}
	return n
}

// MarshalJSON encodes the profile as an object with exactly seven keys.
func (p Profile) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, s := range All() {
		if i > 0 {
			b.WriteByte(',')
		}
		val, _ := p[s].MarshalJSON()
		fmt.Fprintf(&b, "%q:%s", s.String(), val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// UnmarshalJSON requires all seven keys.
func (p *Profile) UnmarshalJSON(b []byte) error {
	var raw map[string]Value
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	return p.fromMap(raw)
}

// MarshalYAML encodes the profile as an ordered mapping.
func (p Profile) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range All() {
		var val yaml.Node
		v, _ := p[s].MarshalYAML()
		if err := val.Encode(v); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: s.String()},
			&val,
		)
	}
	return node, nil
}

// UnmarshalYAML requires all seven keys.
func (p *Profile) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]Value
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return p.fromMap(raw)
}

func (p *Profile) fromMap(raw map[string]Value) error {
	if len(raw) != numSignals {
		return fmt.Errorf("signal profile must have exactly %d keys, got %d", numSignals, len(raw))
	}
	var out Profile
	seen := make(map[Signal]bool, numSignals)
	for k, v := range raw {
		s, err := Parse(k)
		if err != nil {
			return err
		}
		if seen[s] {
			return fmt.Errorf("signal profile has duplicate key for %s", s)
		}
		seen[s] = true
		out[s] = v
	}
	*p = out
	return nil
}
