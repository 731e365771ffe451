package paramspace

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Ref is one entry of a configuration's ordered sub-configuration list. Name is
// the parameter that produced it and Value the referenced configuration.
type Ref struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Configuration is one concrete assignment of values to parameters. It is
// immutable once built; accessors hand out copies.
type Configuration struct {
	ints       map[string]int64
	reals      map[string]float64
	strs       map[string]string
	subConfigs []Ref
	signature  string
}

// NewConfiguration builds a configuration from copies of the given values.
// Sub-configuration order is preserved.
func NewConfiguration(ints map[string]int64, reals map[string]float64, strs map[string]string, subConfigs []Ref) Configuration {
	c := Configuration{
		ints:       make(map[string]int64, len(ints)),
		reals:      make(map[string]float64, len(reals)),
		strs:       make(map[string]string, len(strs)),
		subConfigs: append([]Ref(nil), subConfigs...),
	}
	for k, v := range ints {
		c.ints[k] = v
	}
	for k, v := range reals {
		c.reals[k] = v
	}
	for k, v := range strs {
		c.strs[k] = v
	}
	c.signature = c.computeSignature()
	return c
}

// Int returns the integer parameter with the given name
func (c Configuration) Int(name string) (int64, bool) {
	v, ok := c.ints[name]
	return v, ok
}

// Real returns the real parameter with the given name
func (c Configuration) Real(name string) (float64, bool) {
	v, ok := c.reals[name]
	return v, ok
}

// Str returns the string parameter with the given name
func (c Configuration) Str(name string) (string, bool) {
	v, ok := c.strs[name]
	return v, ok
}

// SubConfig returns the reference produced by the named parameter
func (c Configuration) SubConfig(name string) (string, bool) {
	for _, r := range c.subConfigs {
		if r.Name == name {
			return r.Value, true
		}
	}
	return "", false
}

func (c Configuration) Ints() map[string]int64 {
	out := make(map[string]int64, len(c.ints))
	for k, v := range c.ints {
		out[k] = v
	}
	return out
}

func (c Configuration) Reals() map[string]float64 {
	out := make(map[string]float64, len(c.reals))
	for k, v := range c.reals {
		out[k] = v
	}
	return out
}

func (c Configuration) Strings() map[string]string {
	out := make(map[string]string, len(c.strs))
	for k, v := range c.strs {
		out[k] = v
	}
	return out
}

// SubConfigs returns the ordered sub-configuration references
func (c Configuration) SubConfigs() []Ref {
	return append([]Ref(nil), c.subConfigs...)
}

// Len is the number of parameter values held
func (c Configuration) Len() int {
	return len(c.ints) + len(c.reals) + len(c.strs) + len(c.subConfigs)
}

// Clone returns a deep, independent copy
func (c Configuration) Clone() Configuration {
	return NewConfiguration(c.ints, c.reals, c.strs, c.subConfigs)
}

// Signature is the content key of the configuration: sorted name=value pairs
// joined by ';'. Two configurations are equal iff their signatures are.
func (c Configuration) Signature() string {
	return c.signature
}

// Equal compares configurations by content
func (c Configuration) Equal(other Configuration) bool {
	return c.signature == other.signature
}

func (c Configuration) computeSignature() string {
	pairs := make(map[string]string, c.Len())
	for k, v := range c.ints {
		pairs[k] = strconv.FormatInt(v, 10)
	}
	for k, v := range c.reals {
		pairs[k] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	for k, v := range c.strs {
		pairs[k] = v
	}
	for _, r := range c.subConfigs {
		pairs[r.Name] = r.Value
	}

	var sb strings.Builder
	for i, k := range sortedKeys(pairs) {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(pairs[k])
	}
	return sb.String()
}

type configurationJSON struct {
	Ints       map[string]int64   `json:"ints,omitempty"`
	Reals      map[string]float64 `json:"reals,omitempty"`
	Strings    map[string]string  `json:"strings,omitempty"`
	SubConfigs []Ref              `json:"sub_configs,omitempty"`
}

func (c Configuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(configurationJSON{
		Ints:       c.ints,
		Reals:      c.reals,
		Strings:    c.strs,
		SubConfigs: c.subConfigs,
	})
}

func (c *Configuration) UnmarshalJSON(data []byte) error {
	var raw configurationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = NewConfiguration(raw.Ints, raw.Reals, raw.Strings, raw.SubConfigs)
	return nil
}

// with* helpers return a copy with one value replaced; used by mutation.

func (c Configuration) withInt(name string, v int64) Configuration {
	out := c.Clone()
	out.ints[name] = v
	out.signature = out.computeSignature()
	return out
}

func (c Configuration) withReal(name string, v float64) Configuration {
	out := c.Clone()
	out.reals[name] = v
	out.signature = out.computeSignature()
	return out
}

func (c Configuration) withString(name string, v string) Configuration {
	out := c.Clone()
	out.strs[name] = v
	out.signature = out.computeSignature()
	return out
}

func (c Configuration) withSubConfig(pos int, v string) Configuration {
	out := c.Clone()
	out.subConfigs[pos].Value = v
	out.signature = out.computeSignature()
	return out
}
