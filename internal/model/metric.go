package model

import (
	"fmt"
	"strings"
)

// DataType is the on-wire encoding of a metric's registers.
type DataType int

const (
	Unknown DataType = iota
	Uint8
	Uint16
	Uint32
	Uint64
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	String
)

var dataTypeNames = map[DataType]string{
	Unknown: "UNKNOWN",
	Uint8:   "UINT8",
	Uint16:  "UINT16",
	Uint32:  "UINT32",
	Uint64:  "UINT64",
	Int8:    "INT8",
	Int16:   "INT16",
	Int32:   "INT32",
	Int64:   "INT64",
	Float32: "FLOAT32",
	Float64: "FLOAT64",
	String:  "STRING",
}

func (t DataType) String() string {
	if s, ok := dataTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// ParseDataType maps a spreadsheet/YAML label such as "float32" to a DataType.
func ParseDataType(s string) (DataType, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for t, name := range dataTypeNames {
		if t != Unknown && name == want {
			return t, nil
		}
	}
	return Unknown, fmt.Errorf("unknown data type %q", s)
}

// Registers returns the natural register width of the type.
// STRING has no natural width and reports 1.
func (t DataType) Registers() int {
	switch t {
	case Uint8, Int8, Uint16, Int16, String:
		return 1
	case Uint32, Int32, Float32:
		return 2
	case Uint64, Int64, Float64:
		return 4
	default:
		return 0
	}
}

// MarshalYAML / UnmarshalYAML let descriptors be written as `data_type: float32`.
func (t DataType) MarshalYAML() (any, error) { return t.String(), nil }

func (t *DataType) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseDataType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Metric describes how to read and decode one device register block.
// Descriptors are loaded once and never mutated.
type Metric struct {
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description" json:"description"`
	Address       uint16   `yaml:"address" json:"address"`
	Size          uint16   `yaml:"size" json:"size"`
	ScalingFactor float64  `yaml:"scaling_factor" json:"scaling_factor"`
	DataType      DataType `yaml:"data_type" json:"data_type"`
	TopicName     string   `yaml:"-" json:"topic_name"`
}

// TopicNameFor derives the topic for a metric under a device prefix.
func TopicNameFor(prefix, name string) string {
	return strings.TrimRight(prefix, "/") + "/" + name
}

// Validate checks the descriptor against its data type.
func (m Metric) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("metric at address %d has no name", m.Address)
	}
	w := m.DataType.Registers()
	if w == 0 {
		return fmt.Errorf("metric %s: unsupported data type %s", m.Name, m.DataType)
	}
	if m.Size < 1 {
		return fmt.Errorf("metric %s: size must be at least 1", m.Name)
	}
	if int(m.Size) < w {
		return fmt.Errorf("metric %s: %s needs %d registers, size is %d", m.Name, m.DataType, w, m.Size)
	}
	return nil
}
