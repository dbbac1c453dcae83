// Package metricdef loads metric descriptors for a device, either from an
// Excel workbook or from a YAML list.
//
// Workbook layout: the first row is a header, then one metric per row with
// columns name, description, address, size, scaling factor, data type.
// Reading stops at the first row with a blank name.
package metricdef

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"solar-monitor/internal/model"
)

// DefaultSheet is the worksheet read when none is given.
const DefaultSheet = "Metrics"

var ErrNoMetrics = errors.New("no metrics defined")

const (
	colName = iota
	colDescription
	colAddress
	colSize
	colScaling
	colDataType
)

// LoadFile picks the loader from the file extension.
func LoadFile(path, sheet, prefix string) ([]model.Metric, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return ParseYAML(b, prefix)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadWorkbook(f, sheet, prefix)
	}
}

// ReadWorkbook parses descriptors from an xlsx stream.
func ReadWorkbook(r io.Reader, sheet, prefix string) ([]model.Metric, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var metrics []model.Metric
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		name := strings.TrimSpace(cell(row, colName))
		if name == "" {
			break
		}
		m, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("sheet %q row %d: %w", sheet, i+1, err)
		}
		metrics = append(metrics, m)
	}
	return finish(metrics, prefix)
}

func cell(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}

func parseRow(row []string) (model.Metric, error) {
	m := model.Metric{
		Name:        strings.TrimSpace(cell(row, colName)),
		Description: cell(row, colDescription),
	}

	addr, err := parseRegister(cell(row, colAddress))
	if err != nil {
		return m, fmt.Errorf("address: %w", err)
	}
	m.Address = addr

	size, err := parseRegister(cell(row, colSize))
	if err != nil {
		return m, fmt.Errorf("size: %w", err)
	}
	m.Size = size

	m.ScalingFactor = 1
	if s := strings.TrimSpace(cell(row, colScaling)); s != "" {
		m.ScalingFactor, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return m, fmt.Errorf("scaling factor: %w", err)
		}
	}

	m.DataType, err = model.ParseDataType(cell(row, colDataType))
	if err != nil {
		return m, err
	}
	return m, nil
}

// parseRegister accepts "40001" as well as the "40001.0" spelling some
// spreadsheet exports produce.
func parseRegister(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseUint(s, 10, 16); err == nil {
		return uint16(v), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 0xFFFF || f != float64(uint16(f)) {
		return 0, fmt.Errorf("invalid register value %q", s)
	}
	return uint16(f), nil
}

// Entry is one descriptor in YAML form, either in a standalone metrics file
// or inline in the collector config. An omitted scaling_factor means 1.
type Entry struct {
	Name          string         `yaml:"name"`
	Description   string         `yaml:"description"`
	Address       uint16         `yaml:"address"`
	Size          uint16         `yaml:"size"`
	ScalingFactor *float64       `yaml:"scaling_factor"`
	DataType      model.DataType `yaml:"data_type"`
}

// ParseYAML parses a YAML sequence of entries.
func ParseYAML(b []byte, prefix string) ([]model.Metric, error) {
	var entries []Entry
	if err := yaml.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse metrics yaml: %w", err)
	}
	return FromEntries(entries, prefix)
}

// FromEntries converts and validates entries.
func FromEntries(entries []Entry, prefix string) ([]model.Metric, error) {
	metrics := make([]model.Metric, 0, len(entries))
	for _, e := range entries {
		m := model.Metric{
			Name:          strings.TrimSpace(e.Name),
			Description:   e.Description,
			Address:       e.Address,
			Size:          e.Size,
			ScalingFactor: 1,
			DataType:      e.DataType,
		}
		if e.ScalingFactor != nil {
			m.ScalingFactor = *e.ScalingFactor
		}
		metrics = append(metrics, m)
	}
	return finish(metrics, prefix)
}

// finish derives topic names and validates the set.
func finish(metrics []model.Metric, prefix string) ([]model.Metric, error) {
	if len(metrics) == 0 {
		return nil, ErrNoMetrics
	}
	seen := make(map[string]struct{}, len(metrics))
	for i := range metrics {
		m := &metrics[i]
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[m.Name]; dup {
			return nil, fmt.Errorf("duplicate metric name %q", m.Name)
		}
		seen[m.Name] = struct{}{}
		m.TopicName = model.TopicNameFor(prefix, m.Name)
	}
	return metrics, nil
}
