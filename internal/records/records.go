// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package records reads the field records that inject runs write into a
// form, and writes extracted form fields back out as a fillable sheet.
//
// Supported inputs: .json (array of objects or one object), .yaml/.yml
// (same shapes), .csv and .xlsx (header row, one record per row).
package records

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/formflow/internal/apierr"
	"github.com/pdiddy/formflow/pkg/types"
)

const opLoad = "load records"

// Load reads every record in path. The format is chosen by extension.
// An unreadable file, an unsupported format or an empty result is a
// configuration error.
func Load(path string) ([]types.Record, error) {
	var (
		recs []types.Record
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		recs, err = loadJSON(path)
	case ".yaml", ".yml":
		recs, err = loadYAML(path)
	case ".csv":
		recs, err = loadCSV(path)
	case ".xlsx":
		recs, err = loadXLSX(path)
	default:
		return nil, apierr.Configuration(opLoad, "unsupported records format %q (want .json, .yaml, .csv or .xlsx)", ext)
	}
	if err != nil {
		return nil, apierr.Configuration(opLoad, "%s: %v", path, err)
	}
	if len(recs) == 0 {
		return nil, apierr.Configuration(opLoad, "%s contains no records", path)
	}
	return recs, nil
}

func loadJSON(path string) ([]types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []map[string]any
	if err := decodeJSON(data, &list); err == nil {
		return fromMaps(list)
	}
	var one map[string]any
	if err := decodeJSON(data, &one); err != nil {
		return nil, fmt.Errorf("parsing JSON: want an object or an array of objects: %w", err)
	}
	return fromMaps([]map[string]any{one})
}

// decodeJSON keeps numbers as their source text so large integers reach
// the form unrounded.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON document")
	}
	return nil
}

func loadYAML(path string) ([]types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []map[string]any
	if err := yaml.Unmarshal(data, &list); err == nil {
		return fromMaps(list)
	}
	var one map[string]any
	if err := yaml.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("parsing YAML: want a mapping or a list of mappings: %w", err)
	}
	if one == nil {
		return nil, nil
	}
	return fromMaps([]map[string]any{one})
}

func loadCSV(path string) ([]types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return fromRows(header, rows)
}

func loadXLSX(path string) ([]types.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return fromRows(rows[0], rows[1:])
}

// fromRows pairs each row with the header. Blank rows are skipped and
// short rows leave trailing fields empty, as spreadsheets omit them.
func fromRows(header []string, rows [][]string) ([]types.Record, error) {
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate header column %q", name)
		}
		seen[name] = true
		header[i] = name
	}

	var recs []types.Record
	for _, row := range rows {
		if blank(row) {
			continue
		}
		if len(row) > len(header) {
			return nil, fmt.Errorf("row has %d values but the header has %d columns", len(row), len(header))
		}
		rec := make(types.Record, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = row[i]
			} else {
				rec[name] = ""
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func fromMaps(list []map[string]any) ([]types.Record, error) {
	recs := make([]types.Record, 0, len(list))
	for i, m := range list {
		rec := make(types.Record, len(m))
		for k, v := range m {
			s, err := scalar(v)
			if err != nil {
				return nil, fmt.Errorf("record %d field %q: %w", i+1, k, err)
			}
			rec[k] = s
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// scalar renders a decoded value as the string a form field receives.
func scalar(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}

// Flatten turns an extracted form-data document into a record. Nested
// objects become dotted field names; arrays are kept as JSON text.
func Flatten(doc json.RawMessage) (types.Record, error) {
	var m map[string]any
	if err := decodeJSON(doc, &m); err != nil {
		return nil, fmt.Errorf("form data is not a JSON object: %w", err)
	}
	rec := make(types.Record)
	flattenInto(rec, "", m)
	return rec, nil
}

func flattenInto(rec types.Record, prefix string, m map[string]any) {
	for k, v := range m {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		switch x := v.(type) {
		case map[string]any:
			flattenInto(rec, name, x)
		case []any:
			data, _ := json.Marshal(x)
			rec[name] = string(data)
		default:
			s, _ := scalar(x)
			rec[name] = s
		}
	}
}

const templateSheet = "Record"

// WriteTemplate writes rec as an xlsx sheet with the field names in the
// header row and the current values in the row below, columns sorted by
// field name. The result loads back with Load.
func WriteTemplate(path string, rec types.Record) error {
	names := make([]string, 0, len(rec))
	for k := range rec {
		names = append(names, k)
	}
	sort.Strings(names)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), templateSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	for i, name := range names {
		header, _ := excelize.CoordinatesToCellName(i+1, 1)
		value, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellStr(templateSheet, header, name); err != nil {
			return fmt.Errorf("writing header %s: %w", name, err)
		}
		if err := f.SetCellStr(templateSheet, value, rec[name]); err != nil {
			return fmt.Errorf("writing value %s: %w", name, err)
		}
	}
	if len(names) > 0 {
		last, _ := excelize.ColumnNumberToName(len(names))
		_ = f.SetColWidth(templateSheet, "A", last, 20)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating template directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving template %s: %w", path, err)
	}
	return nil
}
