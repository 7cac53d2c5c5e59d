package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/montanaflynn/stats"
)

// ===================================
// Analyze Data Tool
// ===================================

type AnalyzeDataInput struct {
	// Data is either an array of row objects or an object of column arrays.
	Data json.RawMessage `json:"data"`
}

type ColumnStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

type AnalyzeDataOutput struct {
	Status
	Statistics map[string]ColumnStats `json:"statistics"`
	DataShape  [2]int                 `json:"data_shape"`
}

// table is a row-major view of the input with columns in first-seen order.
type table struct {
	columns []string
	rows    []map[string]any
}

func decodeTable(raw json.RawMessage) (*table, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errors.New("data is empty")
	}

	t := &table{}
	seen := map[string]bool{}
	addColumn := func(c string) {
		if !seen[c] {
			seen[c] = true
			t.columns = append(t.columns, c)
		}
	}

	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &t.rows); err != nil {
			return nil, fmt.Errorf("data must be an array of objects: %w", err)
		}
		for _, row := range t.rows {
			keys := make([]string, 0, len(row))
			for k := range row {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				addColumn(k)
			}
		}
	case '{':
		var cols map[string][]any
		if err := json.Unmarshal(raw, &cols); err != nil {
			return nil, fmt.Errorf("data must be an object of arrays: %w", err)
		}
		keys := make([]string, 0, len(cols))
		for k := range cols {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		n := 0
		for _, k := range keys {
			addColumn(k)
			if len(cols[k]) > n {
				n = len(cols[k])
			}
		}
		t.rows = make([]map[string]any, n)
		for i := range t.rows {
			t.rows[i] = map[string]any{}
			for _, k := range keys {
				if i < len(cols[k]) {
					t.rows[i][k] = cols[k][i]
				}
			}
		}
	default:
		return nil, errors.New("data must be an array of objects or an object of arrays")
	}

	if len(t.rows) == 0 {
		return nil, errors.New("data is empty")
	}
	return t, nil
}

// numeric returns the values of column c when every non-null value is a number.
func (t *table) numeric(c string) (stats.Float64Data, bool) {
	var values stats.Float64Data
	for _, row := range t.rows {
		v, present := row[c]
		if !present || v == nil {
			continue
		}
		f, isNumber := v.(float64)
		if !isNumber {
			return nil, false
		}
		values = append(values, f)
	}
	return values, len(values) > 0
}

// Describe computes per-column statistics over the numeric columns of data.
func Describe(raw json.RawMessage) (*AnalyzeDataOutput, error) {
	t, err := decodeTable(raw)
	if err != nil {
		return nil, err
	}

	out := &AnalyzeDataOutput{
		Status:     succeeded,
		Statistics: map[string]ColumnStats{},
		DataShape:  [2]int{len(t.rows), len(t.columns)},
	}
	for _, c := range t.columns {
		values, isNumeric := t.numeric(c)
		if !isNumeric {
			continue
		}
		col := ColumnStats{Count: len(values)}
		col.Mean, _ = values.Mean()
		col.Median, _ = values.Median()
		col.Min, _ = values.Min()
		col.Max, _ = values.Max()
		if len(values) > 1 {
			col.Std, _ = values.StandardDeviationSample()
		}
		out.Statistics[c] = col
	}
	if len(out.Statistics) == 0 {
		return nil, errors.New("data has no numeric columns")
	}
	return out, nil
}

func createAnalyzeDataTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolAnalyzeData,
			Desc: "Compute descriptive statistics (mean, median, sample standard deviation, min, max, count) for every numeric column of a small dataset.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"data": {
					Type:     schema.Array,
					Desc:     "Rows as objects, e.g. [{\"age\": 30, \"score\": 88}, {\"age\": 41, \"score\": 92}]",
					Required: true,
					ElemInfo: &schema.ParameterInfo{Type: schema.Object},
				},
			}),
		},
		func(ctx context.Context, in *AnalyzeDataInput) (*AnalyzeDataOutput, error) {
			return Describe(in.Data)
		},
	)
}
