package encoder

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/chtzvt/tablemapper/internal/flowfile"
)

// FieldContent selects the record content in the csv "fields" option; any
// other field name selects an attribute.
const FieldContent = "content"

type CSVEncoder struct{}

func csvFields(ctx *Context) ([]string, error) {
	raw, _ := ctx.Options["fields"].([]interface{})
	if len(raw) == 0 {
		return nil, fmt.Errorf("CSV encoder requires fields option")
	}
	fields := make([]string, len(raw))
	for i, f := range raw {
		fields[i], _ = f.(string)
	}
	return fields, nil
}

func (c *CSVEncoder) Encode(ctx *Context, ff *flowfile.FlowFile) ([]byte, error) {
	fields, err := csvFields(ctx)
	if err != nil {
		return nil, err
	}
	row := make([]string, len(fields))
	for i, key := range fields {
		if key == FieldContent {
			row[i] = string(ff.Content)
			continue
		}
		row[i] = ff.Attributes[key]
	}
	return writeCSVRow(row)
}

func (c *CSVEncoder) Header(ctx *Context) ([]byte, error) {
	fields, err := csvFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("CSV encoder requires fields option for header")
	}
	return writeCSVRow(fields)
}

func (c *CSVEncoder) Footer(ctx *Context) ([]byte, error) {
	return []byte{}, nil
}

func writeCSVRow(row []string) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(row); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func init() {
	Register("csv", &CSVEncoder{})
}
