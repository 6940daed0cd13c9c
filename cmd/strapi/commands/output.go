package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/facette/natsort"
	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/iancoleman/strcase"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Columns shown first when present.
var leadingColumns = []string{"id", "documentId"}

// outputFormat returns the --output format. Without one, tables are written
// to terminals and JSON everywhere else.
func outputFormat(out io.Writer) (string, error) {
	format := strings.ToLower(viper.GetString("output"))

	switch format {
	case constants.FormatTable, constants.FormatJSON, constants.FormatYAML:
		return format, nil
	case "":
		if file, ok := out.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			return constants.FormatTable, nil
		}

		return constants.FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", constants.ErrUnsupportedFormat, format)
	}
}

// render writes data in the selected format.
func render(out io.Writer, data any) error {
	format, err := outputFormat(out)
	if err != nil {
		return err
	}

	switch format {
	case constants.FormatJSON:
		return renderJSON(out, data)
	case constants.FormatYAML:
		return renderYAML(out, data)
	default:
		return renderTable(out, data)
	}
}

func renderJSON(out io.Writer, data any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding data to JSON: %w", err)
	}

	return nil
}

func renderYAML(out io.Writer, data any) error {
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(constants.JSONIndentSize)

	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding data to YAML: %w", err)
	}

	return encoder.Close() //nolint:wrapcheck // flush only
}

// renderTable writes a list of entries one row each and a single entry as
// property/value pairs. Nested values are shown as truncated JSON.
func renderTable(out io.Writer, data any) error {
	table := tablewriter.NewWriter(out)

	switch value := data.(type) {
	case []any:
		columns := collectColumns(value)
		if len(columns) == 0 {
			_, err := fmt.Fprintln(out, "No entries found")

			return err //nolint:wrapcheck // terminal write
		}

		headers := make([]any, len(columns))
		for i, column := range columns {
			headers[i] = columnHeader(column)
		}

		table.Header(headers...)

		for _, item := range value {
			entry, _ := item.(map[string]any)

			row := make([]any, len(columns))
			for i, column := range columns {
				row[i] = formatCell(entry[column])
			}

			_ = table.Append(row...)
		}

	case map[string]any:
		table.Header("Property", "Value")

		for _, key := range sortedColumns(value) {
			_ = table.Append(columnHeader(key), formatCell(value[key]))
		}

	default:
		_, err := fmt.Fprintln(out, formatCell(value))

		return err //nolint:wrapcheck // terminal write
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// collectColumns returns the union of keys across entries.
func collectColumns(entries []any) []string {
	seen := map[string]any{}

	for _, item := range entries {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		for key := range entry {
			seen[key] = nil
		}
	}

	return sortedColumns(seen)
}

// sortedColumns orders keys naturally, with identifiers first.
func sortedColumns(entry map[string]any) []string {
	keys := make([]string, 0, len(entry))
	columns := make([]string, 0, len(entry))

	for _, leading := range leadingColumns {
		if _, ok := entry[leading]; ok {
			columns = append(columns, leading)
		}
	}

	for key := range entry {
		if !isLeadingColumn(key) {
			keys = append(keys, key)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		return natsort.Compare(keys[i], keys[j])
	})

	return append(columns, keys...)
}

func isLeadingColumn(key string) bool {
	for _, leading := range leadingColumns {
		if key == leading {
			return true
		}
	}

	return false
}

// columnHeader turns an attribute name such as publishedAt into "published at".
func columnHeader(key string) string {
	return strcase.ToDelimited(key, ' ')
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return constants.NotAvailable
	case string:
		return truncate(v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return constants.NotAvailable
		}

		return truncate(string(encoded))
	default:
		return fmt.Sprint(v)
	}
}

func truncate(s string) string {
	if len(s) <= constants.StringTruncationLength {
		return s
	}

	return s[:constants.StringTruncationLength-3] + "..."
}
