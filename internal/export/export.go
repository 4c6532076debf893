package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spigell/companyfit/internal/ai"
	"github.com/spigell/companyfit/internal/scoring"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat is returned for any format other than json and csv.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// ParseFormat validates a format value coming from flags or configuration.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// DefaultOutput returns the default output file name for the format.
func (f Format) DefaultOutput() string {
	return "sorted_company_scores." + string(f)
}

// row is the exported shape of one assessment.
type row struct {
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

func toRows(items []*ai.Assessment) []row {
	rows := make([]row, 0, len(items))
	for _, item := range items {
		rows = append(rows, row{
			Name:        item.Company,
			Score:       item.Score,
			Explanation: item.Explanation,
		})
	}
	return rows
}

// Write renders the given assessments to w in the requested format.
func Write(w io.Writer, format Format, items []*ai.Assessment) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, items)
	case FormatCSV:
		return writeCSV(w, items)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ToFile writes the given assessments to path, creating or truncating it.
func ToFile(path string, format Format, items []*ai.Assessment) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file %q: %w", path, err)
	}

	if err := Write(file, format, items); err != nil {
		file.Close()
		return fmt.Errorf("writing output file %q: %w", path, err)
	}

	return file.Close()
}

func writeJSON(w io.Writer, items []*ai.Assessment) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toRows(items))
}

func writeCSV(w io.Writer, items []*ai.Assessment) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"name", "score", "explanation"}); err != nil {
		return err
	}

	for _, item := range items {
		record := []string{
			item.Company,
			formatScore(item.Score),
			item.Explanation,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// formatScore renders a score as a plain decimal number without an exponent
// or trailing zeros.
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// Filter drops assessments that score below min. A non-positive min keeps
// everything.
func Filter(items []*ai.Assessment, min float64) []*ai.Assessment {
	if min <= 0 {
		return items
	}

	kept := make([]*ai.Assessment, 0, len(items))
	for _, item := range items {
		if item.Score >= min {
			kept = append(kept, item)
		}
	}
	return kept
}

// Summary prints the top ranked companies and one line with the aggregate
// cost of the run.
func Summary(w io.Writer, results *scoring.Results, topN int) error {
	ranked := results.Ranked()

	count := topN
	if count <= 0 || count > len(ranked) {
		count = len(ranked)
	}

	if _, err := fmt.Fprintf(w, "=== Top %d Companies ===\n", count); err != nil {
		return err
	}

	for i, item := range ranked[:count] {
		if _, err := fmt.Fprintf(w, "%2d. %s: %s\n", i+1, item.Company, formatScore(item.Score)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "Estimated cost: $%.4f (%d tokens)\n", results.TotalCost, results.TotalTokens)
	return err
}
