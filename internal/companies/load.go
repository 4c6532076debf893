package companies

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Load reads a dataset file and decodes it into an ordered company list.
// The file must contain a JSON array of objects. Every object needs the
// "company" and "about" keys; any other keys are kept in Meta as strings.
func Load(path string) (*Companies, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %q: %w", path, err)
	}

	var entries []map[string]any
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing dataset %q: %w", path, err)
	}

	companies := &Companies{Items: make([]*Company, 0, len(entries))}
	for idx, entry := range entries {
		company, err := decodeRecord(entry)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: record %d: %w", path, idx, err)
		}
		companies.Items = append(companies.Items, company)
	}

	return companies, nil
}

func decodeRecord(entry map[string]any) (*Company, error) {
	var raw struct {
		Name  string         `mapstructure:"company"`
		About string         `mapstructure:"about"`
		Rest  map[string]any `mapstructure:",remain"`
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &raw,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(entry); err != nil {
		return nil, err
	}

	company := &Company{
		Name:  strings.TrimSpace(raw.Name),
		About: strings.TrimSpace(raw.About),
	}

	if company.Name == "" {
		return nil, errors.New(`missing required key "company"`)
	}

	if company.About == "" {
		return nil, errors.New(`missing required key "about"`)
	}

	if len(raw.Rest) > 0 {
		company.Meta = make(map[string]string, len(raw.Rest))
		for key, value := range raw.Rest {
			company.Meta[key] = stringify(value)
		}
	}

	return company, nil
}

// stringify flattens a decoded JSON value into a string for Meta. Composite
// values are re-encoded as compact JSON.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// PromptPayload renders the company as indented JSON for prompt embedding.
// Map keys are marshalled in sorted order, so the payload is deterministic.
func (c *Company) PromptPayload() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding company %q: %w", c.Name, err)
	}
	return string(data), nil
}
