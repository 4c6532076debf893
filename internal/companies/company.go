package companies

import (
	"strings"
)

// Company is a single record from the input dataset. The JSON tags shape
// the prompt payload, not the dataset file, whose keys are handled in Load.
type Company struct {
	Name  string            `json:"name"`
	About string            `json:"about"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// Companies is an ordered list of dataset records. The order matches the
// dataset file and is preserved by every operation.
type Companies struct {
	Items []*Company
}

func (c *Companies) Len() int {
	return len(c.Items)
}

// Names returns the company names in dataset order.
func (c *Companies) Names() []string {
	names := make([]string, 0, len(c.Items))
	for _, company := range c.Items {
		names = append(names, company.Name)
	}
	return names
}

// FindByName returns the first company with the given name, or nil.
func (c *Companies) FindByName(name string) *Company {
	for _, company := range c.Items {
		if company.Name == name {
			return company
		}
	}
	return nil
}

// Exclude removes the named companies from the list and returns the names
// that were actually removed. The order of the remaining items is preserved.
func (c *Companies) Exclude(names []string) []string {
	if len(names) == 0 {
		return nil
	}

	targets := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" {
			targets[name] = struct{}{}
		}
	}

	var excluded []string
	kept := c.Items[:0]
	for _, company := range c.Items {
		if _, ok := targets[company.Name]; ok {
			excluded = append(excluded, company.Name)
			continue
		}
		kept = append(kept, company)
	}

	c.Items = kept
	return excluded
}
