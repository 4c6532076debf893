package scoring

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/spigell/companyfit/internal/ai"
)

// Results accumulates assessments over a run. Items keep dataset order;
// only the copy returned by Ranked is sorted.
type Results struct {
	Items       []*ai.Assessment `json:"items"`
	TotalCost   float64          `json:"total_cost"`
	TotalTokens int              `json:"total_tokens"`
}

func (r *Results) Add(assessment *ai.Assessment) {
	r.Items = append(r.Items, assessment)
	r.TotalCost += assessment.Cost
	r.TotalTokens += assessment.Usage.TotalTokens
}

func (r *Results) Len() int {
	return len(r.Items)
}

// Ranked returns a copy of the items sorted by score, highest first.
// Equal scores keep their dataset order.
func (r *Results) Ranked() []*ai.Assessment {
	ranked := make([]*ai.Assessment, len(r.Items))
	copy(ranked, r.Items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// DumpToTmpFile writes the accumulated assessments, raw model replies
// included, to a temporary JSON file and returns its path.
func (r *Results) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "assessments_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}
