package overlap

import (
	"fmt"
	"strings"

	"github.com/veritasai/veritas/internal/core/model"
)

// NoOverlapRemark is the remark assigned to partitions whose survey numbers
// all stay within the partition itself.
const NoOverlapRemark = "No overlaps detected"

// Resolve annotates every partition with a remark describing which of its
// survey numbers also appear in other partitions. The input slice is left
// untouched; the result has identical length and order with only Remarks set.
//
// Survey numbers are matched by exact string equality, with no trimming or
// case folding. A number counts as overlapping only when it occurs under two
// or more distinct partition ids. Remark entries follow the order the shared
// numbers first appear in the whole batch, with one entry per occurrence in
// the partition's own list. The ids inside an entry are listed in the order
// their partitions first appear.
func Resolve(partitions []model.SurveyPartition) []model.SurveyPartition {
	index, order := buildIndex(partitions)

	out := make([]model.SurveyPartition, len(partitions))
	for i, p := range partitions {
		// Entries follow the index's insertion order; a number repeated in
		// the partition's own list is listed once per occurrence.
		var entries []string
		for _, num := range order {
			ids := index[num]
			if len(ids) < 2 {
				continue
			}
			for _, own := range p.SurveyNumbers {
				if own == num {
					entries = append(entries, fmt.Sprintf("%s → %s", num, strings.Join(ids, " / ")))
				}
			}
		}

		out[i] = p
		if len(p.SurveyNumbers) > 0 {
			out[i].SurveyNumbers = append([]string(nil), p.SurveyNumbers...)
		}
		if len(entries) == 0 {
			out[i].Remarks = NoOverlapRemark
		} else {
			out[i].Remarks = strings.Join(entries, "; ")
		}
	}

	return out
}

// Overlap is one shared survey number and the partitions it appears in.
type Overlap struct {
	Number       string
	PartitionIDs []string
}

// Overlaps lists every survey number held by two or more distinct partitions,
// in the order the numbers first appear in the batch. Partition ids keep
// their first-seen order, matching the remark entries Resolve produces.
func Overlaps(partitions []model.SurveyPartition) []Overlap {
	index, order := buildIndex(partitions)

	var out []Overlap
	for _, num := range order {
		if ids := index[num]; len(ids) > 1 {
			out = append(out, Overlap{
				Number:       num,
				PartitionIDs: append([]string(nil), ids...),
			})
		}
	}
	return out
}

// buildIndex maps each survey number to the ordered list of partition ids
// that contain it, deduplicated by first occurrence. The returned slice
// holds the distinct numbers in the order they first appear in the batch.
func buildIndex(partitions []model.SurveyPartition) (map[string][]string, []string) {
	index := make(map[string][]string)
	var order []string
	for _, p := range partitions {
		for _, num := range p.SurveyNumbers {
			if _, ok := index[num]; !ok {
				order = append(order, num)
			}
			if !containsID(index[num], p.PartitionID) {
				index[num] = append(index[num], p.PartitionID)
			}
		}
	}
	return index, order
}

// ResolveResult is the AnalysisResult-shaped convenience wrapper around
// Resolve used by the HTTP layer.
func ResolveResult(result model.AnalysisResult) model.AnalysisResult {
	return model.AnalysisResult{Partitions: Resolve(result.Partitions)}
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
