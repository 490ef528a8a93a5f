package export

import (
	"fmt"
	"strings"

	"github.com/veritasai/veritas/internal/core/model"
	"github.com/veritasai/veritas/internal/core/overlap"
)

// Markdown renders the partitions as a pipe table, one row each, followed
// by a summary of the shared survey numbers when any exist.
func Markdown(partitions []model.SurveyPartition) string {
	var sb strings.Builder
	sb.WriteString("| Village Name | Partition Number | Survey Numbers | Remarks |\n")
	sb.WriteString("| --- | --- | --- | --- |\n")

	for _, p := range partitions {
		row := []string{
			escapeCell(p.VillageName),
			escapeCell(p.PartitionID),
			escapeCell(strings.Join(p.SurveyNumbers, " ")),
			escapeCell(p.Remarks),
		}
		sb.WriteString("| ")
		sb.WriteString(strings.Join(row, " | "))
		sb.WriteString(" |\n")
	}

	if shared := overlap.Overlaps(partitions); len(shared) > 0 {
		sb.WriteString("\n## Overlapping survey numbers\n\n")
		for _, o := range shared {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", o.Number, strings.Join(o.PartitionIDs, ", ")))
		}
	}
	return sb.String()
}

// escapeCell keeps literal pipes from breaking the table layout.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
