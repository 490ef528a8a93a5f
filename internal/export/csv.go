package export

import (
	"strings"

	"github.com/veritasai/veritas/internal/core/model"
)

// CSVHeader is fixed; downstream spreadsheets key on these column names.
const CSVHeader = "Village Name,Partition Number,Survey Numbers,Remarks"

// CSV renders one row per partition. Every data value is double-quoted with
// inner quotes doubled, and survey numbers are joined by single spaces.
// encoding/csv is deliberately not used here: it quotes only when needed,
// and existing consumers of these files expect every value quoted.
func CSV(partitions []model.SurveyPartition) string {
	var sb strings.Builder
	sb.WriteString(CSVHeader)
	sb.WriteString("\n")

	for _, p := range partitions {
		fields := []string{
			p.VillageName,
			p.PartitionID,
			strings.Join(p.SurveyNumbers, " "),
			p.Remarks,
		}
		for i, f := range fields {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(`"`)
			sb.WriteString(strings.ReplaceAll(f, `"`, `""`))
			sb.WriteString(`"`)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
