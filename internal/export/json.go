package export

import (
	"encoding/json"

	"github.com/veritasai/veritas/internal/core/model"
)

// JSON renders the annotated result as indented JSON, the same shape the
// analyze endpoints return.
func JSON(result model.AnalysisResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
