package extraction

import (
	"context"
	"fmt"

	"github.com/veritasai/veritas/internal/core/common"
	"github.com/veritasai/veritas/internal/core/model"
	"github.com/veritasai/veritas/internal/llm"
)

// Extractor reads the partitions and survey numbers off one map image via
// the LLM. The prompt carries the JSON response contract.
type Extractor struct {
	LLM         llm.LLMClient
	Prompt      string
	Temperature *float32
}

func NewExtractor(llmClient llm.LLMClient, prompt string) *Extractor {
	return &Extractor{
		LLM:    llmClient,
		Prompt: prompt,
	}
}

// ExtractPartitions runs the extraction prompt against one map image and
// parses the JSON reply. Manual overrides on the file replace the village
// name and partition id on every extracted partition.
func (e *Extractor) ExtractPartitions(ctx context.Context, file model.MapFile) ([]model.SurveyPartition, error) {
	req := llm.Request{
		System:      e.Prompt,
		Prompt:      fmt.Sprintf("Extract the partitions and survey numbers from the attached map %q.", file.Name),
		Images:      []llm.Image{{MIMEType: file.MIMEType, Data: file.Data}},
		JSONOutput:  true,
		Temperature: e.Temperature,
	}

	response, err := e.LLM.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate partitions: %w", err)
	}

	result, err := common.ParseJSON[model.AnalysisResult](response)
	if err != nil {
		return nil, fmt.Errorf("failed to extract partitions: %w", err)
	}

	return applyOverrides(result.Partitions, file), nil
}

func applyOverrides(partitions []model.SurveyPartition, file model.MapFile) []model.SurveyPartition {
	out := make([]model.SurveyPartition, len(partitions))
	for i, p := range partitions {
		if file.VillageName != "" {
			p.VillageName = file.VillageName
		}
		if file.PartitionID != "" {
			p.PartitionID = file.PartitionID
		}
		if p.VillageName == "" {
			p.VillageName = "Unknown"
		}
		out[i] = p
	}
	return out
}
