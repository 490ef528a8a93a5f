package model

// SurveyPartition is one labeled region of a village map together with the
// survey numbers read off it. PartitionID is free text (e.g. "V05-C1") and
// is not guaranteed unique across a batch.
type SurveyPartition struct {
	VillageName   string   `json:"villageName"`
	PartitionID   string   `json:"partitionId"`
	SurveyNumbers []string `json:"surveyNumbers"`
	Remarks       string   `json:"remarks,omitempty"` // set by the overlap resolver
}

// AnalysisResult is the batch produced by one or more extraction calls,
// concatenated in call order.
type AnalysisResult struct {
	Partitions []SurveyPartition `json:"partitions"`
}
