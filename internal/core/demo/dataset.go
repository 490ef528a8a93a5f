package demo

import "github.com/veritasai/veritas/internal/core/model"

// Partitions returns the bundled sample dataset served when no provider is
// configured or extraction fails. The survey numbers overlap across
// partitions so the remarks column has something to show.
func Partitions() []model.SurveyPartition {
	return []model.SurveyPartition{
		{VillageName: "Shivapur", PartitionID: "V05-C1", SurveyNumbers: []string{"12/1", "101", "13"}},
		{VillageName: "Shivapur", PartitionID: "V05-C2", SurveyNumbers: []string{"16", "17", "18"}},
		{VillageName: "Shivapur", PartitionID: "V05-C3", SurveyNumbers: []string{"12/3", "101", "19"}},
		{VillageName: "Shivapur", PartitionID: "V05-C4", SurveyNumbers: []string{"20", "12/3"}},
	}
}
