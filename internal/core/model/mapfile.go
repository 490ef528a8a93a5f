package model

// MapFile is one uploaded map image awaiting extraction. VillageName and
// PartitionID are optional manual overrides; when set they replace the
// corresponding field on every partition extracted from this file.
type MapFile struct {
	Name        string
	MIMEType    string
	Data        []byte
	VillageName string
	PartitionID string
}
