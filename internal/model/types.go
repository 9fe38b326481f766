package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

func CurrentVersion() VersionedRecord {
	return VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

// IndividualResult is one row of the per-generation report.
type IndividualResult struct {
	Generation     int     `json:"generation"`
	Individual     int     `json:"individual"`
	NetworkID      string  `json:"network_id"`
	Accuracy       float64 `json:"accuracy"`
	LayerCount     int     `json:"layer_count"`
	BestAccuracy   float64 `json:"best_accuracy"`
	BestLayerCount int     `json:"best_layer_count"`
}

type GenerationSummary struct {
	Generation     int     `json:"generation"`
	BestNetworkID  string  `json:"best_network_id"`
	BestAccuracy   float64 `json:"best_accuracy"`
	BestLayerCount int     `json:"best_layer_count"`
	Discarded      int     `json:"discarded"`
}

type Run struct {
	VersionedRecord
	ID          string              `json:"id"`
	Seed        int64               `json:"seed"`
	Generations []GenerationSummary `json:"generations"`
}
