package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"gramevo/internal/genotype"
	"gramevo/internal/model"
)

const (
	CurrentSchemaVersion = model.CurrentSchemaVersion
	CurrentCodecVersion  = model.CurrentCodecVersion
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeNetwork(n genotype.Network) ([]byte, error) {
	return json.Marshal(n)
}

func DecodeNetwork(data []byte) (genotype.Network, error) {
	var net genotype.Network
	if err := json.Unmarshal(data, &net); err != nil {
		return genotype.Network{}, err
	}
	if err := checkVersion(net.VersionedRecord); err != nil {
		return genotype.Network{}, err
	}
	return net, nil
}

func EncodeRun(r model.Run) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.Run, error) {
	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return model.Run{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func EncodeResults(results []model.IndividualResult) ([]byte, error) {
	return json.Marshal(results)
}

func DecodeResults(data []byte) ([]model.IndividualResult, error) {
	var results []model.IndividualResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
