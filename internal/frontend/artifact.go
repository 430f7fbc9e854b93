package frontend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Artifact is the part of a Hardhat build or deployment file the front end needs.
// Build artifacts (artifacts/.../Raffle.json) carry contractName; deployment
// files (deployments/<network>/Raffle.json) carry address.
type Artifact struct {
	ContractName string          `json:"contractName"`
	Address      string          `json:"address"`
	ABI          json.RawMessage `json:"abi"`
}

// ParseArtifactFile reads a Hardhat artifact and keeps its abi field byte for byte.
func ParseArtifactFile(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	artifact := &Artifact{}
	if err := json.Unmarshal(data, artifact); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	abiJSON := bytes.TrimSpace(artifact.ABI)
	if len(abiJSON) == 0 || abiJSON[0] != '[' {
		return nil, fmt.Errorf("artifact %s contains invalid 'abi' field", path)
	}
	artifact.ABI = abiJSON
	return artifact, nil
}
