// Package frontend publishes deployment artifacts to the web front end: the
// per-chain address registry and the contract ABI.
package frontend

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Registry maps a chain id to every raffle address deployed on it.
type Registry map[string][]string

// Add appends address to chainID's list unless it is already present and
// reports whether the registry changed.
func (r Registry) Add(chainID string, address string) bool {
	for _, existing := range r[chainID] {
		if existing == address {
			return false
		}
	}
	r[chainID] = append(r[chainID], address)
	return true
}

// Syncer writes the registry and ABI files consumed by the front end.
type Syncer struct {
	Enabled     bool
	AddressFile string
	ABIFile     string
	Logger      *zap.Logger
}

// Sync records address under chainID and writes abiJSON. It is a no-op when
// the syncer is disabled.
func (s *Syncer) Sync(chainID uint64, address common.Address, abiJSON []byte) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if !s.Enabled {
		logger.Debug("front end update disabled")
		return nil
	}
	if s.AddressFile == "" || s.ABIFile == "" {
		return fmt.Errorf("front end address and abi files are required")
	}
	if !json.Valid(abiJSON) {
		return fmt.Errorf("abi is not valid json")
	}

	logger.Info("updating front end", zap.Uint64("chain_id", chainID), zap.String("address", address.Hex()))
	if err := s.updateAddresses(chainID, address); err != nil {
		return err
	}
	if err := writeFileAtomic(s.ABIFile, abiJSON); err != nil {
		return fmt.Errorf("write abi: %w", err)
	}
	return nil
}

func (s *Syncer) updateAddresses(chainID uint64, address common.Address) error {
	registry, err := LoadRegistry(s.AddressFile)
	if err != nil {
		return err
	}
	if !registry.Add(fmt.Sprintf("%d", chainID), address.Hex()) {
		return nil
	}
	data, err := json.Marshal(registry)
	if err != nil {
		return fmt.Errorf("marshal address registry: %w", err)
	}
	if err := writeFileAtomic(s.AddressFile, data); err != nil {
		return fmt.Errorf("write address registry: %w", err)
	}
	return nil
}

// LoadRegistry reads the address registry; a missing file yields an empty one.
func LoadRegistry(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Registry{}, nil
		}
		return nil, fmt.Errorf("read address registry: %w", err)
	}
	registry := Registry{}
	if len(data) == 0 {
		return registry, nil
	}
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("parse address registry: %w", err)
	}
	if registry == nil {
		registry = Registry{}
	}
	return registry, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
