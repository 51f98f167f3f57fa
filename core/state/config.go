package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// ConfigRecord is the persisted engine configuration. Version increments on
// every administrative mutation so observers can detect stale reads.
type ConfigRecord struct {
	Treasury       [20]byte
	FeeBasisPoints uint64
	Issuer         [20]byte
	Paused         bool
	Version        uint64
}

// EngineConfig loads the persisted configuration record. The boolean is
// false when the engine has not been initialised yet.
func (m *Manager) EngineConfig() (*ConfigRecord, bool, error) {
	data, err := m.get(configKey)
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	record := new(ConfigRecord)
	if err := rlp.DecodeBytes(data, record); err != nil {
		return nil, false, fmt.Errorf("state: decode config: %w", err)
	}
	return record, true, nil
}

// PutEngineConfig persists the configuration record.
func (m *Manager) PutEngineConfig(record *ConfigRecord) error {
	if record == nil {
		return fmt.Errorf("state: nil config record")
	}
	data, err := rlp.EncodeToBytes(record)
	if err != nil {
		return fmt.Errorf("state: encode config: %w", err)
	}
	return m.kv.Put(configKey, data)
}
