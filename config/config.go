package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"badgeforge/core/badge"
	"badgeforge/crypto"
)

// DefaultChainID identifies the badgeforge mainnet inside claim digests.
const DefaultChainID uint64 = 77001

type Config struct {
	RPCAddress           string `toml:"RPCAddress"`
	DataDir              string `toml:"DataDir"`
	NetworkName          string `toml:"NetworkName"`
	Env                  string `toml:"Env"`
	ChainID              uint64 `toml:"ChainID"`
	Treasury             string `toml:"Treasury"`
	Issuer               string `toml:"Issuer"`
	Owner                string `toml:"Owner"`
	FeeBasisPoints       uint64 `toml:"FeeBasisPoints"`
	InstanceKeystorePath string `toml:"InstanceKeystorePath"`
	LogFile              string `toml:"LogFile"`
}

// Load loads the configuration from the given path, writing a default file
// (and generating the engine's instance identity key) on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "badgeforge-local"
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = DefaultChainID
	}
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine constructor would refuse.
func (c *Config) Validate() error {
	if c.FeeBasisPoints > badge.MaxFeeBasisPoints {
		return fmt.Errorf("config: FeeBasisPoints %d exceeds cap %d", c.FeeBasisPoints, badge.MaxFeeBasisPoints)
	}
	treasury, err := c.TreasuryAddress()
	if err != nil {
		return err
	}
	if treasury.IsZero() {
		return fmt.Errorf("config: Treasury must not be the zero account")
	}
	if _, err := c.OwnerAddress(); err != nil {
		return err
	}
	// Issuer may be empty or zero; settlement stays suspended until the
	// owner rotates in a real signer.
	if strings.TrimSpace(c.Issuer) != "" {
		if _, err := crypto.DecodeAddress(c.Issuer); err != nil {
			return fmt.Errorf("config: Issuer: %w", err)
		}
	}
	return nil
}

func (c *Config) TreasuryAddress() (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(c.Treasury))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("config: Treasury: %w", err)
	}
	return addr, nil
}

func (c *Config) OwnerAddress() (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(c.Owner))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("config: Owner: %w", err)
	}
	return addr, nil
}

// IssuerAddress returns the configured issuer, or the zero address when
// none is set.
func (c *Config) IssuerAddress() (crypto.Address, error) {
	trimmed := strings.TrimSpace(c.Issuer)
	if trimmed == "" {
		return crypto.MustNewAddress(crypto.BadgePrefix, make([]byte, crypto.AddressLength)), nil
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("config: Issuer: %w", err)
	}
	return addr, nil
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "instance_keystore.json")
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.InstanceKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.InstanceKeystorePath != keystorePath {
		cfg.InstanceKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file. Treasury
// and owner are generated so a fresh node starts with real accounts; the
// issuer is left unset, keeping settlement suspended until configured.
func createDefault(path string) (*Config, error) {
	instanceKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, instanceKey, ""); err != nil {
		return nil, err
	}

	treasuryKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	ownerKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:           ":8645",
		DataDir:              "./badge-data",
		NetworkName:          "badgeforge-local",
		Env:                  "dev",
		ChainID:              DefaultChainID,
		Treasury:             treasuryKey.PubKey().Address().String(),
		Owner:                ownerKey.PubKey().Address().String(),
		FeeBasisPoints:       250,
		InstanceKeystorePath: keystorePath,
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
