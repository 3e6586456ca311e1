package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Provider payloads are
// converted eagerly so hex, scheme, and mixed-field errors surface at
// load rather than mid-job.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateEncryption(); err != nil {
		return err
	}
	if err := c.validateDecryption(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateEncryption() error {
	enc := c.Encryption
	if enc.Provider == "" {
		// Decryption-only deployments leave the section unset.
		return nil
	}
	if enc.ClearLeadSeconds < 0 {
		return errors.New("encryption.clear_lead_seconds must be >= 0")
	}
	if enc.CryptoPeriodSeconds < 0 {
		return errors.New("encryption.crypto_period_seconds must be >= 0")
	}

	params, err := c.EncryptionParams()
	if err != nil {
		return err
	}
	return params.Validate()
}

func (c *Config) validateDecryption() error {
	if c.Decryption.Provider == "" {
		return nil
	}
	params, err := c.DecryptionParams()
	if err != nil {
		return err
	}
	return params.Validate()
}
