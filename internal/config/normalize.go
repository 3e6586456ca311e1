package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeEncryption()
	c.normalizeDecryption()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.AuditDir) == "" {
		c.Paths.AuditDir = defaultAuditDir
	}
	if c.Paths.AuditDir, err = expandPath(c.Paths.AuditDir); err != nil {
		return fmt.Errorf("paths.audit_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeEncryption() {
	enc := &c.Encryption
	enc.Provider = strings.ToLower(strings.TrimSpace(enc.Provider))
	enc.ProtectionScheme = strings.ToLower(strings.TrimSpace(enc.ProtectionScheme))
	if enc.ProtectionScheme == "" {
		enc.ProtectionScheme = defaultProtectionScheme
	}

	enc.Widevine.ServerURL = strings.TrimSpace(enc.Widevine.ServerURL)
	enc.Widevine.Policy = strings.TrimSpace(enc.Widevine.Policy)
	normalizeSigner(&enc.Widevine.Signer, "WIDEVINE_SIGNING_KEY", "WIDEVINE_SIGNING_IV")

	enc.PlayReady.ServerURL = strings.TrimSpace(enc.PlayReady.ServerURL)
	enc.PlayReady.ProgramIdentifier = strings.TrimSpace(enc.PlayReady.ProgramIdentifier)
	if enc.PlayReady.ClientKeyPassword == "" {
		if value, ok := os.LookupEnv("PLAYREADY_KEY_PASSWORD"); ok {
			enc.PlayReady.ClientKeyPassword = value
		}
	}

	for i := range enc.RawKey.Keys {
		entry := &enc.RawKey.Keys[i]
		entry.Label = strings.TrimSpace(entry.Label)
		entry.KeyID = strings.TrimSpace(entry.KeyID)
		entry.Key = strings.TrimSpace(entry.Key)
	}
}

func (c *Config) normalizeDecryption() {
	dec := &c.Decryption
	dec.Provider = strings.ToLower(strings.TrimSpace(dec.Provider))
	dec.Widevine.ServerURL = strings.TrimSpace(dec.Widevine.ServerURL)
	normalizeSigner(&dec.Widevine.Signer, "WIDEVINE_SIGNING_KEY", "WIDEVINE_SIGNING_IV")

	for i := range dec.RawKey.Keys {
		entry := &dec.RawKey.Keys[i]
		entry.KeyID = strings.TrimSpace(entry.KeyID)
		entry.Key = strings.TrimSpace(entry.Key)
	}
}

func normalizeSigner(signer *Signer, keyEnv, ivEnv string) {
	signer.Name = strings.TrimSpace(signer.Name)
	signer.Kind = strings.ToLower(strings.TrimSpace(signer.Kind))
	signer.AESKey = strings.TrimSpace(signer.AESKey)
	signer.AESIV = strings.TrimSpace(signer.AESIV)
	signer.RSAKeyFile = strings.TrimSpace(signer.RSAKeyFile)
	if signer.AESKey == "" {
		if value, ok := os.LookupEnv(keyEnv); ok {
			signer.AESKey = strings.TrimSpace(value)
		}
	}
	if signer.AESIV == "" {
		if value, ok := os.LookupEnv(ivEnv); ok {
			signer.AESIV = strings.TrimSpace(value)
		}
	}
	if signer.Kind == "" {
		switch {
		case signer.RSAKeyFile != "":
			signer.Kind = "rsa"
		case signer.AESKey != "":
			signer.Kind = "aes"
		}
	}
}
