package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	AuditDir string `toml:"audit_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Audit contains configuration for the key event audit trail.
type Audit struct {
	Enabled bool `toml:"enabled"`
}

// Signer contains license request signing credentials. Kind selects
// between AES and RSA signing; the unused fields stay empty.
type Signer struct {
	Name       string `toml:"name"`
	Kind       string `toml:"kind"`
	AESKey     string `toml:"aes_key"`
	AESIV      string `toml:"aes_iv"`
	RSAKeyFile string `toml:"rsa_key_file"`
}

// Widevine contains license-server provider configuration.
type Widevine struct {
	ServerURL string `toml:"server_url"`
	ContentID string `toml:"content_id"`
	Policy    string `toml:"policy"`
	GroupID   string `toml:"group_id"`
	Signer    Signer `toml:"signer"`
}

// PlayReady contains certificate-based provider configuration. Server
// mode uses the URL plus client certificate files; direct mode uses the
// raw key pair and skips the network entirely.
type PlayReady struct {
	ServerURL         string `toml:"server_url"`
	ProgramIdentifier string `toml:"program_identifier"`
	CAFile            string `toml:"ca_file"`
	ClientCertFile    string `toml:"client_cert_file"`
	ClientKeyFile     string `toml:"client_key_file"`
	ClientKeyPassword string `toml:"client_key_password"`
	KeyID             string `toml:"key_id"`
	Key               string `toml:"key"`
}

// RawKeyEntry is one static key map entry. An empty label marks the
// default entry used for labels without their own key.
type RawKeyEntry struct {
	Label string `toml:"label"`
	KeyID string `toml:"key_id"`
	Key   string `toml:"key"`
}

// RawKey contains static-key provider configuration. Hex fields are
// decoded during conversion; validation rejects malformed values at load.
type RawKey struct {
	IV   string        `toml:"iv"`
	PSSH string        `toml:"pssh"`
	Keys []RawKeyEntry `toml:"keys"`
}

// Encryption contains the per-job encryption settings.
type Encryption struct {
	Provider            string    `toml:"provider"`
	ProtectionScheme    string    `toml:"protection_scheme"`
	ClearLeadSeconds    float64   `toml:"clear_lead_seconds"`
	CryptoPeriodSeconds float64   `toml:"crypto_period_seconds"`
	VP9SubsampleEnabled *bool     `toml:"vp9_subsample_enabled"`
	IncludeCommonPSSH   bool      `toml:"include_common_pssh"`
	Widevine            Widevine  `toml:"widevine"`
	PlayReady           PlayReady `toml:"playready"`
	RawKey              RawKey    `toml:"rawkey"`
}

// DecryptionRawKey contains static decryption keys indexed by key ID.
type DecryptionRawKey struct {
	Keys []RawKeyEntry `toml:"keys"`
}

// DecryptionWidevine contains license-server decryption configuration.
type DecryptionWidevine struct {
	ServerURL string `toml:"server_url"`
	Signer    Signer `toml:"signer"`
}

// Decryption contains the decryption-side settings.
type Decryption struct {
	Provider string             `toml:"provider"`
	Widevine DecryptionWidevine `toml:"widevine"`
	RawKey   DecryptionRawKey   `toml:"rawkey"`
}

// Config encapsulates all configuration values.
//
// Configuration sections by subsystem:
//   - Paths: audit and log directories
//   - Logging: log format and level
//   - Audit: key event trail persistence
//   - Encryption: provider selection, scheme, rotation, clear lead
//   - Decryption: key-by-ID provider selection
type Config struct {
	Paths      Paths      `toml:"paths"`
	Logging    Logging    `toml:"logging"`
	Audit      Audit      `toml:"audit"`
	Encryption Encryption `toml:"encryption"`
	Decryption Decryption `toml:"decryption"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediaseal/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaseal.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the engine writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir}
	if c.Audit.Enabled {
		dirs = append(dirs, c.Paths.AuditDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other
// packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified
// location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
