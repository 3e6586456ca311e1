package config

const (
	defaultAuditDir         = "~/.local/share/mediaseal/audit"
	defaultLogDir           = "~/.local/share/mediaseal/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultProtectionScheme = "cenc"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	vp9Subsample := true
	return Config{
		Paths: Paths{
			AuditDir: defaultAuditDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Audit: Audit{
			Enabled: true,
		},
		Encryption: Encryption{
			ProtectionScheme:    defaultProtectionScheme,
			VP9SubsampleEnabled: &vp9Subsample,
		},
	}
}
