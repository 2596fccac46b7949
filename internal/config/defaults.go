package config

// DefaultNoMatchMessage is returned as the answer when a query matches
// nothing in the tenant's corpus. The wire contract treats this as a display
// string; callers must not branch on it.
const DefaultNoMatchMessage = "Aucune information disponible pour ce client"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Auth.Backend == "" {
		cfg.Auth.Backend = "yaml"
	}
	if cfg.Auth.CredentialsPath == "" {
		cfg.Auth.CredentialsPath = "/usr/local/etc/shikiri/credentials.yaml"
	}
	if cfg.Storage.DocumentsRoot == "" {
		cfg.Storage.DocumentsRoot = "/usr/local/var/shikiri/documents"
	}
	if cfg.Storage.Extensions == nil {
		cfg.Storage.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".xlsx"}
	}
	if cfg.Storage.MaxFileBytes == 0 {
		cfg.Storage.MaxFileBytes = 10 << 20 // 10 MiB per file
	}
	if cfg.Search.NoMatchMessage == "" {
		cfg.Search.NoMatchMessage = DefaultNoMatchMessage
	}
	if cfg.Search.MinSentenceLength == 0 {
		cfg.Search.MinSentenceLength = 25
	}
}
