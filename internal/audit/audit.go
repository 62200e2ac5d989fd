// Package audit emits one structured record per CLI invocation capturing the
// effective environment, so an operator can reconstruct what a run saw
// without secrets ever reaching the log. Secret-valued variables are reduced
// to "set"/"unset".
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// auditEntry names an env var the audit record reports. Secret entries are
// redacted to presence/absence.
type auditEntry struct {
	key    string
	secret bool
}

// auditKeys is the ordered env surface of the tool: vector store, collection
// defaults, chunk geometry, embedding and chat providers, server, journal,
// logging, tracing.
var auditKeys = []auditEntry{
	{"VECTOR_DB_HOST", false},
	{"VECTOR_DB_PORT", false},
	{"VECTOR_DB_API_KEY", true},
	{"SEMDEX_COLLECTION", false},
	{"SEMDEX_AGENTS_COLLECTION", false},
	{"CHUNK_SIZE", false},
	{"CHUNK_OVERLAP", false},
	{"BATCH_SIZE", false},
	{"EMBEDDING_PROVIDER", false},
	{"EMBEDDING_MODEL", false},
	{"EMBEDDING_API_KEY", true},
	{"MODEL_PROVIDER", false},
	{"OLLAMA_HOST", false},
	{"OLLAMA_MODEL", false},
	{"OPENAI_API_KEY", true},
	{"OPENAI_MODEL", false},
	{"AZURE_OPENAI_API_KEY", true},
	{"AZURE_OPENAI_ENDPOINT", false},
	{"AZURE_OPENAI_DEPLOYMENT", false},
	{"GOOGLE_API_KEY", true},
	{"GEMINI_MODEL", false},
	{"AWS_REGION", false},
	{"BEDROCK_MODEL_ID", false},
	{"SEMDEX_API_KEY", true},
	{"SEMDEX_JOURNAL_DB", false},
	{"LOG_LEVEL", false},
	{"LOG_FORMAT", false},
	{"LANGFUSE_PUBLIC_KEY", true},
	{"LANGFUSE_SECRET_KEY", true},
}

// secretKeys is derived from auditKeys so the two can never disagree about
// what counts as a secret.
var secretKeys = func() map[string]bool {
	m := make(map[string]bool, len(auditKeys))
	for _, e := range auditKeys {
		if e.secret {
			m[e.key] = true
		}
	}
	return m
}()

// LogCommandStart records the command name, config file origin, and the
// sanitised env surface as a single audit log entry.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditKeys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, e := range auditKeys {
		attrs = append(attrs, slog.String(e.key, SanitiseKey(e.key, os.Getenv(e.key))))
	}
	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey renders an env value for logging: secrets become "set"/"unset",
// everything else is the value itself or "unset" when empty.
func SanitiseKey(key, value string) string {
	if secretKeys[key] {
		return presence(value)
	}
	if value == "" {
		return "unset"
	}
	return value
}

// presence collapses a value to "set" or "unset".
func presence(v string) string {
	if v == "" {
		return "unset"
	}
	return "set"
}

// sanitiseConfigPath reports "none" for no config file and folds the home
// directory prefix to "~" so logs do not leak usernames.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(p, home) {
		return "~" + strings.TrimPrefix(p, home)
	}
	return p
}
