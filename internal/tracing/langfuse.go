// Package tracing wires the optional Langfuse callback handler into eino's
// global callback chain. Tracing is opt-in via environment variables and the
// rest of the codebase never imports this package's dependency directly.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost is used when LANGFUSE_HOST is unset, matching a local
// docker-compose Langfuse deployment.
const defaultHost = "http://localhost:3000"

// Setup builds the Langfuse handler from LANGFUSE_PUBLIC_KEY,
// LANGFUSE_SECRET_KEY, and LANGFUSE_HOST. When either key is missing, tracing
// is disabled and ok is false. The flush function must run before process
// exit so buffered traces are delivered.
func Setup() (handler callbacks.Handler, flush func(), ok bool) {
	public := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secret := os.Getenv("LANGFUSE_SECRET_KEY")
	if public == "" || secret == "" {
		return nil, nil, false
	}

	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = defaultHost
	}

	handler, flush = langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: public,
		SecretKey: secret,
	})
	return handler, flush, true
}
