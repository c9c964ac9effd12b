/*
Package agent2000 is a toolkit for running LLM agents behind a small HTTP service.

It bundles the helpers an agent host needs around model calls: environment loading,
a coded error taxonomy, token counting and budgeting, request rate limiting, history
tracking with pluggable persistence, text extraction and file utilities. The same
helpers are exposed over HTTP (port 8080 by default) and as MCP tools.

The repository also owns the container packaging of the service. Package packaging
renders the supported Dockerfile recipes and verifies that any Dockerfile honours the
runtime contract: the service port is exposed, the entrypoint is fixed, PYTHONPATH
covers the application directory, dependencies are installed before code is copied
and the helpers directory exists in the final image.

# Layout

  - pkg/apperr, pkg/dotenv, pkg/extract, pkg/files, pkg/history, pkg/ratelimit,
    pkg/sanitize, pkg/sysinfo, pkg/tokens: the helper library.
  - pkg/packaging: container recipes and contract verification.
  - pkg/adapters: HTTP, MCP and storage adapters.
  - cmd/agent2000: the command line entrypoint.
*/
package agent2000
