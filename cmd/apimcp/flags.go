// flags.go
package main

import (
	"flag"
	"fmt"
	"os"
)

// cliFlags holds all parsed CLI flags and arguments.
type cliFlags struct {
	showHelp         bool
	configFile       string
	httpAddr         string
	transport        string
	baseURL          string
	bearerToken      string
	basicAuth        string
	apiKey           string
	apiKeyHeader     string
	logLevel         string
	includeDescRegex string
	excludeDescRegex string
	dryRun           bool
	prettyPrint      bool
	summary          bool
	tagFlags         multiFlag
	args             []string
}

// parseFlags parses all CLI flags and returns a cliFlags struct.
func parseFlags() *cliFlags {
	var flags cliFlags
	flag.BoolVar(&flags.showHelp, "h", false, "Show help")
	flag.BoolVar(&flags.showHelp, "help", false, "Show help")
	flag.StringVar(&flags.configFile, "config", "", "Path to TOML config file")
	flag.StringVar(&flags.httpAddr, "http", "", "Serve MCP over HTTP on this address (e.g., :8080) instead of stdio")
	flag.StringVar(&flags.transport, "transport", "", "Transport to serve on: stdio or http")
	flag.StringVar(&flags.baseURL, "base-url", "", "Override the upstream base URL (overrides APIMCP_BASE_URL env)")
	flag.StringVar(&flags.bearerToken, "bearer-token", "", "Bearer token for the Authorization header (overrides APIMCP_BEARER_TOKEN env)")
	flag.StringVar(&flags.basicAuth, "basic-auth", "", "Basic auth (user:pass) for the Authorization header (overrides APIMCP_BASIC_AUTH env)")
	flag.StringVar(&flags.apiKey, "api-key", "", "API key for authenticated endpoints (overrides APIMCP_API_KEY env)")
	flag.StringVar(&flags.apiKeyHeader, "api-key-header", "", "Header name carrying the API key")
	flag.StringVar(&flags.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	flag.StringVar(&flags.includeDescRegex, "include-desc-regex", "", "Only include operations whose description matches this regex")
	flag.StringVar(&flags.excludeDescRegex, "exclude-desc-regex", "", "Exclude operations whose description matches this regex")
	flag.BoolVar(&flags.dryRun, "dry-run", false, "Print the generated MCP tool schemas and exit (do not start the server)")
	flag.BoolVar(&flags.prettyPrint, "pretty", false, "Pretty-print dry-run output")
	flag.BoolVar(&flags.summary, "summary", false, "Print a summary of the generated tools (count, tags, etc)")
	flag.Var(&flags.tagFlags, "tag", "Only include tools with the given OpenAPI tag (repeatable)")
	flag.Parse()
	flags.args = flag.Args()
	return &flags
}

// printHelp prints the CLI help message.
func printHelp() {
	fmt.Print(`apimcp: Expose an OpenAPI-described API as MCP tools

Usage:
  apimcp [flags] <openapi-spec-path>
  apimcp validate <openapi-spec-path>
  apimcp lint <openapi-spec-path>

Commands:
  validate <openapi-spec-path>  Check the OpenAPI document and the tool set it generates (does not start a server)
  lint <openapi-spec-path>      Like validate, but also report warnings

Flags:
  --config             Path to TOML config file
  --http               Serve MCP over HTTP on this address instead of stdio
  --transport          Transport to serve on: stdio or http
  --base-url           Override the upstream base URL
  --bearer-token       Bearer token for the Authorization header
  --basic-auth         Basic auth (user:pass) for the Authorization header
  --api-key            API key for authenticated endpoints
  --api-key-header     Header name carrying the API key
  --log-level          Log level: trace, debug, info, warn, error
  --include-desc-regex Only include operations whose description matches this regex
  --exclude-desc-regex Exclude operations whose description matches this regex
  --dry-run            Print the generated MCP tool schemas as JSON and exit
  --pretty             Pretty-print dry-run output
  --summary            Print a summary of the generated tools
  --tag                Only include tools with the given tag (repeatable)
  --help, -h           Show help

Configuration can also come from a TOML file (--config) and APIMCP_* environment
variables; flags win over both.
`)
}

// multiFlag is a custom flag type for collecting repeated string values.
type multiFlag []string

// String returns the string representation of the multiFlag.
func (m *multiFlag) String() string {
	return fmt.Sprintf("%v", *m)
}

// Set appends a value to the multiFlag.
func (m *multiFlag) Set(val string) error {
	*m = append(*m, val)
	return nil
}

// exitUsage prints an error plus help and exits non-zero.
func exitUsage(msg string) {
	fmt.Fprintln(os.Stderr, "Error: "+msg)
	printHelp()
	os.Exit(1)
}
