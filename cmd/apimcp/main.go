package main

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"

	"github.com/apimcp/apimcp/internal/config"
	"github.com/apimcp/apimcp/internal/logging"
	"github.com/apimcp/apimcp/pkg/openapi2mcp"
)

// main is the entrypoint for the apimcp CLI.
// It loads configuration, parses the OpenAPI document, and dispatches to the
// appropriate mode (server, validate, lint, dry-run).
func main() {
	_ = godotenv.Load()
	flags := parseFlags()

	if flags.showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.Load(flags.configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyFlagOverrides(config.FlagOverrides{
		Transport:    flags.transport,
		HTTPAddr:     flags.httpAddr,
		BaseURL:      flags.baseURL,
		BearerToken:  flags.bearerToken,
		BasicAuth:    flags.basicAuth,
		APIKey:       flags.apiKey,
		APIKeyHeader: flags.apiKeyHeader,
		LogLevel:     flags.logLevel,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging.Level)

	args := flags.args
	if len(args) > 0 && (args[0] == "validate" || args[0] == "lint") {
		if len(args) < 2 {
			exitUsage("missing required <openapi-spec-path> argument for " + args[0])
		}
		runLint(args[1], args[0] == "lint")
		return
	}

	specPath := cfg.Spec.Path
	if len(args) > 0 {
		specPath = args[len(args)-1]
	}
	if specPath == "" {
		exitUsage("missing required <openapi-spec-path> argument")
	}

	doc, err := openapi2mcp.LoadOpenAPISpec(specPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Could not load OpenAPI spec: %v\n", err)
		os.Exit(1)
	}
	logger.Info().Str("spec", specPath).Str("title", doc.Info.Title).Msg("OpenAPI document loaded and validated")

	var includeRegex, excludeRegex *regexp.Regexp
	if flags.includeDescRegex != "" {
		includeRegex, err = regexp.Compile(flags.includeDescRegex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --include-desc-regex: %v\n", err)
			os.Exit(1)
		}
	}
	if flags.excludeDescRegex != "" {
		excludeRegex, err = regexp.Compile(flags.excludeDescRegex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --exclude-desc-regex: %v\n", err)
			os.Exit(1)
		}
	}
	ops := openapi2mcp.ExtractFilteredOpenAPIOperations(doc, includeRegex, excludeRegex)

	opts := &openapi2mcp.ToolGenOptions{
		TagFilter:   flags.tagFlags,
		DryRun:      flags.dryRun,
		PrettyPrint: flags.prettyPrint,
		Version:     doc.Info.Version,
	}

	if flags.dryRun || flags.summary {
		bindings, err := openapi2mcp.GenerateTools(ops, doc, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if flags.summary {
			openapi2mcp.PrintToolSummary(bindings)
		}
		if flags.dryRun {
			printDryRun(bindings, flags.prettyPrint)
		}
		return
	}

	startServer(cfg, doc, ops, opts, logger)
}

// runLint validates the document and the tool set it would generate.
// Errors are always fatal; warnings fail only in lint mode's output listing.
func runLint(specPath string, withWarnings bool) {
	doc, err := openapi2mcp.LoadOpenAPISpec(specPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}
	result := openapi2mcp.LintDocument(doc)
	for _, issue := range result.Issues {
		if issue.Type == "warning" && !withWarnings {
			continue
		}
		out, _ := json.Marshal(issue)
		fmt.Fprintln(os.Stderr, string(out))
	}
	if !result.Success {
		fmt.Fprintf(os.Stderr, "Validation failed: %d errors, %d warnings\n", result.ErrorCount, result.WarningCount)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "OpenAPI document OK: %d warnings\n", result.WarningCount)
}

func printDryRun(bindings []*openapi2mcp.ToolBinding, pretty bool) {
	tools := make([]openapi2mcp.GeneratedTool, 0, len(bindings))
	for _, b := range bindings {
		desc := b.Op.Description
		if desc == "" {
			desc = b.Op.Summary
		}
		tools = append(tools, openapi2mcp.GeneratedTool{
			Name:        b.Name,
			Description: desc,
			Tags:        b.Op.Tags,
			InputSchema: b.InputSchema,
		})
	}
	var out []byte
	if pretty {
		out, _ = json.MarshalIndent(tools, "", "  ")
	} else {
		out, _ = json.Marshal(tools)
	}
	fmt.Println(string(out))
}
