// server.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"

	"github.com/apimcp/apimcp/internal/config"
	"github.com/apimcp/apimcp/internal/httpserver"
	"github.com/apimcp/apimcp/pkg/openapi2mcp"
)

// shutdownTimeout bounds graceful shutdown of the HTTP transport.
const shutdownTimeout = 10 * time.Second

// startServer builds the MCP server from the OpenAPI operations and serves it
// on the configured transport.
func startServer(cfg *config.Config, doc *openapi3.T, ops []openapi2mcp.OpenAPIOperation, opts *openapi2mcp.ToolGenOptions, logger *log.Logger) {
	exec := newExecutor(cfg, doc)
	exec.Logger = logger

	name := doc.Info.Title
	if name == "" {
		name = "apimcp"
	}
	srv, err := openapi2mcp.NewServerWithOps(name, doc.Info.Version, doc, ops, exec, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Server.Transport == "http" {
		serveHTTP(cfg, name, srv, logger)
		return
	}

	logger.Info().Msg("serving MCP over stdio")
	if err := openapi2mcp.ServeStdio(srv); err != nil {
		fmt.Fprintf(os.Stderr, "Error: stdio server failed: %v\n", err)
		os.Exit(1)
	}
}

func serveHTTP(cfg *config.Config, name string, srv *server.MCPServer, logger *log.Logger) {
	httpSrv := httpserver.New(cfg.Addr(), name, srv, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: shutdown failed: %v\n", err)
			os.Exit(1)
		}
	}
}

// newExecutor wires the upstream base URL and credential from config. The
// base URL falls back to the document's first server entry; the API key
// header falls back to the one named by the document's security schemes.
func newExecutor(cfg *config.Config, doc *openapi3.T) *openapi2mcp.Executor {
	baseURL := cfg.Upstream.BaseURL
	if baseURL == "" && len(doc.Servers) > 0 && doc.Servers[0] != nil {
		baseURL = doc.Servers[0].URL
	}

	apiKeyHeader := cfg.Upstream.APIKeyHeader
	if apiKeyHeader == "" {
		apiKeyHeader = apiKeyHeaderFromDoc(doc)
	}

	return openapi2mcp.NewExecutor(baseURL, openapi2mcp.AuthConfig{
		BearerToken:  cfg.Upstream.BearerToken,
		BasicAuth:    cfg.Upstream.BasicAuth,
		APIKey:       cfg.Upstream.APIKey,
		APIKeyHeader: apiKeyHeader,
	})
}

// apiKeyHeaderFromDoc finds the header name declared by an apiKey security
// scheme, if the document has one.
func apiKeyHeaderFromDoc(doc *openapi3.T) string {
	if doc.Components == nil {
		return ""
	}
	for _, ref := range doc.Components.SecuritySchemes {
		if ref == nil || ref.Value == nil {
			continue
		}
		sec := ref.Value
		if sec.Type == "apiKey" && sec.In == "header" && sec.Name != "" {
			return sec.Name
		}
	}
	return ""
}
