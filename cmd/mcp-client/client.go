// client.go
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/chzyer/readline"
)

// client talks JSON-RPC to a stdio MCP server running as a subprocess.
type client struct {
	cmd     *exec.Cmd
	in      io.WriteCloser
	out     *bufio.Reader
	nextID  int
	tools   []string
	schemas map[string]map[string]any
	quiet   bool
	machine bool
}

func main() {
	flags := parseFlags()
	if flags.showHelp {
		printHelp()
		os.Exit(0)
	}
	if len(flags.args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mcp-client <server-command> [args...]")
		os.Exit(1)
	}

	c, err := spawnServer(flags.args, flags.quiet, flags.machine)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to start server:", err)
		os.Exit(1)
	}
	if err := c.fetchTools(); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to list tools:", err)
	}
	c.repl()
}

// spawnServer starts the MCP server subprocess with its stdio wired to us.
func spawnServer(args []string, quiet, machine bool) (*client, error) {
	cmd := exec.Command(args[0], args[1:]...)
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &client{
		cmd:     cmd,
		in:      in,
		out:     bufio.NewReader(out),
		nextID:  1,
		schemas: make(map[string]map[string]any),
		quiet:   quiet,
		machine: machine,
	}, nil
}

// send writes one JSON-RPC request to the server.
func (c *client) send(method string, params map[string]any) {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID,
		"method":  method,
		"params":  params,
	}
	c.nextID++
	_ = json.NewEncoder(c.in).Encode(msg)
}

// fetchTools asks the server for its tool list once at startup and caches
// the names and input schemas for completion and the schema command.
func (c *client) fetchTools() error {
	c.send("tools/list", map[string]any{})
	for {
		line, err := c.out.ReadString('\n')
		if err != nil {
			return err
		}
		var obj map[string]any
		if json.Unmarshal([]byte(line), &obj) != nil {
			continue
		}
		result, ok := obj["result"].(map[string]any)
		if !ok {
			return nil
		}
		arr, _ := result["tools"].([]any)
		for _, t := range arr {
			tmap, ok := t.(map[string]any)
			if !ok {
				continue
			}
			name, ok := tmap["name"].(string)
			if !ok {
				continue
			}
			c.tools = append(c.tools, name)
			if schema, ok := tmap["inputSchema"].(map[string]any); ok {
				c.schemas[name] = schema
			}
		}
		sort.Strings(c.tools)
		return nil
	}
}

// completer builds tab completion over the commands and known tool names.
func (c *client) completer() *readline.PrefixCompleter {
	var toolItems []readline.PrefixCompleterInterface
	for _, name := range c.tools {
		toolItems = append(toolItems, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("list"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
		readline.PcItem("call", toolItems...),
		readline.PcItem("schema", toolItems...),
	)
}

// repl runs the interactive prompt until exit or EOF.
func (c *client) repl() {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mcp> ",
		HistoryFile:     os.ExpandEnv("$HOME/.apimcp_client_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    c.completer(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize readline:", err)
		os.Exit(1)
	}
	defer rl.Close()

	if !c.quiet && !c.machine {
		fmt.Println("Welcome to mcp-client! Type 'help' for available commands.")
	}

	go c.readResponses(rl)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				c.shutdown()
				return
			}
			continue
		} else if err == io.EOF {
			c.shutdown()
			return
		}
		if !c.dispatch(strings.TrimSpace(line)) {
			return
		}
	}
}

// dispatch handles one line of input. It returns false when the client
// should exit.
func (c *client) dispatch(line string) bool {
	switch {
	case line == "":
		return true
	case line == "exit" || line == "quit":
		c.shutdown()
		return false
	case line == "help":
		fmt.Print(`Available commands:

  help        Show this help message
  exit        Exit the client
  list        List available tools
  schema      Show the input schema for a tool
  call        Call a tool with JSON arguments
`)
	case line == "list":
		c.send("tools/list", map[string]any{})
	case strings.HasPrefix(line, "schema "):
		c.printSchema(strings.TrimSpace(strings.TrimPrefix(line, "schema ")))
	case strings.HasPrefix(line, "call "):
		c.callTool(strings.TrimPrefix(line, "call "))
	default:
		fmt.Fprintln(os.Stderr, "[error] Unknown command. Type 'help' for available commands.")
	}
	return true
}

// printSchema shows the cached input schema for a tool plus a ready-made
// example call line.
func (c *client) printSchema(name string) {
	schema, ok := c.schemas[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "[error] No schema found for tool '%s'.\n", name)
		return
	}
	pretty, _ := json.MarshalIndent(schema, "", "  ")
	fmt.Printf("Schema for %s:\n%s\n", name, pretty)

	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return
	}
	example := map[string]any{}
	for k, v := range props {
		vmap, ok := v.(map[string]any)
		if !ok {
			example[k] = nil
			continue
		}
		switch vmap["type"] {
		case "string":
			example[k] = "example"
		case "number", "integer":
			example[k] = 123
		case "boolean":
			example[k] = true
		case "array":
			example[k] = []any{"item1", "item2"}
		case "object":
			example[k] = map[string]any{"key": "value"}
		default:
			example[k] = nil
		}
	}
	exampleJSON, _ := json.Marshal(example)
	fmt.Printf("Example: call %s %s\n", name, exampleJSON)
}

// callTool parses "<tool> <json-args>" and sends a tools/call request.
func (c *client) callTool(rest string) {
	tool, args, found := strings.Cut(rest, " ")
	if !found {
		fmt.Fprintln(os.Stderr, "Usage: call <tool> <json-args>")
		return
	}
	var argObj map[string]any
	if err := json.Unmarshal([]byte(args), &argObj); err != nil {
		fmt.Fprintln(os.Stderr, "Invalid JSON for args:", err)
		if schema, ok := c.schemas[tool]; ok {
			pretty, _ := json.MarshalIndent(schema, "", "  ")
			fmt.Fprintf(os.Stderr, "Expected schema for %s:\n%s\n", tool, pretty)
		}
		return
	}
	c.send("tools/call", map[string]any{
		"name":      tool,
		"arguments": argObj,
	})
}

// readResponses prints server responses as they arrive, keeping the prompt
// redrawn underneath.
func (c *client) readResponses(rl *readline.Instance) {
	for {
		line, err := c.out.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, "[server closed]", err)
			os.Exit(0)
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			fmt.Fprintf(os.Stderr, "[server] %s", line)
			rl.Refresh()
			continue
		}
		if method, ok := obj["method"].(string); ok && strings.HasPrefix(method, "notifications/") {
			rl.Refresh()
			continue
		}
		if result, ok := obj["result"]; ok {
			c.printResult(result)
		} else if errObj, ok := obj["error"]; ok {
			prettyErr, _ := json.MarshalIndent(errObj, "", "  ")
			if c.quiet || c.machine {
				fmt.Fprintln(os.Stderr, string(prettyErr))
			} else {
				fmt.Fprintf(os.Stderr, "[server error] %s\n", prettyErr)
			}
		} else {
			pretty, _ := json.MarshalIndent(obj, "", "  ")
			fmt.Fprintf(os.Stderr, "[server] %s\n", pretty)
		}
		rl.Refresh()
	}
}

// printResult renders a JSON-RPC result. Tool results carry a content array
// whose text entries often end with a JSON payload worth re-indenting.
func (c *client) printResult(result any) {
	if c.quiet || c.machine {
		if pretty, err := json.MarshalIndent(result, "", "  "); err == nil {
			fmt.Println(string(pretty))
		} else {
			fmt.Println(result)
		}
		return
	}
	resultMap, ok := result.(map[string]any)
	if !ok {
		pretty, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintf(os.Stdout, "[server result] %s\n", pretty)
		return
	}
	contentArr, ok := resultMap["content"].([]any)
	if !ok {
		pretty, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintf(os.Stdout, "[tool response] %s\n", pretty)
		return
	}
	for _, entry := range contentArr {
		eMap, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		txt, ok := eMap["text"].(string)
		if !ok {
			continue
		}
		fmt.Fprintln(os.Stdout, indentResponseBody(txt))
	}
}

// indentResponseBody re-indents the JSON payload following a "Response:"
// marker in a tool result, leaving everything else as-is.
func indentResponseBody(txt string) string {
	const marker = "Response:\n"
	idx := strings.Index(txt, marker)
	if idx == -1 {
		return txt
	}
	prefix := txt[:idx+len(marker)]
	body := strings.TrimSpace(txt[idx+len(marker):])
	if len(body) == 0 || (body[0] != '{' && body[0] != '[') {
		return txt
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(body), "", "  "); err != nil {
		return txt
	}
	return prefix + buf.String()
}

// shutdown kills the server subprocess.
func (c *client) shutdown() {
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
}
