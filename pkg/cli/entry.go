// Package cli implements the interactive dispatch session: load the session
// config, build the catalog from the configured sources, then run a
// read-resolve-invoke loop.
package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/funvibe/dispatch/internal/catalog"
	"github.com/funvibe/dispatch/internal/config"
	"github.com/funvibe/dispatch/internal/gosource"
	"github.com/funvibe/dispatch/internal/prompt"
	"github.com/funvibe/dispatch/internal/protosource"
	"github.com/funvibe/dispatch/internal/resolve"
	"github.com/funvibe/dispatch/internal/snapcache"
)

// Session holds everything one interactive run needs.
type Session struct {
	Engine  *resolve.Engine
	Catalog *catalog.Registry
	Aliases *catalog.Aliases

	conns []*grpc.ClientConn
}

// Close releases session resources (client connections).
func (s *Session) Close() {
	for _, conn := range s.conns {
		conn.Close()
	}
}

// Run is the CLI entry point. Returns the process exit code.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	configPath := config.DefaultFileName
	rest := args
	for len(rest) > 0 {
		switch rest[0] {
		case "-config", "--config":
			if len(rest) < 2 {
				fmt.Fprintln(stderr, "error: -config requires a path")
				return 2
			}
			configPath = rest[1]
			rest = rest[2:]
		case "-h", "-help", "--help":
			printUsage(stdout)
			return 0
		default:
			fmt.Fprintf(stderr, "error: unknown argument %q\n", rest[0])
			printUsage(stderr)
			return 2
		}
	}

	cfg := &config.Config{}
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	session, err := NewSession(cfg, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer session.Close()

	return session.Loop(stdin, stdout, stderr)
}

// NewSession builds the catalog from the config's sources and wires the
// engine with console prompting.
func NewSession(cfg *config.Config, stdin io.Reader, stdout, stderr io.Writer) (*Session, error) {
	reg := catalog.NewRegistry()
	aliases := catalog.NewAliases(cfg.Aliases)

	if len(cfg.Packages) > 0 {
		if err := loadPackages(reg, cfg, stderr); err != nil {
			return nil, err
		}
	}

	session := &Session{Catalog: reg, Aliases: aliases}
	for _, spec := range cfg.Protos {
		loader := &protosource.Loader{ImportPaths: spec.ImportPaths}
		if spec.Target != "" {
			conn, err := grpc.NewClient(spec.Target, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return nil, fmt.Errorf("connecting to %s: %w", spec.Target, err)
			}
			session.conns = append(session.conns, conn)
			loader.Conn = conn
		}
		var err error
		if spec.DescriptorSet != "" {
			err = loader.LoadDescriptorSet(reg, spec.DescriptorSet)
		} else {
			err = loader.LoadProto(reg, spec.File)
		}
		if err != nil {
			return nil, err
		}
	}

	console := &prompt.Console{In: stdin, Out: stdout}
	warn := io.Writer(stderr)
	if cfg.NoWarn {
		warn = io.Discard
	}
	session.Engine = resolve.New(reg, aliases, console, console, warn)
	return session, nil
}

// loadPackages scans the configured Go packages, going through the snapshot
// cache when a cache directory is configured.
func loadPackages(reg *catalog.Registry, cfg *config.Config, stderr io.Writer) error {
	scanner := &gosource.Scanner{Warn: stderr}
	if cfg.CacheDir == "" {
		return scanner.Scan(reg, cfg.Packages...)
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	store, err := snapcache.Open(filepath.Join(cfg.CacheDir, "snapshots.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	key := snapcache.Key(cfg.Packages)
	if snap, ok, err := store.Lookup(key); err != nil {
		fmt.Fprintf(stderr, "WARNING: snapshot cache unavailable: %v\n", err)
	} else if ok {
		snapcache.Decode(reg, snap)
		return nil
	}

	if err := scanner.Scan(reg, cfg.Packages...); err != nil {
		return err
	}
	snap := snapcache.Encode(reg, reg.ListTypes(catalog.Filter{}))
	if err := store.Put(key, snap); err != nil {
		fmt.Fprintf(stderr, "WARNING: storing snapshot failed: %v\n", err)
	}
	return nil
}

// Loop runs the interactive command loop until quit or end of input.
func (s *Session) Loop(stdin io.Reader, stdout, stderr io.Writer) int {
	scanner := bufio.NewScanner(stdin)
	fmt.Fprintln(stdout, "dispatch session ready (type 'help' for commands)")
	for {
		fmt.Fprint(stdout, "dispatch> ")
		if !scanner.Scan() {
			return 0
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := tokenize(line)
		switch fields[0] {
		case "quit", "exit":
			return 0
		case "help":
			printUsage(stdout)
		case "types":
			pattern := ""
			if len(fields) > 1 {
				pattern = fields[1]
			}
			for _, t := range s.Catalog.ListTypes(catalog.Filter{NamePattern: pattern}) {
				fmt.Fprintln(stdout, t)
			}
		case "packages":
			pattern := ""
			if len(fields) > 1 {
				pattern = fields[1]
			}
			for _, p := range s.Catalog.Packages(pattern) {
				fmt.Fprintln(stdout, p)
			}
		case "methods":
			s.cmdMethods(fields[1:], stdout, stderr)
		case "sig":
			s.cmdSignature(fields[1:], stdout, stderr)
		case "alias":
			if len(fields) != 3 {
				fmt.Fprintln(stderr, "usage: alias <name> <target>")
				continue
			}
			s.Aliases.Add(fields[1], fields[2])
		case "aliases":
			for _, a := range s.Aliases.List() {
				fmt.Fprintf(stdout, "%s -> %s\n", a, s.Aliases.Resolve(a))
			}
		case "call":
			s.cmdCall(fields[1:], stdout, stderr)
		default:
			fmt.Fprintf(stderr, "unknown command %q (try 'help')\n", fields[0])
		}
	}
}

func (s *Session) cmdMethods(args []string, stdout, stderr io.Writer) {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: methods <type> [pattern]")
		return
	}
	t, ok := s.Engine.LookupType(args[0])
	if !ok {
		fmt.Fprintf(stderr, "type %q not found\n", args[0])
		return
	}
	pattern := "*"
	if len(args) > 1 {
		pattern = args[1]
	}
	enum := &resolve.Enumerator{Catalog: s.Catalog, Warn: stderr}
	for _, m := range enum.FindMethods(t, pattern, resolve.DefaultFlags|resolve.FlagNoWarn, nil) {
		fmt.Fprintln(stdout, resolve.RenderSignature(m, resolve.StyleSimple, nil))
	}
}

func (s *Session) cmdSignature(args []string, stdout, stderr io.Writer) {
	if len(args) < 2 {
		fmt.Fprintln(stderr, "usage: sig <type> <member> [full|simple|block]")
		return
	}
	t, ok := s.Engine.LookupType(args[0])
	if !ok {
		fmt.Fprintf(stderr, "type %q not found\n", args[0])
		return
	}
	style := resolve.StyleFull
	if len(args) > 2 {
		switch args[2] {
		case "simple":
			style = resolve.StyleSimple
		case "block":
			style = resolve.StyleParamBlock
		}
	}
	enum := &resolve.Enumerator{Catalog: s.Catalog, Warn: stderr}
	for _, m := range enum.FindMethods(t, args[1], resolve.DefaultFlags|resolve.FlagNoWarn, nil) {
		fmt.Fprintln(stdout, resolve.RenderSignature(m, style, nil))
	}
}

func (s *Session) cmdCall(args []string, stdout, stderr io.Writer) {
	if len(args) < 2 {
		fmt.Fprintln(stderr, "usage: call <type> <member> [args...]")
		return
	}
	t, ok := s.Engine.LookupType(args[0])
	if !ok {
		fmt.Fprintf(stderr, "type %q not found\n", args[0])
		return
	}
	values := make([]any, 0, len(args)-2)
	for _, raw := range args[2:] {
		values = append(values, parseLiteral(raw))
	}
	out, err := s.Engine.ResolveAndInvoke(t, args[1], values, true)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return
	}
	fmt.Fprintf(stdout, "%v\n", out)
}

// parseLiteral classifies a command argument: int, float, bool, a
// brace-delimited JSON map, or a plain string.
func parseLiteral(raw string) any {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}") {
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			return m
		}
	}
	return strings.Trim(raw, `"`)
}

// tokenize splits a command line, keeping brace-delimited literals whole.
func tokenize(line string) []string {
	var fields []string
	var cur strings.Builder
	depth := 0
	for _, r := range line {
		switch {
		case r == '{':
			depth++
			cur.WriteRune(r)
		case r == '}':
			depth--
			cur.WriteRune(r)
		case (r == ' ' || r == '\t') && depth == 0:
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `dispatch - interactive method resolution and invocation

usage: dispatch [-config dispatch.yaml]

commands:
  types [pattern]                list catalog types
  packages [pattern]             list catalog package qualifiers
  methods <type> [pattern]       list methods of a type
  sig <type> <member> [style]    render signatures (full|simple|block)
  call <type> <member> [args]    resolve and invoke a member
  alias <name> <target>          add a type alias
  aliases                        list aliases
  quit                           end the session`)
}
