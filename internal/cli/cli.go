// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command identifies a top-level command.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdDocs
	CmdHistory
	CmdConfig
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdTUI:     "tui",
	CmdAsk:     "ask",
	CmdChat:    "chat",
	CmdDocs:    "docs",
	CmdHistory: "history",
	CmdConfig:  "config",
	CmdVersion: "version",
	CmdHelp:    "help",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// boolFlagNames never consume the following argument.
var boolFlagNames = []string{
	"json", "verbose", "v", "yes", "y", "help", "h", "version", "open", "no-archive",
}

// Args is the parsed command line.
type Args struct {
	Command Command

	// Rest holds the positional arguments after the command name.
	Rest []string

	// Global flags
	JSON       bool
	Verbose    bool
	Yes        bool
	NoArchive  bool
	ConfigPath string
	ServerURL  string

	flags *ArgParser
}

// Sub returns the subcommand, the first of Rest.
func (a Args) Sub() string {
	if len(a.Rest) == 0 {
		return ""
	}
	return a.Rest[0]
}

// Arg returns Rest[i], or "" when absent.
func (a Args) Arg(i int) string {
	if i < 0 || i >= len(a.Rest) {
		return ""
	}
	return a.Rest[i]
}

// Flag returns a command-specific string flag.
func (a Args) Flag(names ...string) string {
	if a.flags == nil {
		return ""
	}
	return a.flags.Flag(names...)
}

// FlagOrDefault returns a command-specific flag or def.
func (a Args) FlagOrDefault(name, def string) string {
	if v := a.Flag(name); v != "" {
		return v
	}
	return def
}

// Flags returns every value of a repeatable flag.
func (a Args) Flags(names ...string) []string {
	if a.flags == nil {
		return nil
	}
	return a.flags.Flags(names...)
}

// IntFlag parses a command-specific integer flag.
func (a Args) IntFlag(name string, def int) (int, error) {
	if a.flags == nil {
		return def, nil
	}
	return a.flags.IntFlag(name, def)
}

// BoolFlag reports a command-specific boolean flag.
func (a Args) BoolFlag(names ...string) bool {
	return a.flags != nil && a.flags.BoolFlag(names...)
}

// Parse parses the arguments after the program name.
func Parse(argv []string) (Args, error) {
	p := NewArgParser(argv, boolFlagNames...)
	args := Args{
		JSON:       p.BoolFlag("json"),
		Verbose:    p.BoolFlag("verbose", "v"),
		Yes:        p.BoolFlag("yes", "y"),
		NoArchive:  p.BoolFlag("no-archive"),
		ConfigPath: p.Flag("config"),
		ServerURL:  p.Flag("server"),
		flags:      p,
	}

	pos := p.Positional()
	switch {
	case p.BoolFlag("version"):
		args.Command = CmdVersion
		return args, nil
	case p.BoolFlag("help", "h") && len(pos) == 0:
		args.Command = CmdHelp
		return args, nil
	case len(pos) == 0:
		args.Command = CmdTUI
		return args, nil
	}

	found := false
	for cmd, name := range commandNames {
		if name == pos[0] {
			args.Command = cmd
			found = true
			break
		}
	}
	if !found {
		return args, NewValidationErrorWithExample("command", pos[0], "unknown command", "docqa help")
	}
	args.Rest = pos[1:]

	if p.BoolFlag("help", "h") {
		args.Rest = append([]string{args.Command.String()}, args.Rest...)
		args.Command = CmdHelp
	}
	return args, nil
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes the parsed command and returns the exit code.
func Run(ctx context.Context, args Args) int {
	err := dispatch(ctx, args)
	if err != nil {
		DisplayError(err, args.JSON)
	}
	return GetExitCode(err)
}

func dispatch(ctx context.Context, args Args) error {
	switch args.Command {
	case CmdHelp:
		PrintUsage(os.Stdout, args.Sub())
		return nil
	case CmdVersion:
		return HandleVersion(args)
	case CmdConfig:
		return HandleConfig(args)
	case CmdHistory:
		return HandleHistory(ctx, args)
	}

	app, err := NewApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	switch args.Command {
	case CmdAsk:
		return HandleAsk(ctx, app, args)
	case CmdChat:
		return HandleChat(ctx, app, args)
	case CmdDocs:
		return HandleDocs(ctx, app, args)
	default:
		return HandleTUI(ctx, app, args)
	}
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `docqa - ask questions about your PDFs

Usage:
  docqa [flags]                      Open the chat interface
  docqa ask [--source NAME]... QUESTION
                                     Ask one question and print the answer
  docqa chat                         Line-mode chat
  docqa docs [list|upload FILES|remove NAME|clear|watch DIR]
                                     Manage uploaded documents
  docqa history [list|show ID|export ID FORMAT|delete ID]
                                     Browse archived sessions
  docqa config [show|get KEY|path|keys]
                                     Inspect configuration
  docqa version                      Show version information

Global flags:
  --config PATH     Use a specific config file
  --server URL      Override server.base_url
  --json            Machine-readable output
  -v, --verbose     Log to stderr
  -y, --yes         Skip confirmation prompts
  --no-archive      Do not archive this session

Run 'docqa help COMMAND' for details on a command.
`

var commandHelp = map[string]string{
	"ask": `Usage: docqa ask [--source NAME]... [--json] QUESTION

Asks QUESTION against the selected documents and prints the rendered
answer. Every uploaded document is used unless --source narrows the
selection. Progress goes to stderr.

Examples:
  docqa ask "What does section 3 conclude?"
  docqa ask --source paper.pdf --json "List the authors"
`,
	"chat": `Usage: docqa chat

Line-mode chat with history. Commands:
  /retry N       Ask turn N again
  /delete N      Remove turn N
  /docs          List documents and their selection
  /toggle NAME   Include or exclude a document
  /clear         Clear the conversation
  /new           Start a new session
  /export FMT    Export the conversation (markdown, json, html)
  /status        Show session status
  /help          Show this list
  /quit          Leave
Ctrl+C cancels the current answer. Ctrl+D exits.
`,
	"docs": `Usage: docqa docs [list|upload FILES...|remove NAME|clear|watch DIR]

  list           List uploaded documents (default)
  upload FILES   Upload PDF files
  remove NAME    Delete one document
  clear          Delete every document (asks first)
  watch DIR      Upload PDFs as they appear in DIR until interrupted
`,
	"history": `Usage: docqa history [list|show ID|export ID FORMAT|delete ID]

  list [--limit N] [--search TEXT]   List archived sessions (default)
  show ID                            Print a session
  export ID FORMAT [--open]          Write markdown, json or html
  delete ID                          Delete a session (asks first)

IDs may be abbreviated to any unique prefix.
`,
	"config": `Usage: docqa config [show|get KEY|path|keys]

  show     Print the effective configuration (default)
  get KEY  Print one value, e.g. server.base_url
  path     Print the config file location
  keys     List every key
`,
}

// PrintUsage writes the general usage, or a command's help when topic
// names one.
func PrintUsage(w io.Writer, topic string) {
	if text, ok := commandHelp[topic]; ok {
		fmt.Fprint(w, text)
		return
	}
	fmt.Fprint(w, usageText)
}

// =============================================================================
// VERSION
// =============================================================================

// VersionInfo is the --json payload of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// CurrentVersion returns the build information.
func CurrentVersion() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// HandleVersion prints the version.
func HandleVersion(args Args) error {
	info := CurrentVersion()
	if args.JSON {
		return NewJSONResponse("version", info).Print()
	}
	fmt.Printf("docqa %s\n", info.Version)
	fmt.Println(FormatKeyValue("Commit", info.GitCommit))
	fmt.Println(FormatKeyValue("Built", info.BuildDate))
	fmt.Println(FormatKeyValue("Go", strings.TrimPrefix(info.GoVersion, "go")))
	fmt.Println(FormatKeyValue("Platform", info.Platform))
	return nil
}
