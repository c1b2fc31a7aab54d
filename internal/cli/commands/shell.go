package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/ezql/internal/cli/config"
	"github.com/leapstack-labs/ezql/internal/cli/output"
	"github.com/leapstack-labs/ezql/internal/dag"
	"github.com/leapstack-labs/ezql/internal/engine"
	"github.com/leapstack-labs/ezql/pkg/lineage"
	"github.com/spf13/cobra"
)

const (
	shellPrompt     = "ezql> "
	shellContPrompt = "  ...> "
)

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Extract lineage interactively",
		Long: `Start an interactive shell that extracts the lineage of each statement
typed. Statements may span lines and end with a semicolon (;).

Type .help for the dot-commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd)
		},
	}
}

// shell evaluates input lines. It is separate from the readline loop so
// it can be driven line by line.
type shell struct {
	cfg    config.Config
	logger *slog.Logger
	engine *engine.Engine
	out    io.Writer
	errOut io.Writer
	mode   output.Mode
	buf    strings.Builder
	// session collects the statements extracted so far.
	session lineage.Procedure
}

func newShell(cmd *cobra.Command) (*shell, error) {
	cfg := *getConfig()
	mode := cfg.OutputMode()
	if mode == output.ModeAuto {
		mode = output.ModeText
	}
	sh := &shell{
		cfg:     cfg,
		logger:  config.GetLogger(cmd.Context()),
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		mode:    mode,
		session: lineage.Procedure{Name: "shell", Statements: []lineage.Statement{}},
	}
	if err := sh.rebuild(); err != nil {
		return nil, err
	}
	return sh, nil
}

// rebuild creates the engine from the current settings.
func (sh *shell) rebuild() error {
	eng, err := engine.New(sh.cfg.EngineConfig(sh.logger))
	if err != nil {
		return err
	}
	sh.engine = eng
	return nil
}

func runShell(cmd *cobra.Command) error {
	sh, err := newShell(cmd)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     historyFile(),
		AutoComplete:    shellCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(sh.out, "ezql shell (mode: %s, default schema: %q)\n", sh.cfg.Mode, sh.cfg.DefaultSchema)
	_, _ = fmt.Fprintln(sh.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(sh.out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			sh.buf.Reset()
			rl.SetPrompt(shellPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if sh.eval(line) {
			return nil
		}
		rl.SetPrompt(sh.prompt())
	}
}

func (sh *shell) prompt() string {
	if sh.buf.Len() > 0 {
		return shellContPrompt
	}
	return shellPrompt
}

// eval handles one input line and reports whether the shell should exit.
func (sh *shell) eval(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	// Handle dot-commands
	if sh.buf.Len() == 0 && strings.HasPrefix(line, ".") {
		return sh.dotCommand(line)
	}

	// Accumulate multi-line SQL until semicolon
	sh.buf.WriteString(line)
	if !strings.HasSuffix(line, ";") {
		sh.buf.WriteString("\n")
		return false
	}

	sql := sh.buf.String()
	sh.buf.Reset()
	sh.extract(sql)
	return false
}

func (sh *shell) renderer() *output.Renderer {
	return output.NewRendererWithTTY(sh.out, sh.errOut, sh.mode == output.ModeText, sh.mode)
}

func (sh *shell) extract(sql string) {
	stmt, ok, err := sh.engine.Extract(sql)
	if err != nil {
		_, _ = fmt.Fprintf(sh.errOut, "Error: %v\n", err)
		return
	}
	r := sh.renderer()
	if !ok {
		r.Warnf("statement carries no table lineage and was discarded")
		return
	}
	sh.session.Statements = append(sh.session.Statements, stmt)
	if err := r.Statement(stmt); err != nil {
		_, _ = fmt.Fprintf(sh.errOut, "Error: %v\n", err)
	}
}

func (sh *shell) dotCommand(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printShellHelp(sh.out)

	case ".mode":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(sh.out, "output mode: %s\n", sh.mode)
			return false
		}
		mode, err := output.ParseMode(parts[1])
		if err != nil || mode == output.ModeAuto {
			_, _ = fmt.Fprintln(sh.errOut, "Usage: .mode text|markdown|json")
			return false
		}
		sh.mode = mode

	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintf(sh.out, "default schema: %q\n", sh.cfg.DefaultSchema)
			return false
		}
		schema := parts[1]
		if schema == `""` || schema == "-" {
			schema = ""
		}
		prev := sh.cfg.DefaultSchema
		sh.cfg.DefaultSchema = schema
		if err := sh.rebuild(); err != nil {
			sh.cfg.DefaultSchema = prev
			_, _ = fmt.Fprintf(sh.errOut, "Error: %v\n", err)
		}

	case ".tables":
		graph := dag.Build(lineage.Result{Procedures: []lineage.Procedure{sh.session}})
		for _, n := range graph.Nodes() {
			_, _ = fmt.Fprintln(sh.out, n.ID)
		}

	default:
		_, _ = fmt.Fprintf(sh.errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printShellHelp(w io.Writer) {
	help := `
Commands:
  .help              Show this help message
  .mode [mode]       Show or set the output mode (text, markdown, json)
  .schema [schema]   Show or set the default schema ("-" clears it)
  .tables            List the tables seen in this session
  .quit / .exit      Exit the shell

Tips:
  - Statements must end with a semicolon (;)
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

func shellCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".mode",
			readline.PcItem("text"),
			readline.PcItem("markdown"),
			readline.PcItem("json"),
		),
		readline.PcItem(".schema"),
		readline.PcItem(".tables"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}

// historyFile returns the shell history path in the user cache directory,
// or "" to disable history.
func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "ezql")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return ""
	}
	return filepath.Join(dir, "shell_history")
}
