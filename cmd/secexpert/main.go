package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
)

func main() {
	var g globalFlags
	flag.StringVar(&g.configPath, "config", "", "Path to config.yaml")
	flag.StringVar(&g.provider, "provider", "", "Provider name (google, anthropic, openai, ollama)")
	flag.StringVar(&g.model, "model", "", "Model name")
	flag.StringVar(&g.session, "session", "", "Session id (default: a new random id)")
	flag.BoolVar(&g.verbose, "verbose", false, "Debug logging to stderr")
	flag.BoolVar(&g.jsonOut, "json", false, "Print results as JSON")
	helpFlag := flag.Bool("help", false, "Show help")
	flag.BoolVar(helpFlag, "h", false, "Show help")
	flag.Usage = showHelp
	flag.Parse()

	args := flag.Args()
	if *helpFlag || len(args) == 0 || args[0] == "help" {
		showHelp()
		return
	}
	if g.session == "" {
		g.session = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, ok := commands[args[0]]
	if !ok {
		fatal("unknown command %q (run 'secexpert help')", args[0])
	}

	a, err := newApp(ctx, g)
	if err != nil {
		fatal("%s", err)
	}
	err = cmd(ctx, a, args[1:])
	a.close()
	if err != nil {
		fatal("%s", err)
	}
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"analyze":   cmdAnalyze,
	"interview": cmdInterview,
	"history":   cmdHistory,
	"insights":  cmdInsights,
	"similar":   cmdSimilar,
	"record":    cmdRecord,
	"patterns":  cmdPatterns,
	"prefs":     cmdPrefs,
	"reset":     cmdReset,
	"doctor":    cmdDoctor,
}

// textArg joins positional args, or reads stdin when there are none.
func textArg(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no tech stack description given")
	}
	return text, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("error: "+msg))
	os.Exit(1)
}

func showHelp() {
	help := `
` + BannerStyle.Render("secexpert") + ` - security analysis of technology stacks, with memory

` + LabelStyle.Render("USAGE:") + `
  secexpert [flags] <command> [args]

` + LabelStyle.Render("COMMANDS:") + `
  analyze <stack...>                  Analyze a stack (reads stdin when no args)
  interview [--rounds n] <stack...>   Answer clarifying questions, then analyze
  history                             Past analyses for --session
  insights [--tech t] [--limit n]     Most frequent recorded insights
  similar <stack...>                  Past analyses of similar stacks
  record --stack <text> [file]        Store an analysis written elsewhere
  patterns seed [file]                Load pattern seed (built-in set when no file)
  patterns list                       List known patterns
  patterns match <stack...>           Patterns whose keywords match a stack
  patterns reinforce <name> [delta]   Credit a pattern that proved useful
  prefs set <key> <value>             Store a preference for --session
  prefs list                          Show preferences for --session
  reset --yes                         Delete all stored data
  doctor                              Check provider and store health

` + LabelStyle.Render("FLAGS:") + `
  --config <path>                     Config file (default ` + "~/.config/secexpert/config.yaml" + `)
  --provider <name>                   Provider to use
  --model <name>                      Model to use
  --session <id>                      Session id
  --json                              JSON output
  --verbose                           Debug logging

` + LabelStyle.Render("EXAMPLES:") + `
  secexpert analyze "React frontend, Node.js API, PostgreSQL on AWS"
  secexpert --session team-a interview "Django app in Docker"
  secexpert --provider ollama doctor
`
	fmt.Println(help)
}
