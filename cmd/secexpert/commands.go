package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jeanpaul/secexpert/internal/agent"
	"github.com/jeanpaul/secexpert/internal/analysis"
	"github.com/jeanpaul/secexpert/internal/health"
	"github.com/jeanpaul/secexpert/internal/memory"
	"github.com/jeanpaul/secexpert/internal/schema"
	"github.com/jeanpaul/secexpert/internal/store"
)

const wrapWidth = 100

func cmdAnalyze(ctx context.Context, a *app, args []string) error {
	text, err := textArg(args)
	if err != nil {
		return err
	}
	o, err := a.orchestrator()
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, HelpStyle.Render("● Analyzing (session "+a.flags.session+")..."))
	return printResult(a, o.RunAnalysis(ctx, text, a.flags.session))
}

func printResult(a *app, res analysis.Result) error {
	if a.flags.jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else if res.OK() {
		if res.Type == analysis.TypeInterviewQuestion {
			fmt.Println(QuestionStyle.Render(res.Message))
		} else {
			if res.ContextUsed {
				fmt.Println(HelpStyle.Render("  (enriched with past analyses)"))
			}
			fmt.Print(renderReport(res.Analysis, wrapWidth))
		}
	}
	if !res.OK() {
		return errors.New(res.Error)
	}
	return nil
}

func cmdInterview(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("interview", flag.ContinueOnError)
	rounds := fs.Int("rounds", 2, "Follow-up rounds before the final analysis")
	save := fs.String("save", "", "Write the transcript to this file")
	resume := fs.String("resume", "", "Continue from a saved transcript")
	if err := fs.Parse(args); err != nil {
		return err
	}

	o, err := a.orchestrator()
	if err != nil {
		return err
	}

	var (
		stack string
		tr    *agent.Transcript
	)
	if *resume != "" {
		tr, err = agent.LoadTranscript(*resume)
		if err != nil {
			return err
		}
		if tr.Len() == 0 || tr.Turns[0].Speaker != agent.SpeakerUser {
			return fmt.Errorf("transcript %s does not start with a stack description", *resume)
		}
		stack = tr.Turns[0].Text
	} else {
		if fs.NArg() == 0 {
			return errors.New("usage: secexpert interview [--rounds n] <stack...>")
		}
		stack = strings.Join(fs.Args(), " ")
		tr = agent.NewTranscript()
		tr.AddAnswer(stack)

		res := o.StartInterview(ctx, stack)
		if !res.OK() {
			return errors.New(res.Error)
		}
		tr.AddQuestion(res.Message)
	}

	in := bufio.NewReader(os.Stdin)
	for round := 0; round <= *rounds; round++ {
		fmt.Println(QuestionStyle.Render(tr.LastQuestion()))
		fmt.Print(LabelStyle.Render("> "))
		answer, err := in.ReadString('\n')
		answer = strings.TrimSpace(answer)
		if answer == "" || strings.EqualFold(answer, "done") {
			break
		}
		history := tr.String()
		tr.AddAnswer(answer)
		if errors.Is(err, io.EOF) || round == *rounds {
			break
		}

		res := o.ContinueInterview(ctx, history, answer)
		if !res.OK() {
			a.log.Warn("follow-up failed, analyzing what we have", "error", res.Error)
			break
		}
		tr.AddQuestion(res.Message)
	}

	if *save != "" {
		if err := tr.Save(*save); err != nil {
			a.log.Warn("save transcript", "path", *save, "error", err)
		}
	}

	fmt.Fprintln(os.Stderr, HelpStyle.Render("● Analyzing..."))
	return printResult(a, o.RunInterviewedAnalysis(ctx, stack, a.flags.session, tr.String()))
}

func cmdHistory(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "Maximum entries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rows, err := a.store.ListSessionHistory(ctx, a.flags.session, *limit)
	if err != nil {
		return err
	}
	if a.flags.jsonOut {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Println(HelpStyle.Render("No analyses for session " + a.flags.session))
		return nil
	}
	for _, c := range rows {
		fmt.Printf("%s  %s\n", LabelStyle.Render(c.CreatedAt.Local().Format(time.DateTime)), memory.Excerpt(c.TechStackText, 80))
		fmt.Println(HelpStyle.Render(fmt.Sprintf("    %d risks, %d recommendations", len(c.Risks), len(c.Recommendations))))
	}
	return nil
}

func cmdInsights(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("insights", flag.ContinueOnError)
	tech := fs.String("tech", "", "Only this technology")
	limit := fs.Int("limit", 0, "Maximum entries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rows, err := a.agg.TopInsights(ctx, *tech, *limit)
	if err != nil {
		return err
	}
	if a.flags.jsonOut {
		return printJSON(rows)
	}
	for _, in := range rows {
		fmt.Printf("%-12s %s %s %s\n",
			LabelStyle.Render(in.Technology),
			in.VulnerabilityType,
			riskStyle(string(in.RiskLevel)).Render("("+string(in.RiskLevel)+")"),
			HelpStyle.Render(fmt.Sprintf("seen %d times", in.Frequency)),
		)
	}
	return nil
}

func cmdSimilar(ctx context.Context, a *app, args []string) error {
	text, err := textArg(args)
	if err != nil {
		return err
	}
	rows, err := a.matcher().FindSimilar(ctx, text, a.cfg.Memory.SimilarLimit)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []store.Conversation{}
	}
	if a.flags.jsonOut {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Println(HelpStyle.Render("No similar analyses recorded"))
	}
	for _, c := range rows {
		fmt.Printf("%s %s\n", LabelStyle.Render(c.CreatedAt.Local().Format(time.DateOnly)), c.TechStackText)
		for _, r := range c.Risks {
			fmt.Println(HelpStyle.Render("    - " + r))
		}
	}
	return nil
}

func cmdPatterns(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: secexpert patterns seed|list|match|reinforce")
	}
	switch args[0] {
	case "seed":
		path := ""
		if len(args) > 1 {
			path = args[1]
		}
		patterns, err := schema.LoadPatternSeed(path)
		if err != nil {
			return err
		}
		if err := a.store.SeedPatterns(ctx, patterns); err != nil {
			return err
		}
		fmt.Println(OKStyle.Render(fmt.Sprintf("✓ Seeded %d patterns", len(patterns))))
		return nil

	case "list":
		rows, err := a.store.ListPatterns(ctx)
		if err != nil {
			return err
		}
		if a.flags.jsonOut {
			return printJSON(rows)
		}
		for _, p := range rows {
			printPattern(p, nil)
		}
		return nil

	case "match":
		text, err := textArg(args[1:])
		if err != nil {
			return err
		}
		matches, err := memory.NewPatternMatcher(a.store).Match(ctx, text, 5)
		if err != nil {
			return err
		}
		if a.flags.jsonOut {
			return printJSON(matches)
		}
		if len(matches) == 0 {
			fmt.Println(HelpStyle.Render("No pattern matches (try 'secexpert patterns seed')"))
		}
		for _, m := range matches {
			printPattern(m.Pattern, m.Matched)
		}
		return nil

	case "reinforce":
		if len(args) < 2 {
			return errors.New("usage: secexpert patterns reinforce <name> [delta]")
		}
		delta := 1.0
		if len(args) > 2 {
			d, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid delta %q", args[2])
			}
			delta = d
		}
		p, err := memory.NewPatternMatcher(a.store).Reinforce(ctx, args[1], delta)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no pattern named %q", args[1])
		}
		if err != nil {
			return err
		}
		fmt.Println(OKStyle.Render(fmt.Sprintf("✓ %s score %.1f (matched %d times)", p.Name, p.Score, p.TimesMatched)))
		return nil
	}
	return fmt.Errorf("unknown patterns subcommand %q", args[0])
}

func printPattern(p store.AnalysisPattern, matched []string) {
	header := LabelStyle.Render(p.Name) + HelpStyle.Render(fmt.Sprintf("  score %.1f", p.Score))
	if len(matched) > 0 {
		header += HelpStyle.Render("  matched: " + strings.Join(matched, ", "))
	}
	fmt.Println(header)
	for _, r := range p.CommonRisks {
		fmt.Println("    " + riskStyle("high").Render("!") + " " + r)
	}
	for _, s := range p.RecommendedSolutions {
		fmt.Println("    " + OKStyle.Render("+") + " " + s)
	}
}

func cmdPrefs(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: secexpert prefs set <key> <value> | prefs list")
	}
	switch args[0] {
	case "set":
		if len(args) < 3 {
			return errors.New("usage: secexpert prefs set <key> <value>")
		}
		return a.store.SetPreference(ctx, a.flags.session, args[1], strings.Join(args[2:], " "))
	case "list":
		prefs, err := a.store.Preferences(ctx, a.flags.session)
		if err != nil {
			return err
		}
		if a.flags.jsonOut {
			return printJSON(prefs)
		}
		for _, p := range prefs {
			fmt.Printf("%s = %s\n", LabelStyle.Render(p.PreferenceKey), p.PreferenceValue)
		}
		return nil
	}
	return fmt.Errorf("unknown prefs subcommand %q", args[0])
}

func cmdReset(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "Confirm deletion")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return errors.New("this deletes every stored analysis, insight, pattern and preference; pass --yes to confirm")
	}
	if err := a.store.Reset(ctx); err != nil {
		return err
	}
	fmt.Println(OKStyle.Render("✓ Store cleared: " + a.cfg.Store.Path))
	return nil
}

func cmdDoctor(ctx context.Context, a *app, _ []string) error {
	fmt.Println(BannerStyle.Render("  secexpert health check"))
	fmt.Println()

	st := health.CheckStore(ctx, a.store, a.cfg.Store.Path)
	fmt.Printf("  %s ... ", LabelStyle.Render("store"))
	if st.OK {
		fmt.Println(OKStyle.Render("✓ "+st.Path) + HelpStyle.Render(fmt.Sprintf("  %d analyses, %d insights, %d patterns, %d preferences",
			st.Stats.Conversations, st.Stats.Insights, st.Stats.Patterns, st.Stats.Preferences)))
	} else {
		fmt.Println(ErrorStyle.Render("✗ " + st.Error))
	}

	fmt.Printf("  %s ... ", LabelStyle.Render(a.cfg.DefaultProvider))
	prov, err := a.newProvider()
	if err != nil {
		fmt.Println(ErrorStyle.Render("✗ " + err.Error()))
		return errors.New("default provider is not usable")
	}
	model := a.cfg.DefaultModel
	if model == "" {
		pc, _ := a.cfg.ProviderFor(a.cfg.DefaultProvider)
		model = pc.Model
	}
	ps := health.CheckProvider(ctx, prov, model)
	switch {
	case !ps.Reachable:
		fmt.Println(ErrorStyle.Render("✗ " + ps.Error))
	case !ps.ModelListed:
		fmt.Println(riskStyle("medium").Render("! " + ps.Error))
	default:
		fmt.Println(OKStyle.Render("✓ "+model) + HelpStyle.Render(" "+ps.Latency.Round(time.Millisecond).String()))
	}

	fmt.Println()
	if !st.OK || !ps.Reachable {
		return errors.New("unhealthy")
	}
	fmt.Println(OKStyle.Render("  All checks passed"))
	return nil
}

// cmdRecord stores an analysis produced elsewhere, as if it came from the
// pipeline.
func cmdRecord(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	stack := fs.String("stack", "", "Tech stack the analysis is about")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*stack) == "" {
		return errors.New("usage: secexpert record --stack <description> [analysis-file]")
	}

	var (
		data []byte
		err  error
	)
	if fs.NArg() > 0 {
		data, err = os.ReadFile(fs.Arg(0))
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return err
	}
	report := strings.TrimSpace(string(data))
	if report == "" {
		return errors.New("analysis text is empty")
	}

	if err := memory.NewRecorder(a.store, a.agg, a.log).RecordResult(ctx, *stack, a.flags.session, report); err != nil {
		return err
	}
	parsed := memory.ParseAnalysis(report)
	fmt.Println(OKStyle.Render(fmt.Sprintf("✓ Recorded %d risks and %d recommendations", len(parsed.Risks), len(parsed.Recommendations))))
	return nil
}
