// Command forge applies a natural-language change request to a code
// repository through an LLM-driven action loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/mzeroual/forge/internal/engine"
	"github.com/mzeroual/forge/internal/project"
	"github.com/mzeroual/forge/internal/prompts"
	"github.com/mzeroual/forge/internal/providers"
	"github.com/mzeroual/forge/internal/store"
	"github.com/mzeroual/forge/internal/tools"
)

func main() {
	// Load .env if present; real env vars win.
	_ = godotenv.Load()

	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatalf("forge: %v", err)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forge", flag.ExitOnError)
	repoFlag := fs.String("repo", ".", "path to the repository root")
	requestFlag := fs.String("request", "", "change request to apply")
	dbFlag := fs.String("db", "", "path to the message database (default: <repo>/.forge/forge.db)")
	verbose := fs.Bool("verbose", false, "log run progress to stderr")

	if err := fs.Parse(args); err != nil {
		return err
	}

	request := *requestFlag
	if request == "" && fs.NArg() > 0 {
		request = fs.Arg(0)
	}
	if request == "" {
		return fmt.Errorf("no change request given (use -request or a positional argument)")
	}

	proj, err := project.Open(*repoFlag)
	if err != nil {
		return err
	}

	dbPath := *dbFlag
	if dbPath == "" {
		forgeDir := filepath.Join(proj.Root, project.ForgeDir)
		if err := os.MkdirAll(forgeDir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", forgeDir, err)
		}
		dbPath = filepath.Join(forgeDir, "forge.db")
	}

	recorder, err := store.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer recorder.Close()

	llm, modelName, err := providers.NewCompletionClientFromEnv()
	if err != nil {
		return err
	}

	caps, idx, err := tools.NewCapabilityMap(proj.Root, proj.Skip)
	if err != nil {
		return err
	}
	defer idx.Close()

	prompt, err := prompts.Default().Latest("changes")
	if err != nil {
		return err
	}
	builder, err := prompts.NewBuilder(prompts.Default(), prompt.ID, prompt.Rev)
	if err != nil {
		return err
	}
	builder.SetVariable("repoRoot", proj.Root)
	rules, err := project.LoadRules(proj.Root)
	if err != nil {
		log.Printf("ignoring rules file: %v", err)
	}
	systemPrompt := builder.BuildWithRules(rules)

	cfg := engine.DefaultConfig(proj.ID())
	cfg.Model = modelName
	if budget := proj.Config().ContextBudget; budget > 0 {
		cfg.ContextBudget = budget
	}

	var hooks engine.Hooks
	if *verbose {
		hooks = engine.Hooks{engine.LoggerHook{L: log.New(os.Stderr, "forge ", log.LstdFlags)}}
	}

	ctl := engine.NewController(llm, caps, recorder, proj, systemPrompt, hooks, cfg)

	res := ctl.Run(ctx, request)
	if !res.Success {
		log.Printf("details: %s", res.ErrorDetails)
		return fmt.Errorf("%s", res.Error)
	}

	for _, a := range res.Executed {
		fmt.Printf("  %s %s\n", a.Kind, a.TargetPath)
	}
	fmt.Println(res.Summary)
	return nil
}
