package cmd

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/etnz/finntra/assistant"
	"github.com/google/subcommands"
)

type assistCmd struct {
	model string
}

func (*assistCmd) Name() string     { return "assist" }
func (*assistCmd) Synopsis() string { return "chat with the financial assistant" }
func (*assistCmd) Usage() string {
	return `finntra assist [-model <name>] [<question>...]

  Asks the financial assistant a question, or starts a conversation read
  from the standard input when no question is given. An empty line ends it.
  GEMINI_API_KEY must be set.
`
}

func (c *assistCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.model, "model", "", "Model name, overrides ASSISTANT_MODEL.")
}

func (c *assistCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer logger.Sync()
	model := cfg.Assistant.Model
	if c.model != "" {
		model = c.model
	}
	gen, err := assistant.NewGemini(ctx, cfg.Assistant.APIKey, model)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if f.NArg() > 0 {
		answer, err := gen.Generate(ctx, strings.Join(f.Args(), " "), nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Assistant failed:", err)
			return subcommands.ExitFailure
		}
		printMarkdown(answer)
		return subcommands.ExitSuccess
	}
	if err := converse(ctx, gen, os.Stdin, os.Stdout, printMarkdown); err != nil {
		fmt.Fprintln(os.Stderr, "Assistant failed:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// converse reads questions from in until an empty line or EOF, keeping the
// history of the conversation between turns.
func converse(ctx context.Context, gen assistant.Generator, in io.Reader, out io.Writer, print func(string)) error {
	var history []assistant.Message
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			return nil
		}
		answer, err := gen.Generate(ctx, prompt, history)
		if err != nil {
			return err
		}
		print(answer)
		history = append(history,
			assistant.Message{Role: "user", Content: prompt},
			assistant.Message{Role: "assistant", Content: answer},
		)
	}
}
