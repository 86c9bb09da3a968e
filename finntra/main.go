// Command finntra runs the personal finance API and its companion tools.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/etnz/finntra/cmd"
	"github.com/etnz/finntra/currency"
	"github.com/etnz/finntra/docs"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

func main() {
	name := path.Base(os.Args[0])
	completion(name).Complete(name)

	commander := subcommands.NewCommander(flag.CommandLine, name)
	cmd.Register(commander)

	flag.Parse()
	if sub := flag.Arg(0); sub != "" && !registered(sub) {
		if found, code := cmd.RunExtension(sub, flag.Args()[1:]); found {
			os.Exit(code)
		}
	}
	os.Exit(int(commander.Execute(context.Background())))
}

func registered(name string) bool {
	switch name {
	case "help", "flags":
		return true
	}
	for _, c := range cmd.Commands {
		if c.Command.Name() == name {
			return true
		}
	}
	return false
}

// completion describes the command line for shell completion. It is a no-op
// unless the shell asks for completions.
func completion(name string) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: flagPredictors(flag.CommandLine),
	}
	for _, c := range cmd.Commands {
		fs := flag.NewFlagSet(c.Command.Name(), flag.ContinueOnError)
		c.Command.SetFlags(fs)
		sub := &complete.Command{Flags: flagPredictors(fs)}
		switch c.Command.Name() {
		case "import":
			sub.Args = predict.Files("*.csv")
		case "report":
			sub.Flags["pdf"] = predict.Files("*.pdf")
			sub.Flags["html"] = predict.Files("*.html")
		case "topic":
			sub.Args = predict.Set(topicNames())
		case "convert", "format":
			sub.Args = predict.Set(currencyCodes())
		}
		root.Sub[c.Command.Name()] = sub
	}
	root.Sub["help"] = &complete.Command{Args: predict.Set(names())}
	return root
}

func flagPredictors(fs *flag.FlagSet) map[string]complete.Predictor {
	flags := map[string]complete.Predictor{}
	fs.VisitAll(func(f *flag.Flag) {
		if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			flags[f.Name] = predict.Nothing
			return
		}
		flags[f.Name] = predict.Something
	})
	if fs.Lookup("env") != nil {
		flags["env"] = predict.Files("*")
	}
	return flags
}

func names() []string {
	var n []string
	for _, c := range cmd.Commands {
		n = append(n, c.Command.Name())
	}
	return n
}

func currencyCodes() []string {
	codes := make([]string, 0, len(currency.Supported))
	for _, c := range currency.Supported {
		codes = append(codes, c.Code)
	}
	return codes
}

func topicNames() []string {
	names, _ := docs.Topics()
	return append(names, "*")
}
