package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type flags struct {
	envFile  string
	addr     string
	db       string
	provider string
	model    string
	logLevel string
	search   string
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "fcstreamd",
		Short:         "Streaming chat service with function calling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.envFile, "env", ".env", "dotenv file to load")
	pf.StringVar(&f.db, "db", "", "sqlite database path")
	pf.StringVar(&f.provider, "provider", "", "default model provider")
	pf.StringVar(&f.model, "model", "", "default model name")
	pf.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&f.search, "search-url", "", "SearXNG endpoint for web_search")

	root.AddCommand(newServeCommand(f), newChatCommand(f))
	return root
}
