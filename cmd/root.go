package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/localmail/localmail/cfg"
	"github.com/localmail/localmail/term"
)

var rootCmd = &cobra.Command{
	Use:   "localmail",
	Short: "Disposable mail server for automated tests",
	Long: "\nDisposable mail server for automated tests: every message" +
		" delivered over SMTP lands in a single in-memory inbox, readable" +
		" over IMAP or HTTP. Nothing survives a restart unless a mirror" +
		" is configured.",
	RunE: runServe,
}

func init() {
	cobra.OnInitialize(initConfig, initLog)
	flag := rootCmd.PersistentFlags()
	flag.StringVarP(&global.configFile, "config", "c", "", "configuration file")
	flag.BoolVarP(&global.quiet, "quiet", "q", false, "only display warnings and errors")
	flag.BoolVarP(&global.verbose, "verbose", "v", false, "display debugging information")
}

func initConfig() {
	if global.configFile == "" {
		config = cfg.Default()
		return
	}
	var err error
	config, err = cfg.LoadFromFile(global.configFile)
	if err != nil {
		term.Errorf("cannot open or read configuration file: %s", err)
		os.Exit(1)
	}
}

func initLog() {
	switch {
	case global.verbose:
		term.SetLevel(term.LevelDebug)
	case global.quiet:
		term.SetLevel(term.LevelWarn)
	}
}

func Execute(version, commit, date, builtBy string) {
	setApp(version, commit, date, builtBy)
	if err := rootCmd.Execute(); err != nil {
		term.Error(err)
		os.Exit(1)
	}
}
