package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"inquiry-agent/internal/apiclient"
	"inquiry-agent/internal/config"
	"inquiry-agent/internal/conversation"
)

// NewRootCommand builds the inquiry CLI. Flag defaults come from the
// environment via config.Load.
func NewRootCommand() *cobra.Command {
	var (
		apiURL   string
		calLink  string
		envFile  string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "inquiry-cli",
		Short: "Talk to the intake assistant from a terminal",
		Long: `inquiry-cli holds an intake conversation against a running API.

Answer up to three questions by text or with audio files, then leave your
name and email to get a booking link.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("api") {
				apiURL = cfg.APIURL
			}
			if !flags.Changed("cal-link") {
				calLink = cfg.CalLink
			}
			if !flags.Changed("log-level") {
				logLevel = cfg.LogLevel
			}
			logger := config.NewLogger(cmd.ErrOrStderr(), logLevel)

			client, err := apiclient.New(apiURL)
			if err != nil {
				return err
			}
			recorder := &FileRecorder{}
			ctrl, err := conversation.NewController(client,
				conversation.WithRecorder(recorder),
				conversation.WithScheduler(PrintScheduler{Out: cmd.OutOrStdout()}),
				conversation.WithCalLink(calLink),
				conversation.WithLogger(logger),
			)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return NewREPL(ctrl, recorder, cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&apiURL, "api", "a", "", "intake API endpoint (default: $API_URL)")
	cmd.Flags().StringVar(&calLink, "cal-link", "", "scheduling link path (default: $CAL_LINK)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "extra .env file to load")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (default: $LOG_LEVEL)")
	return cmd
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
