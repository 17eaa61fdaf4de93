package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "clipforge",
		Short:        "Turn long videos into scheduled short-form clips",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	ingest := &cobra.Command{
		Use:   "ingest <url-or-path>",
		Short: "Register a video and queue it for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0])
		},
	}
	ingest.Flags().Bool("local", false, "Treat the argument as a local file path")

	detectCmd := &cobra.Command{
		Use:   "detect <source-id>",
		Short: "Find clip-worthy moments in a transcribed source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args[0])
		},
	}
	detectCmd.Flags().Int("moments", 10, "Maximum moments to detect")

	info := &cobra.Command{
		Use:   "info <url>",
		Short: "Show video metadata without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd, args[0])
		},
	}

	worker := &cobra.Command{
		Use:   "worker",
		Short: "Run the dispatcher loop until interrupted",
		RunE:  runWorker,
	}

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Plan the next day of post jobs",
		RunE:  runSchedule,
	}

	status := &cobra.Command{
		Use:   "status <source-id>",
		Short: "Show moment counts by state for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args[0])
		},
	}

	accounts := &cobra.Command{
		Use:   "accounts",
		Short: "Manage posting accounts",
	}
	accountsAdd := &cobra.Command{
		Use:   "add <platform> <username> <credentials.json>",
		Short: "Store an account with sealed credentials",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountsAdd(cmd, args[0], args[1], args[2])
		},
	}
	accountsKey := &cobra.Command{
		Use:   "genkey",
		Short: "Generate a fresh credential encryption key",
		RunE:  runGenKey,
	}
	accounts.AddCommand(accountsAdd, accountsKey)

	root.AddCommand(ingest, info, detectCmd, worker, scheduleCmd, status, accounts)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
