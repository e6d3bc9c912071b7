package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var snapshotPoll bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <meetingId>",
	Short: "Print a meeting snapshot as JSON",
	Long: `Print the status, transcript, subtitle cues and chunk list of a meeting.
With --poll the meeting's unfinished recognition jobs are checked first.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotPoll, "poll", false, "poll unfinished chunks before printing")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	meetingID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || meetingID <= 0 {
		return fmt.Errorf("invalid meeting id %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	timeout := time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := wire(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.service.Snapshot(ctx, meetingID, snapshotPoll)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
