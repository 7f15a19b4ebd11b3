package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var refreshTimeout time.Duration

var refreshCmd = &cobra.Command{
	Use:   "refresh-problems",
	Short: "Refresh the problem cache from solved.ac once",
	RunE:  runRefresh,
}

func init() {
	refreshCmd.Flags().DurationVar(&refreshTimeout, "timeout", 2*time.Minute, "refresh deadline")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.problems.Refresh(ctx)
	if err != nil {
		return err
	}

	total, err := a.problems.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("upserted %d problems (%d cached)\n", n, total)
	return nil
}
