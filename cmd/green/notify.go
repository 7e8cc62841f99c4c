package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/covercash2/green/pkg/config"
	"github.com/covercash2/green/pkg/ultron"
)

var notifyConfig string

var notifyCmd = &cobra.Command{
	Use:   "notify <message...>",
	Short: "Send a message to Ultron",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNotify,
}

func init() {
	notifyCmd.Flags().StringVar(&notifyConfig, "config", config.DefaultPath, "Path to the config file")
}

func runNotify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(notifyConfig)
	if err != nil {
		return err
	}
	timeout, err := cfg.UltronTimeout()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client := ultron.NewClient(ultron.Config{
		URL:     cfg.Ultron.URL,
		Channel: cfg.Ultron.Channel,
		User:    cfg.Ultron.User,
		Timeout: timeout,
	}, nil)
	if err := client.Send(ctx, strings.Join(args, " ")); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	return nil
}
