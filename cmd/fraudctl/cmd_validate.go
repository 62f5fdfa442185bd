package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudfusion/internal/app"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load both agents from config and print their shape",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rdb := app.NewRedis(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	scoring, err := app.BuildScoring(cmd.Context(), cfg, rdb, nil, nil, zap.NewNop())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, a := range scoring.Scorer.Bundle().Describe() {
		fmt.Fprintf(out, "%s:\n", a.Name)
		fmt.Fprintf(out, "  kind:     %s (%s)\n", a.Kind, a.Source)
		fmt.Fprintf(out, "  classes:  %s (fraud=%s)\n", strings.Join(a.Classes, ", "), a.FraudLabel)
		fmt.Fprintf(out, "  features: %d [%s]\n", len(a.Features), strings.Join(a.Features, ", "))
	}
	fmt.Fprintf(out, "fusion: %s, threshold %v\n", cfg.Fusion.Rule, cfg.Fusion.Threshold)
	return nil
}
