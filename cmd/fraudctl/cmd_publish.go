package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xela07ax/fraudfusion/internal/app"
	"github.com/xela07ax/fraudfusion/internal/artifacts"
	"github.com/xela07ax/fraudfusion/internal/domain"
	"github.com/xela07ax/fraudfusion/internal/infra"
)

var publishFlags struct {
	agent  string
	model  string
	schema string
	notify bool
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload an agent's model and feature schema into Redis",
	RunE:  runPublish,
}

func init() {
	f := publishCmd.Flags()
	f.StringVar(&publishFlags.agent, "agent", "", "agent name: transaction or behavior (required)")
	f.StringVar(&publishFlags.model, "model", "", "model artifact JSON (required)")
	f.StringVar(&publishFlags.schema, "schema", "", "feature schema JSON (required)")
	f.BoolVar(&publishFlags.notify, "notify", false, "signal running gateways to reload artifacts")

	_ = publishCmd.MarkFlagRequired("agent")
	_ = publishCmd.MarkFlagRequired("model")
	_ = publishCmd.MarkFlagRequired("schema")
}

func runPublish(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var keys infra.AgentConfig
	switch publishFlags.agent {
	case domain.AgentTransaction:
		keys = cfg.Agents.Transaction
	case domain.AgentBehavior:
		keys = cfg.Agents.Behavior
	default:
		return fmt.Errorf("unknown agent %q: want %s or %s", publishFlags.agent, domain.AgentTransaction, domain.AgentBehavior)
	}

	rdb := app.NewRedis(cfg.Redis)
	if rdb == nil {
		return errors.New("publish requires redis.addr (or REDIS_ADDR)")
	}
	defer rdb.Close()

	rawModel, err := os.ReadFile(publishFlags.model)
	if err != nil {
		return fmt.Errorf("read model: %w", err)
	}
	rawSchema, err := os.ReadFile(publishFlags.schema)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	item := artifacts.Item{
		Agent:     publishFlags.agent,
		Model:     rawModel,
		Schema:    rawSchema,
		ModelKey:  keys.ModelKey,
		SchemaKey: keys.SchemaKey,
	}
	if err := artifacts.Publish(cmd.Context(), rdb, []artifacts.Item{item}, publishFlags.notify); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "published %s artifacts to %s\n", publishFlags.agent, cfg.Redis.Addr)
	if publishFlags.notify {
		fmt.Fprintf(cmd.OutOrStdout(), "reload signal sent on %s\n", infra.RedisChanArtifactReload)
	}
	return nil
}
