package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/fraudfusion/internal/app"
	"github.com/xela07ax/fraudfusion/internal/engine"
)

var scoreFlags struct {
	file    string
	verbose bool
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a JSON record offline through the gateway pipeline",
	RunE:  runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.StringVarP(&scoreFlags.file, "file", "f", "-", "record JSON file (- for stdin)")
	f.BoolVarP(&scoreFlags.verbose, "verbose", "v", false, "also print feature coverage per agent")
}

func runScore(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if scoreFlags.file != "-" {
		fh, err := os.Open(scoreFlags.file)
		if err != nil {
			return fmt.Errorf("open record: %w", err)
		}
		defer fh.Close()
		in = fh
	}
	// Тот же лимит, что у /predict: большой файл дает ошибку, а не обрезанный JSON
	record, err := engine.DecodeRecord(http.MaxBytesReader(nil, io.NopCloser(in), engine.MaxBodyBytes))
	if err != nil {
		return err
	}

	rdb := app.NewRedis(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}
	// Без аудита: офлайн-оценка не должна попадать в журнал
	scoring, err := app.BuildScoring(cmd.Context(), cfg, rdb, nil, nil, zap.NewNop())
	if err != nil {
		return err
	}

	res, err := scoring.Scorer.Score(cmd.Context(), record)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if !scoreFlags.verbose {
		return enc.Encode(res)
	}
	return enc.Encode(struct {
		Agent1Score float64 `json:"agent1_score"`
		Agent2Score float64 `json:"agent2_score"`
		FinalScore  float64 `json:"final_fraud_score"`
		Fraudulent  bool    `json:"fraudulent"`
		Threshold   float64 `json:"threshold"`
		Coverage1   float64 `json:"coverage1"`
		Coverage2   float64 `json:"coverage2"`
	}{res.Agent1Score, res.Agent2Score, res.FinalScore, res.Fraudulent, res.Threshold, res.Coverage1, res.Coverage2})
}
