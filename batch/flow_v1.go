package batch

import (
	"fmt"
	"strings"

	"github.com/emptyOVO/mrkit-awards/mrapps"
)

const FlowVersionV1 = "v1"

// ValidateFlowConfig validates v1 flow schema and required fields.
func ValidateFlowConfig(cfg FlowConfig) error {
	cfg.withDefaults()

	if strings.TrimSpace(cfg.Version) != FlowVersionV1 {
		return fmt.Errorf("unsupported version: %q (expected %q)", cfg.Version, FlowVersionV1)
	}
	if _, err := resolveJob(cfg); err != nil {
		return err
	}
	if len(cfg.Inputs) == 0 {
		return fmt.Errorf("inputs are required")
	}
	if cfg.Sink.Config.Job != cfg.Job {
		return fmt.Errorf("sink.config.job %q does not match job %q", cfg.Sink.Config.Job, cfg.Job)
	}

	switch cfg.Sink.Type {
	case "none":
	case "mysql":
		if cfg.Sink.DB.User == "" || cfg.Sink.DB.Database == "" {
			return fmt.Errorf("sink.db.user and sink.db.database are required for mysql sink")
		}
		if strings.TrimSpace(cfg.Sink.Config.TargetTable) == "" {
			return fmt.Errorf("sink.config.targettable is required for mysql sink")
		}
	default:
		return fmt.Errorf("unsupported sink.type: %s", cfg.Sink.Type)
	}
	return nil
}

func resolveJob(cfg FlowConfig) (mrapps.Job, error) {
	if cfg.Schema != nil {
		return mrapps.LookupWithSchema(cfg.Job, *cfg.Schema)
	}
	return mrapps.Lookup(cfg.Job)
}
