package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridia/attestor/internal/gate"
	"github.com/veridia/attestor/internal/model"
)

var (
	reviewAssessment string
	reviewAction     string
)

// reviewCmd represents the review command
var reviewCmd = &cobra.Command{
	Use:   "review <control-id>",
	Short: "Apply a reviewer decision to the latest finding for a control",
	Long: `Review approves or overrides the latest finding for a control.

Only findings awaiting review can be approved; auto-accepted findings can
still be overridden. Requires the postgres index backend so findings
persist across runs.

Example:
  attestor review AC-2 --assessment fy26 --action approve
  attestor review SC-7 --assessment fy26 --action override`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().StringVar(&reviewAssessment, "assessment", "", "assessment identifier (required)")
	reviewCmd.Flags().StringVar(&reviewAction, "action", "", "approve or override (required)")
	_ = reviewCmd.MarkFlagRequired("assessment")
	_ = reviewCmd.MarkFlagRequired("action")
}

func runReview(cmd *cobra.Command, args []string) error {
	controlID := args[0]

	var target model.ReviewState
	switch reviewAction {
	case "approve":
		target = model.ReviewApproved
	case "override":
		target = model.ReviewOverridden
	default:
		return fmt.Errorf("unknown action %q (supported: approve, override)", reviewAction)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Index.Backend != "postgres" {
		return fmt.Errorf("review requires the postgres backend; the memory backend does not persist findings between runs")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	findings, closeStore, err := newFindingStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	f, err := findings.Latest(ctx, controlID, reviewAssessment)
	if err != nil {
		return fmt.Errorf("finding for %s in %s: %w", controlID, reviewAssessment, err)
	}

	if err := gate.New(cfg.Gate).Transition(f, target); err != nil {
		return err
	}
	if err := findings.UpdateReview(ctx, f.ID, f.ReviewState); err != nil {
		return fmt.Errorf("persist review state: %w", err)
	}

	fmt.Printf("✓ %s v%d: %s\n", controlID, f.Version, f.ReviewState)
	return nil
}
