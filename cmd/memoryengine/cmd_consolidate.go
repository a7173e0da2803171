package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memoryengine/memoryengine/internal/hooks"
)

var consolidateAsync bool

var consolidateCmd = &cobra.Command{
	Use:   "consolidate <bank>",
	Short: "Run the consolidation engine over a bank's unconsolidated facts",
	Long: `Group related raw facts, reconcile each group into an observation
(create/update/merge/skip), then refresh the auto-refreshing mental models
whose tags fall in the consolidated batch's scope.

Examples:
  memoryengine consolidate work
  memoryengine consolidate work --async`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runConsolidate(args[0])
	},
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
	consolidateCmd.Flags().BoolVar(&consolidateAsync, "async", false, "submit as a background job instead of blocking")
}

func runConsolidate(bankName string) {
	a := mustApp()
	ctx := context.Background()

	bank, err := a.DB.GetBankByName(bankName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := a.Hooks.RunAuthorize(ctx, hooks.OpConsolidate, bank.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if consolidateAsync {
		result, err := a.AsyncOps.Submit(ctx, bank.ID, "consolidation", func(jobCtx context.Context) (map[string]any, error) {
			summary, err := a.Consolidate.ConsolidateBank(jobCtx, bank.ID)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"groups_considered": summary.GroupsConsidered,
				"created":           summary.Created,
				"updated":           summary.Updated,
				"merged":            summary.Merged,
				"skipped":           summary.Skipped,
			}, nil
		}, nil, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error submitting consolidation: %v\n", err)
			os.Exit(1)
		}
		if result.Deduplicated {
			fmt.Printf("Consolidation already running as operation %s\n", result.OperationID)
		} else {
			fmt.Printf("Submitted consolidation as operation %s\n", result.OperationID)
		}
		fmt.Printf("Check status with: memoryengine operations status %s\n", result.OperationID)
		return
	}

	summary, err := a.Consolidate.ConsolidateBank(ctx, bank.ID)
	a.Hooks.RunOnComplete(ctx, hooks.OpConsolidate, bank.ID, summary, err)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error consolidating: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Groups considered: %d\n", summary.GroupsConsidered)
	fmt.Printf("Created: %d  Updated: %d  Merged: %d  Skipped: %d\n",
		summary.Created, summary.Updated, summary.Merged, summary.Skipped)
	for _, e := range summary.RefreshErrors {
		fmt.Printf("mental model refresh warning: %v\n", e)
	}
}
