package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/memoryengine/memoryengine/internal/hooks"
	"github.com/memoryengine/memoryengine/internal/retain"
	"github.com/memoryengine/memoryengine/internal/storage"
)

var (
	rememberFactType    string
	rememberTags        []string
	rememberDocument    string
	rememberSkipExt     bool
	rememberMode        string
	rememberGuidelines  string
	rememberDedupThresh float64
	rememberConsolidate bool

	listBank   string
	listLimit  int
	listOffset int
	listType   string
)

var rememberCmd = &cobra.Command{
	Use:   "remember <bank> <content>",
	Short: "Retain new content into a bank",
	Long: `Run content through the retain pipeline: deduplication, entity
resolution and link creation against an existing bank.

Examples:
  memoryengine remember work "the staging DB moved to us-west-2"
  memoryengine remember work "met with Alice about the Q3 roadmap" --tags meeting,roadmap`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runRemember(args[0], args[1])
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch one memory unit by id",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runGet(args[0])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List memory units in a bank",
	Run: func(cmd *cobra.Command, args []string) {
		runList()
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Delete a memory unit",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runForget(args[0])
	},
}

func init() {
	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(forgetCmd)

	rememberCmd.Flags().StringVar(&rememberFactType, "fact-type", "", "fact type override (skips LLM extraction type inference)")
	rememberCmd.Flags().StringSliceVarP(&rememberTags, "tags", "t", nil, "tags (comma-separated)")
	rememberCmd.Flags().StringVar(&rememberDocument, "document-id", "", "origin document id")
	rememberCmd.Flags().BoolVar(&rememberSkipExt, "skip-extraction", false, "store content as one unit, skipping LLM fact decomposition")
	rememberCmd.Flags().StringVar(&rememberMode, "mode", "", "extraction mode hint passed to the LLM client (e.g. strict, liberal)")
	rememberCmd.Flags().StringVar(&rememberGuidelines, "guidelines", "", "bank-specific guidance appended to the extraction prompt")
	rememberCmd.Flags().Float64Var(&rememberDedupThresh, "dedup-threshold", 0, "override the default dedup similarity threshold (0 = use default)")
	rememberCmd.Flags().BoolVar(&rememberConsolidate, "consolidate", false, "run a consolidation pass over the bank after retaining")

	listCmd.Flags().StringVarP(&listBank, "bank", "b", "", "bank name (required)")
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 50, "maximum results")
	listCmd.Flags().IntVarP(&listOffset, "offset", "o", 0, "pagination offset")
	listCmd.Flags().StringVar(&listType, "fact-type", "", "filter by fact type")
}

func runRemember(bankName, content string) {
	a := mustApp()
	ctx := context.Background()

	bank, err := a.DB.GetBankByName(bankName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := a.Hooks.RunAuthorize(ctx, hooks.OpRetain, bank.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := a.Hooks.RunValidate(ctx, hooks.OpRetain, content); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var docID *string
	if rememberDocument != "" {
		docID = &rememberDocument
	}

	results, summary, err := a.Retain(ctx, retain.Options{
		BankID:           bank.ID,
		Content:          content,
		FactType:         rememberFactType,
		DocumentID:       docID,
		Tags:             rememberTags,
		SkipExtraction:   rememberSkipExt,
		Mode:             rememberMode,
		CustomGuidelines: rememberGuidelines,
		DedupThreshold:   rememberDedupThresh,
		Consolidate:      rememberConsolidate,
	})
	a.Hooks.RunOnComplete(ctx, hooks.OpRetain, bank.ID, results, err)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error retaining content: %v\n", err)
		os.Exit(1)
	}

	for _, r := range results {
		if r.Deduped {
			fmt.Printf("Duplicate of existing memory %s, confidence bumped\n", r.Duplicate.ID)
			continue
		}
		fmt.Printf("Stored memory %s (%s)\n", r.Unit.ID, r.Unit.FactType)
		fmt.Printf("  %s\n", r.Unit.Content)
		if len(r.EntityIDs) > 0 {
			fmt.Printf("  entities: %d, links: %d\n", len(r.EntityIDs), r.LinksMade)
		}
	}
	if summary != nil {
		fmt.Printf("Consolidation: created %d, merged %d, updated %d, skipped %d\n", summary.Created, summary.Merged, summary.Updated, summary.Skipped)
	}

	var ids []string
	for _, r := range results {
		ids = append(ids, r.Unit.ID)
	}
	a.Working.Record(bank.ID, ids)
}

func runGet(id string) {
	a := mustApp()
	unit, err := a.DB.GetMemoryUnitByID(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ID:         %s\n", unit.ID)
	fmt.Printf("Bank:       %s\n", unit.BankID)
	fmt.Printf("Fact type:  %s\n", unit.FactType)
	fmt.Printf("Confidence: %.2f\n", unit.Confidence)
	fmt.Printf("Content:    %s\n", unit.Content)
	if len(unit.Tags) > 0 {
		fmt.Printf("Tags:       %s\n", strings.Join(unit.Tags, ", "))
	}
	fmt.Printf("Created:    %s\n", time.UnixMilli(unit.CreatedAt).Format(time.RFC3339))
	if unit.ConsolidatedAt != nil {
		fmt.Printf("Consolidated: %s\n", time.UnixMilli(*unit.ConsolidatedAt).Format(time.RFC3339))
	}

	entityIDs, err := a.DB.EntityIDsForMemory(unit.ID)
	if err == nil && len(entityIDs) > 0 {
		fmt.Printf("Entities:   %s\n", strings.Join(entityIDs, ", "))
	}
}

func runList() {
	if listBank == "" {
		fmt.Fprintln(os.Stderr, "Error: --bank is required")
		os.Exit(1)
	}
	a := mustApp()
	bank, err := a.DB.GetBankByName(listBank)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	units, err := a.DB.ListMemoryUnitsByBank(bank.ID, storage.MemoryUnitFilter{
		FactType: listType,
		Limit:    listLimit,
		Offset:   listOffset,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(units) == 0 {
		fmt.Println("No memories found.")
		return
	}
	for _, u := range units {
		fmt.Printf("%s  [%s]  %s\n", u.ID, u.FactType, truncate(u.Content, 80))
	}
}

func runForget(id string) {
	a := mustApp()
	unit, err := a.DB.GetMemoryUnitByID(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := a.DB.DeleteMemoryUnitByID(id, a.MemoryVectors); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting memory: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted memory %s from bank %s\n", unit.ID, unit.BankID)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
