package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/memoryengine/memoryengine/internal/hooks"
	"github.com/memoryengine/memoryengine/internal/recall"
)

var (
	recallLimit       int
	recallTokenBudget int
	recallFactType    string
	recallExcludeCons bool
	recallMinConf     float64
	recallAsOf        string
	recallMethods     []string
	recallTags        []string
	recallTagsMatch   string
	recallSeeds       []string
	recallMaxEntFreq  int
)

var whenParser = func() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	return p
}()

var recallCmd = &cobra.Command{
	Use:   "recall <bank> <query>",
	Short: "Recall memories relevant to a query",
	Long: `Run the recall engine: semantic, fulltext, graph and temporal
retrieval fused by reciprocal rank fusion.

Examples:
  memoryengine recall work "where is staging"
  memoryengine recall work "roadmap decisions" --fact-type observation --limit 5`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runRecall(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(recallCmd)

	recallCmd.Flags().IntVarP(&recallLimit, "limit", "l", 20, "maximum results")
	recallCmd.Flags().IntVar(&recallTokenBudget, "token-budget", recall.DefaultTokenBudget, "approximate token budget for returned content")
	recallCmd.Flags().StringVar(&recallFactType, "fact-type", "", "filter by fact type")
	recallCmd.Flags().BoolVar(&recallExcludeCons, "exclude-consolidated", false, "exclude raw facts already folded into an observation")
	recallCmd.Flags().Float64Var(&recallMinConf, "min-confidence", 0, "minimum confidence")
	recallCmd.Flags().StringVar(&recallAsOf, "as-of", "", "only units valid at this natural-language time, e.g. \"last tuesday\"")
	recallCmd.Flags().StringSliceVar(&recallMethods, "methods", nil, "retrievers to run: semantic,fulltext,graph,temporal (default all)")
	recallCmd.Flags().StringSliceVar(&recallTags, "tags", nil, "filter by tags")
	recallCmd.Flags().StringVar(&recallTagsMatch, "tags-match", "any", "tag match mode: any, all, or all_strict")
	recallCmd.Flags().StringSliceVar(&recallSeeds, "seed", nil, "seed memory IDs for the graph retriever")
	recallCmd.Flags().IntVar(&recallMaxEntFreq, "max-entity-frequency", 0, "drop hub entities above this bank-wide mention count (0 disables)")
}

// parseAsOf turns a natural-language time expression into a millisecond
// timestamp, or returns nil if empty/unparseable.
func parseAsOf(expr string) *int64 {
	if expr == "" {
		return nil
	}
	r, err := whenParser.Parse(expr, time.Now())
	if err != nil || r == nil {
		fmt.Fprintf(os.Stderr, "Warning: could not parse --as-of %q, ignoring\n", expr)
		return nil
	}
	ms := r.Time.UnixMilli()
	return &ms
}

func runRecall(bankName, query string) {
	a := mustApp()
	ctx := context.Background()

	bank, err := a.DB.GetBankByName(bankName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := a.Hooks.RunAuthorize(ctx, hooks.OpRecall, bank.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	hits, err := a.Recall.Recall(ctx, recall.Options{
		BankID:              bank.ID,
		Query:               query,
		Methods:             recallMethods,
		Limit:               recallLimit,
		TokenBudget:         recallTokenBudget,
		SeedMemoryIDs:       recallSeeds,
		MaxEntityFrequency:  recallMaxEntFreq,
		Filters: recall.Filters{
			FactType:            recallFactType,
			Tags:                recallTags,
			TagsMatch:           recallTagsMatch,
			ExcludeConsolidated: recallExcludeCons,
			MinConfidence:       recallMinConf,
			ValidAtMillis:       parseAsOf(recallAsOf),
		},
	})
	a.Hooks.RunOnComplete(ctx, hooks.OpRecall, bank.ID, hits, err)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error recalling: %v\n", err)
		os.Exit(1)
	}

	if len(hits) == 0 {
		fmt.Println("No matching memories.")
		return
	}

	var ids []string
	for i, h := range hits {
		fmt.Printf("%d. [%.3f] %s\n", i+1, h.FusedScore, h.Unit.Content)
		fmt.Printf("   id=%s type=%s confidence=%.2f\n", h.Unit.ID, h.Unit.FactType, h.Unit.Confidence)
		if len(h.EntityNames) > 0 {
			fmt.Printf("   entities: %s\n", strings.Join(h.EntityNames, ", "))
		}
		ids = append(ids, h.Unit.ID)
	}
	a.Working.Record(bank.ID, ids)
}
