package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/memoryengine/memoryengine/internal/mentalmodel"
)

var (
	modelSourceQuery string
	modelTags        []string
	modelAutoRefresh bool
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage mental models",
}

var modelCreateCmd = &cobra.Command{
	Use:   "create <bank> <name>",
	Short: "Create a mental model from a recall query",
	Long: `A mental model is a named summary regenerated by replaying a recall
query, not edited by hand.

Examples:
  memoryengine model create work "staging status" --source-query "staging environment" --auto-refresh`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runModelCreate(args[0], args[1])
	},
}

var modelRefreshCmd = &cobra.Command{
	Use:   "refresh <model-id>",
	Short: "Re-run a mental model's source query and regenerate its content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runModelRefresh(args[0])
	},
}

var modelListCmd = &cobra.Command{
	Use:   "list <bank>",
	Short: "List mental models in a bank",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runModelList(args[0])
	},
}

func init() {
	rootCmd.AddCommand(modelCmd)
	modelCmd.AddCommand(modelCreateCmd)
	modelCmd.AddCommand(modelRefreshCmd)
	modelCmd.AddCommand(modelListCmd)

	modelCreateCmd.Flags().StringVar(&modelSourceQuery, "source-query", "", "recall query this model replays (required)")
	modelCreateCmd.Flags().StringSliceVar(&modelTags, "tags", nil, "tags")
	modelCreateCmd.Flags().BoolVar(&modelAutoRefresh, "auto-refresh", false, "include this model in consolidation's refresh fan-out")
}

func runModelCreate(bankName, name string) {
	if modelSourceQuery == "" {
		fmt.Fprintln(os.Stderr, "Error: --source-query is required")
		os.Exit(1)
	}
	a := mustApp()
	bank, err := a.DB.GetBankByName(bankName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	m, err := a.MentalModels.Create(context.Background(), mentalmodel.CreateOptions{
		BankID:      bank.ID,
		Name:        name,
		SourceQuery: modelSourceQuery,
		Tags:        modelTags,
		AutoRefresh: modelAutoRefresh,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating model: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created mental model %s (%s)\n", m.ID, m.Name)
	if m.Content != nil {
		fmt.Printf("  %s\n", *m.Content)
	}
}

func runModelRefresh(modelID string) {
	a := mustApp()
	if err := a.MentalModels.Refresh(context.Background(), modelID); err != nil {
		fmt.Fprintf(os.Stderr, "Error refreshing model: %v\n", err)
		os.Exit(1)
	}
	m, err := a.DB.GetMentalModelByID(modelID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Refreshed %s\n", m.ID)
	if m.Content != nil {
		fmt.Printf("  %s\n", *m.Content)
	}
}

func runModelList(bankName string) {
	a := mustApp()
	bank, err := a.DB.GetBankByName(bankName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	models, err := a.DB.ListMentalModelsByBank(bank.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(models) == 0 {
		fmt.Println("No mental models yet.")
		return
	}
	for _, m := range models {
		staleMark := ""
		if m.LastRefreshedAt == nil || m.IsStale(time.Now().UnixMilli()) {
			staleMark = " (stale)"
		}
		fmt.Printf("%s  %-20s %s%s\n", m.ID, m.Name, m.SourceQuery, staleMark)
	}
}
