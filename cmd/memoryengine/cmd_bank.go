package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/memoryengine/memoryengine/internal/hooks"
)

var (
	bankMission    string
	bankSkepticism int
	bankLiteralism int
	bankEmpathy    int
)

var bankCmd = &cobra.Command{
	Use:   "bank",
	Short: "Manage memory banks",
}

var bankCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new bank",
	Long: `Create a new memory bank, the isolation boundary for everything
else this tool stores.

Examples:
  memoryengine bank create work --mission "track project decisions"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runBankCreate(args[0])
	},
}

var bankListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all banks",
	Run: func(cmd *cobra.Command, args []string) {
		runBankList()
	},
}

var bankDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a bank and everything in it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runBankDelete(args[0])
	},
}

func init() {
	rootCmd.AddCommand(bankCmd)
	bankCmd.AddCommand(bankCreateCmd)
	bankCmd.AddCommand(bankListCmd)
	bankCmd.AddCommand(bankDeleteCmd)

	bankCreateCmd.Flags().StringVar(&bankMission, "mission", "", "bank's mission statement")
	bankCreateCmd.Flags().IntVar(&bankSkepticism, "skepticism", 0, "disposition: skepticism (1-5, 0 = use default)")
	bankCreateCmd.Flags().IntVar(&bankLiteralism, "literalism", 0, "disposition: literalism (1-5, 0 = use default)")
	bankCreateCmd.Flags().IntVar(&bankEmpathy, "empathy", 0, "disposition: empathy (1-5, 0 = use default)")
}

func runBankCreate(name string) {
	a := mustApp()
	ctx := context.Background()

	if err := a.Hooks.RunAuthorize(ctx, hooks.OpCreateBank, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	b, err := a.CreateBank(name, "", bankMission)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating bank: %v\n", err)
		os.Exit(1)
	}

	if bankSkepticism != 0 || bankLiteralism != 0 || bankEmpathy != 0 {
		if bankSkepticism != 0 {
			b.Disposition.Skepticism = bankSkepticism
		}
		if bankLiteralism != 0 {
			b.Disposition.Literalism = bankLiteralism
		}
		if bankEmpathy != 0 {
			b.Disposition.Empathy = bankEmpathy
		}
		b.UpdatedAt = time.Now().UnixMilli()
		if err := a.DB.UpdateBank(b); err != nil {
			fmt.Fprintf(os.Stderr, "Error applying disposition: %v\n", err)
			os.Exit(1)
		}
	}

	a.Hooks.RunOnComplete(ctx, hooks.OpCreateBank, b.ID, b, nil)

	fmt.Printf("Created bank %q (id %s)\n", b.Name, b.ID)
	if b.Mission != "" {
		fmt.Printf("  mission: %s\n", b.Mission)
	}
	fmt.Printf("  disposition: skepticism=%d literalism=%d empathy=%d\n",
		b.Disposition.Skepticism, b.Disposition.Literalism, b.Disposition.Empathy)
}

func runBankList() {
	a := mustApp()
	banks, err := a.DB.ListBanks()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing banks: %v\n", err)
		os.Exit(1)
	}
	if len(banks) == 0 {
		fmt.Println("No banks yet. Create one with: memoryengine bank create <name>")
		return
	}
	for _, b := range banks {
		mission := b.Mission
		if mission == "" {
			mission = "(no mission set)"
		}
		fmt.Printf("%-20s %s  %s\n", b.Name, b.ID, mission)
	}
}

func runBankDelete(name string) {
	a := mustApp()
	ctx := context.Background()

	b, err := a.DB.GetBankByName(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := a.Hooks.RunAuthorize(ctx, hooks.OpDeleteBank, b.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, ns := range []string{"memory", "entity", "mental-model", "visual"} {
		if err := a.DB.DeleteVectorsForBank(ns, b.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting %s vectors: %v\n", ns, err)
			os.Exit(1)
		}
	}
	if err := a.DB.DeleteBankByID(b.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting bank: %v\n", err)
		os.Exit(1)
	}
	a.Working.Clear(b.ID)
	a.Hooks.RunOnComplete(ctx, hooks.OpDeleteBank, b.ID, nil, nil)

	fmt.Printf("Deleted bank %q\n", name)
}
