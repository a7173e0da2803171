package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/memoryengine/memoryengine/internal/asyncop"
	"github.com/memoryengine/memoryengine/internal/storage"
)

var opsListBank string
var opsListType string
var opsListStatus string
var opsListLimit int
var opsListOffset int

var operationsCmd = &cobra.Command{
	Use:   "operations",
	Short: "Inspect background async operations",
}

var operationsStatusCmd = &cobra.Command{
	Use:   "status <operation-id>",
	Short: "Show one async operation's status",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runOperationsStatus(args[0])
	},
}

var operationsCancelCmd = &cobra.Command{
	Use:   "cancel <operation-id>",
	Short: "Request cancellation of a running async operation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runOperationsCancel(args[0])
	},
}

var operationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List async operations for a bank",
	Run: func(cmd *cobra.Command, args []string) {
		runOperationsList()
	},
}

func init() {
	rootCmd.AddCommand(operationsCmd)
	operationsCmd.AddCommand(operationsStatusCmd)
	operationsCmd.AddCommand(operationsCancelCmd)
	operationsCmd.AddCommand(operationsListCmd)

	operationsListCmd.Flags().StringVarP(&opsListBank, "bank", "b", "", "bank name (required)")
	operationsListCmd.Flags().StringVar(&opsListType, "type", "", "filter by operation type")
	operationsListCmd.Flags().StringVar(&opsListStatus, "status", "", "filter by status")
	operationsListCmd.Flags().IntVar(&opsListLimit, "limit", 0, "max results")
	operationsListCmd.Flags().IntVar(&opsListOffset, "offset", 0, "result offset")
}

func runOperationsStatus(id string) {
	a := mustApp()
	op, err := a.AsyncOps.GetStatus(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printOperation(op)
}

func runOperationsCancel(id string) {
	a := mustApp()
	if err := a.AsyncOps.Cancel(id); err != nil {
		fmt.Fprintf(os.Stderr, "Error cancelling: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Cancellation requested for %s\n", id)
}

func runOperationsList() {
	if opsListBank == "" {
		fmt.Fprintln(os.Stderr, "Error: --bank is required")
		os.Exit(1)
	}
	a := mustApp()
	bank, err := a.DB.GetBankByName(opsListBank)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ops, err := a.AsyncOps.List(bank.ID, asyncop.ListFilter{
		OperationType: opsListType,
		Status:        opsListStatus,
		Limit:         opsListLimit,
		Offset:        opsListOffset,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(ops) == 0 {
		fmt.Println("No operations found.")
		return
	}
	for _, op := range ops {
		fmt.Printf("%s  %-10s %-12s %s\n", op.OperationID, op.OperationType, op.Status,
			time.UnixMilli(op.UpdatedAt).Format(time.RFC3339))
	}
}

func printOperation(op *storage.AsyncOperation) {
	fmt.Printf("id:      %s\n", op.OperationID)
	fmt.Printf("bank:    %s\n", op.BankID)
	fmt.Printf("type:    %s\n", op.OperationType)
	fmt.Printf("status:  %s\n", op.Status)
	if op.ErrorMessage != "" {
		fmt.Printf("error:   %s\n", op.ErrorMessage)
	}
	for k, v := range op.ResultMetadata {
		fmt.Printf("result.%s: %v\n", k, v)
	}
}
