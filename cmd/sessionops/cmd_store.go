package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var storeDomain string

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect the capture database",
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored cookies",
	RunE:  runStoreList,
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete [id...]",
	Short: "Delete stored cookies by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStoreDelete,
}

func init() {
	storeListCmd.Flags().StringVarP(&storeDomain, "domain", "d", "", "Only cookies whose domain contains this")
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeDeleteCmd)
}

func runStoreList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	records, err := s.List(ctx, storeDomain)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), records)
	}
	renderRecords(cmd.OutOrStdout(), records)
	return nil
}

func runStoreDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.Delete(ctx, args...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d\n", okStyle.Render("deleted"), n, len(args))
	return nil
}
