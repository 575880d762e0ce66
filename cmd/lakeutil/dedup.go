package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	lakeutil "github.com/BrobridgeOrg/go-lakeutil"
	"github.com/BrobridgeOrg/go-lakeutil/dedup"
)

func newDedupCmd(flags *globalFlags) *cobra.Command {
	dedupCmd := &cobra.Command{
		Use:   "dedup",
		Short: "Remove duplicate rows",
	}
	dedupCmd.AddCommand(newDedupAllCmd(flags), newDedupKeepOneCmd(flags))
	return dedupCmd
}

func newDedupAllCmd(flags *globalFlags) *cobra.Command {
	var key []string

	cmd := &cobra.Command{
		Use:   "all <namespace.table>",
		Short: "Delete every row whose key occurs more than once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(cmd, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.RemoveAllDuplicates(cmd.Context(), args[0], key...); err != nil {
				return err
			}
			return printVersion(cmd, client, args[0])
		},
	}
	cmd.Flags().StringSliceVar(&key, "key", nil, "Key columns (comma separated)")
	cmd.MarkFlagRequired("key")
	return cmd
}

func newDedupKeepOneCmd(flags *globalFlags) *cobra.Command {
	var (
		primaryKey string
		key        []string
	)

	cmd := &cobra.Command{
		Use:   "keep-one <namespace.table>",
		Short: "Keep the row with the smallest primary key of each key group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient(cmd, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.RemoveDuplicatesKeepOne(cmd.Context(), args[0], primaryKey, key...); err != nil {
				return err
			}
			return printVersion(cmd, client, args[0])
		},
	}
	cmd.Flags().StringVar(&primaryKey, "primary-key", "", "Primary key column")
	cmd.Flags().StringSliceVar(&key, "key", nil, "Extra key columns (comma separated)")
	cmd.MarkFlagRequired("primary-key")
	return cmd
}

func printVersion(cmd *cobra.Command, client *lakeutil.Client, name string) error {
	v, err := client.LatestVersion(cmd.Context(), name)
	if errors.Is(err, dedup.ErrNotFound) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s has no commits\n", name)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s at version %d\n", name, v)
	return nil
}
