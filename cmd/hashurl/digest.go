package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/sifan077/HashURL/internal/app/digest"
	"github.com/sifan077/HashURL/internal/app/service"
	"github.com/spf13/cobra"
)

func newDigestCmd() *cobra.Command {
	var algorithm string

	cmd := &cobra.Command{
		Use:   "digest [url]...",
		Short: "Print the short code each URL would receive",
		Long: `digest applies the same normalization as the shorten endpoint and prints
the resulting code, so collisions can be checked without a running server.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg := digest.Parse(algorithm)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, raw := range args {
				target := service.NormalizeURL(raw)
				fmt.Fprintf(w, "%s\t%s\t%s\n", digest.Compute(target, alg), alg, target)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "MD5", "MD5, SHA256, CRC32, ADLER32 or BASE62 (unknown values use CRC32)")

	return cmd
}

func newAlgorithmsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "algorithms",
		Short: "List supported code algorithms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDETERMINISTIC\tNOTE")
			for _, alg := range digest.All() {
				note := ""
				if alg == digest.Fallback {
					note = "fallback for unknown selectors"
				}
				fmt.Fprintf(w, "%s\t%t\t%s\n", alg, alg.Deterministic(), note)
			}
			return w.Flush()
		},
	}
}
