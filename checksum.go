package main

import (
	"fmt"
	"os"

	"github.com/minecraftim/go-oscar/lib/rvproto/ft"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func newChecksumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checksum <file>...",
		Short: "Print the OFT file transfer checksum of files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				f, err := os.Open(name)
				if err != nil {
					return oops.Wrapf(err, "open %s", name)
				}
				sum, n, err := ft.ChecksumOf(f)
				f.Close()
				if err != nil {
					return oops.Wrapf(err, "checksum %s", name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%08x  %d  %s\n", sum, n, name)
			}
			return nil
		},
	}
}
