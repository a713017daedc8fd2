package main

import (
	"fmt"
	"io"
	"os"

	"github.com/example/go-dspstream/internal/doctor"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Verify the structure of BRSTM, BCSTM or BCWAV files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if _, err := requireConfig(); err != nil {
				return err
			}
			return checkFiles(args, os.Stdout)
		},
	}

	return cmd
}

func checkFiles(paths []string, w io.Writer) error {
	failed := 0
	for _, p := range paths {
		_, _ = fmt.Fprintf(w, "%s:\n", p)
		buf, err := os.ReadFile(p)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(w, "%s read: %v\n", doctor.FailMark, err)
			continue
		}
		if res := doctor.Check(buf, w); res.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed checks", failed, len(paths))
	}
	return nil
}
