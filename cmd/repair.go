package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/DRCRecoveryData/MXF-Repair-Tool/pkg/batch"
	"github.com/spf13/cobra"
)

var (
	referencePath string
	destination   string
	stopOnError   bool
	jsonOut       bool
	quiet         bool
)

var repairCmd = &cobra.Command{
	Use:   "repair [corrupted-folder]",
	Short: "Repair every corrupted MXF file in a folder",
	Long: `Repair copies the first 524308 bytes of the reference file over the
damaged header of every file in the folder matching *.MXF.* and writes the
result next to the folder, in a directory named "Repaired".

Example:
  mxfrepair repair -r /media/good/A001.MXF /media/card/Corrupted

  clip01.MXF.enc becomes /media/card/Repaired/clip01.MXF`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		folder := args[0]
		out := cmd.OutOrStdout()

		// 1. Validate inputs before any work starts
		splicer, err := newSplicer()
		if err != nil {
			return err
		}
		if err := batch.CheckReference(referencePath); err != nil {
			return err
		}
		files, err := batch.Discover(folder, pattern)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no files matching %q found in %s", pattern, folder)
		}

		outDir := destination
		if outDir == "" {
			outDir = batch.OutputDirFor(folder)
		}

		// 2. Run the batch in the background and print its events
		h, err := batch.Start(batch.Config{
			Reference:   referencePath,
			Files:       files,
			OutputDir:   outDir,
			StopOnError: stopOnError,
			Splicer:     splicer,
		})
		if err != nil {
			return err
		}

		text := !quiet && !jsonOut
		for ev := range h.Events() {
			switch ev.Kind {
			case batch.EventLog:
				if text {
					fmt.Fprintln(out, ev.Text)
				}
			case batch.EventProgress:
				if text {
					fmt.Fprintf(out, "Progress: %d%%\n", ev.Percent)
				}
			case batch.EventComplete:
				if !jsonOut {
					fmt.Fprintln(out, ev.Text)
				}
			}
		}

		report, runErr := h.Wait()

		// 3. Report
		if jsonOut {
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(report); err != nil {
				return err
			}
		}

		if runErr != nil {
			return runErr
		}
		if !report.OK() {
			return fmt.Errorf("%d of %d files could not be repaired", len(report.Failed), report.Total)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(repairCmd)

	repairCmd.Flags().StringVarP(&referencePath, "reference", "r", "", "Healthy MXF file whose header is copied")
	repairCmd.Flags().StringVarP(&destination, "destination", "d", "", "Directory for repaired files (default: Repaired next to the folder)")
	repairCmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "Stop at the first file that cannot be repaired")
	repairCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the batch report as JSON")
	repairCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the final summary")
	addSpliceFlags(repairCmd)

	repairCmd.MarkFlagRequired("reference")
}
