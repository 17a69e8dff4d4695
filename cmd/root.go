package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/DRCRecoveryData/MXF-Repair-Tool/internal/logger"
	"github.com/DRCRecoveryData/MXF-Repair-Tool/pkg/batch"
	"github.com/DRCRecoveryData/MXF-Repair-Tool/pkg/splice"
	"github.com/spf13/cobra"
)

var (
	logEnabled bool
	logDir     string
	debug      bool

	// Splice settings shared by repair and interactive.
	prefixLen  int64
	outputExt  string
	allowShort bool
	pattern    string
)

var rootCmd = &cobra.Command{
	Use:   "mxfrepair",
	Short: "Repair corrupted MXF files using a healthy reference file",
	Long: `MXF Repair Tool: replaces the damaged metadata header of corrupted MXF
files with the header of a known-good reference file recorded on the same
device, writing the repaired copies to a "Repaired" folder.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		if err := logger.Init(logger.Options{
			Enabled: logEnabled || debug,
			LogDir:  logDir,
			Level:   level,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to init logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}

// addSpliceFlags registers the splice settings on c.
func addSpliceFlags(c *cobra.Command) {
	c.Flags().Int64Var(&prefixLen, "prefix-len", splice.PrefixLen, "Number of leading bytes copied from the reference")
	c.Flags().StringVar(&outputExt, "ext", splice.OutputExt, "Extension of repaired files")
	c.Flags().BoolVar(&allowShort, "allow-short", false, "Accept corrupted files shorter than the prefix (output is the reference prefix only)")
	c.Flags().StringVar(&pattern, "pattern", batch.DefaultPattern, "Glob selecting corrupted files inside the folder")
}

// newSplicer builds a Splicer from the flags, rejecting a non-positive --prefix-len.
func newSplicer() (*splice.Splicer, error) {
	if prefixLen <= 0 {
		return nil, fmt.Errorf("--prefix-len must be positive, got %d", prefixLen)
	}
	return splice.New(splice.Options{
		PrefixLen:  prefixLen,
		Extension:  outputExt,
		AllowShort: allowShort,
	}), nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&logEnabled, "log", false, "Write a JSON log file")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for log files (default: ~/.mxfrepair/logs)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging (implies --log)")
}
