package batch

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/DRCRecoveryData/MXF-Repair-Tool/internal/logger"
	"github.com/DRCRecoveryData/MXF-Repair-Tool/pkg/splice"
)

const (
	// DefaultPattern matches the canonical extension plus at least one marker suffix.
	DefaultPattern = "*.MXF.*"

	// OutputDirName is the sibling directory repaired files are written to.
	OutputDirName = "Repaired"

	// DoneMessage is the completion text of a batch without failures.
	DoneMessage = "All files repaired."
)

// Observer receives the progress of a batch. Calls arrive from the worker in order.
type Observer interface {
	Progress(percent int)
	Log(line string)
	Complete(summary string)
}

// Config describes one batch run.
type Config struct {
	Reference string
	Files     []string
	OutputDir string

	// StopOnError halts the batch at the first failing item.
	// By default failing items are logged and skipped.
	StopOnError bool

	// Splicer performs each repair. Nil means splice.Default.
	Splicer *splice.Splicer
}

// Result is one repaired file.
type Result struct {
	Source string `json:"source"`
	Output string `json:"output"`
}

// Failure is one item that could not be repaired.
type Failure struct {
	Source string `json:"source"`
	Error  string `json:"error"`

	err error
}

// Err returns the repair error. It is nil for failures decoded from JSON.
func (f Failure) Err() error {
	return f.err
}

// Report summarizes a finished batch.
type Report struct {
	Reference string    `json:"reference"`
	OutputDir string    `json:"outputDir"`
	Total     int       `json:"total"`
	Repaired  []Result  `json:"repaired"`
	Failed    []Failure `json:"failed"`
}

// OK reports whether every item was repaired.
func (r *Report) OK() bool {
	return len(r.Failed) == 0 && len(r.Repaired) == r.Total
}

// Summary is the completion text for r.
func (r *Report) Summary() string {
	if r.OK() {
		return DoneMessage
	}
	return fmt.Sprintf("%d of %d files repaired, %d failed.", len(r.Repaired), r.Total, len(r.Failed))
}

// Discover lists the regular files in folder whose names match pattern,
// in lexical order. An empty pattern means DefaultPattern. Symlinks are
// followed to regular files; dotfiles are skipped unless pattern starts with '.'.
func Discover(folder, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	info, err := os.Stat(folder)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: corrupted folder %s", splice.ErrInputNotFound, folder)
		}
		return nil, fmt.Errorf("%w: %s: %v", splice.ErrRead, folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: corrupted folder %s is not a directory", splice.ErrInputNotFound, folder)
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", splice.ErrRead, folder, err)
	}

	hidden := strings.HasPrefix(pattern, ".")

	var files []string
	for _, e := range entries {
		name := e.Name()
		// AppleDouble "._clip.MXF.enc" sidecars and other dotfiles.
		if !hidden && strings.HasPrefix(name, ".") {
			continue
		}
		if ok, _ := filepath.Match(pattern, name); !ok {
			continue
		}
		path := filepath.Join(folder, name)
		switch {
		case e.Type().IsRegular():
		case e.Type()&os.ModeSymlink != 0:
			target, err := os.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				continue
			}
		default:
			continue
		}
		files = append(files, path)
	}
	return files, nil
}

// OutputDirFor returns the Repaired directory next to folder.
func OutputDirFor(folder string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(folder)), OutputDirName)
}

// CheckReference verifies the reference exists and is not a directory.
func CheckReference(reference string) error {
	info, err := os.Stat(reference)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: reference file %s", splice.ErrInputNotFound, reference)
		}
		return fmt.Errorf("%w: reference file %s: %v", splice.ErrRead, reference, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: reference %s is a directory", splice.ErrInputNotFound, reference)
	}
	return nil
}

// Percent is the progress after done of total items: round(done*100/total).
func Percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(done) * 100 / float64(total)))
}

// Run repairs cfg.Files in order on the calling goroutine, reporting to obs.
// The returned error is non-nil only when StopOnError halted the batch.
func Run(cfg Config, obs Observer) (*Report, error) {
	s := cfg.Splicer
	if s == nil {
		s = splice.Default
	}

	report := &Report{
		Reference: cfg.Reference,
		OutputDir: cfg.OutputDir,
		Total:     len(cfg.Files),
		Repaired:  []Result{},
		Failed:    []Failure{},
	}

	log := logger.L.With("reference", cfg.Reference, "output", cfg.OutputDir)
	log.Info("batch started", "files", report.Total)

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		err = fmt.Errorf("%w: create output directory %s: %v", splice.ErrWrite, cfg.OutputDir, err)
		log.Error("batch aborted", "error", err)
		obs.Complete("Repair stopped: " + err.Error())
		return report, err
	}

	for i, file := range cfg.Files {
		name := filepath.Base(file)
		obs.Log(fmt.Sprintf("Processing %s...", name))

		out, err := s.Repair(cfg.Reference, file, cfg.OutputDir)
		if err != nil {
			log.Error("repair failed", "file", file, "error", err)
			report.Failed = append(report.Failed, Failure{Source: file, Error: err.Error(), err: err})
			obs.Log(fmt.Sprintf("%s failed: %v", name, err))

			if cfg.StopOnError {
				obs.Complete("Repair stopped: " + err.Error())
				return report, err
			}
		} else {
			log.Info("file repaired", "file", file, "saved", out)
			report.Repaired = append(report.Repaired, Result{Source: file, Output: out})
			obs.Log(fmt.Sprintf("%s repaired. Saved to: %s", name, out))
		}

		obs.Progress(Percent(i+1, report.Total))
	}

	obs.Progress(100)
	log.Info("batch finished", "repaired", len(report.Repaired), "failed", len(report.Failed))
	obs.Complete(report.Summary())
	return report, nil
}
