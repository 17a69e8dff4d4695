package splice

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/DRCRecoveryData/MXF-Repair-Tool/internal/logger"
)

const (
	// PrefixLen is the size of the metadata region donated by the reference file.
	PrefixLen = 524308

	// OutputExt is appended to every repaired file name.
	OutputExt = ".MXF"
)

var (
	// ErrInputNotFound indicates a reference file or corrupted folder does not exist.
	ErrInputNotFound = errors.New("input not found")

	// ErrRead indicates a source file is missing, unreadable or too short.
	ErrRead = errors.New("read failed")

	// ErrWrite indicates the output directory or file could not be written.
	ErrWrite = errors.New("write failed")

	// ErrCorruptedTooShort indicates the corrupted file has no payload past the prefix.
	ErrCorruptedTooShort = errors.New("corrupted file shorter than prefix")
)

// Options configures a Splicer. Zero values fall back to PrefixLen and OutputExt.
type Options struct {
	// PrefixLen is the number of leading bytes taken from the reference.
	PrefixLen int64

	// Extension is appended to the derived output name (e.g. ".MXF").
	Extension string

	// AllowShort accepts corrupted files shorter than PrefixLen.
	// The output then consists of the reference prefix only.
	AllowShort bool
}

// Splicer replaces the leading region of corrupted files with a reference prefix.
type Splicer struct {
	prefixLen  int64
	ext        string
	allowShort bool
}

// Default is the splicer used by the package-level Repair.
var Default = New(Options{})

// New creates a Splicer from opts.
func New(opts Options) *Splicer {
	s := &Splicer{
		prefixLen:  opts.PrefixLen,
		ext:        opts.Extension,
		allowShort: opts.AllowShort,
	}
	if s.prefixLen <= 0 {
		s.prefixLen = PrefixLen
	}
	if s.ext == "" {
		s.ext = OutputExt
	}
	if !strings.HasPrefix(s.ext, ".") {
		s.ext = "." + s.ext
	}
	return s
}

// PrefixLen returns the configured prefix length.
func (s *Splicer) PrefixLen() int64 {
	return s.prefixLen
}

// Extension returns the configured output extension.
func (s *Splicer) Extension() string {
	return s.ext
}

// Repair uses the Default splicer.
func Repair(reference, corrupted, outputDir string) (string, error) {
	return Default.Repair(reference, corrupted, outputDir)
}

// ReadPrefix reads exactly PrefixLen bytes from the start of reference.
func (s *Splicer) ReadPrefix(reference string) ([]byte, error) {
	f, err := os.Open(reference)
	if err != nil {
		return nil, fmt.Errorf("%w: reference %s: %v", ErrRead, reference, err)
	}
	defer f.Close()

	// Size the buffer only once the file is known to hold it.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: reference %s: %v", ErrRead, reference, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: reference %s is a directory", ErrRead, reference)
	}
	if info.Size() < s.prefixLen {
		return nil, fmt.Errorf("%w: reference %s is shorter than %d bytes", ErrRead, reference, s.prefixLen)
	}

	prefix := make([]byte, s.prefixLen)
	if _, err := io.ReadFull(f, prefix); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: reference %s is shorter than %d bytes", ErrRead, reference, s.prefixLen)
		}
		return nil, fmt.Errorf("%w: reference %s: %v", ErrRead, reference, err)
	}
	return prefix, nil
}

// Repair writes reference[:PrefixLen] followed by corrupted[PrefixLen:] to
// outputDir/OutputName(corrupted) and returns the written path.
// An existing file at that path is replaced. On error nothing is left behind.
func (s *Splicer) Repair(reference, corrupted, outputDir string) (string, error) {
	prefix, err := s.ReadPrefix(reference)
	if err != nil {
		return "", err
	}

	src, err := os.Open(corrupted)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRead, corrupted, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRead, corrupted, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrRead, corrupted)
	}

	// Payload past the prefix; empty for short files in AllowShort mode.
	var suffix io.Reader = strings.NewReader("")
	if info.Size() < s.prefixLen {
		if !s.allowShort {
			return "", fmt.Errorf("%w: %s is %d bytes, need at least %d", ErrCorruptedTooShort, corrupted, info.Size(), s.prefixLen)
		}
		logger.L.Warn("corrupted file shorter than prefix, output truncated",
			"file", corrupted, "size", info.Size(), "prefix", s.prefixLen)
	} else {
		if _, err := src.Seek(s.prefixLen, io.SeekStart); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrRead, corrupted, err)
		}
		suffix = src
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("%w: create output directory %s: %v", ErrWrite, outputDir, err)
	}

	outPath := filepath.Join(outputDir, OutputName(corrupted, s.ext))
	if err := writeAtomic(outPath, prefix, suffix); err != nil {
		return "", err
	}

	logger.L.Debug("spliced file", "source", corrupted, "output", outPath, "size", info.Size())
	return outPath, nil
}

// writeAtomic stages the output next to its destination and renames it into place.
func writeAtomic(outPath string, prefix []byte, suffix io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".mxfrepair-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, outPath, err)
	}
	tmpPath := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %s: %v", ErrWrite, outPath, err)
	}

	if _, err := tmp.Write(prefix); err != nil {
		return fail(err)
	}
	if _, err := io.Copy(tmp, suffix); err != nil {
		// A failing source read is still reported as a read error.
		var pe *os.PathError
		if errors.As(err, &pe) && pe.Op == "read" {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("%w: %s: %v", ErrRead, pe.Path, err)
		}
		return fail(err)
	}
	if err := tmp.Chmod(0644); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %s: %v", ErrWrite, outPath, err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %s: %v", ErrWrite, outPath, err)
	}
	return nil
}

// OutputName derives the repaired file name from a corrupted path:
// "clip01.MXF.enc" becomes "clip01" + ext.
func OutputName(corruptedPath, ext string) string {
	name := filepath.Base(corruptedPath)
	name = trimExt(name)
	name = trimExt(name)
	return name + ext
}

// trimExt removes the last extension. Leading dots do not start an extension,
// so ".enc" and "..x" are returned unchanged.
func trimExt(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name
	}
	if strings.Trim(name[:i], ".") == "" {
		return name
	}
	return name[:i]
}
