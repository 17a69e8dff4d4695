package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DRCRecoveryData/MXF-Repair-Tool/pkg/splice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_StreamsEvents(t *testing.T) {
	_, ref, folder := fixture(t, map[string]int{
		"a.MXF.enc": splice.PrefixLen + 1,
		"b.MXF.enc": splice.PrefixLen + 2,
		"c.MXF.enc": splice.PrefixLen + 3,
	})
	files, err := Discover(folder, "")
	require.NoError(t, err)

	h, err := Start(Config{Reference: ref, Files: files, OutputDir: OutputDirFor(folder)})
	require.NoError(t, err)

	var progress []int
	var logs int
	var last Event
	for ev := range h.Events() {
		switch ev.Kind {
		case EventProgress:
			progress = append(progress, ev.Percent)
		case EventLog:
			logs++
		}
		last = ev
	}

	assert.False(t, h.Running())
	assert.Equal(t, []int{33, 67, 100, 100}, progress)
	assert.Equal(t, 6, logs)
	assert.Equal(t, EventComplete, last.Kind)
	assert.Equal(t, DoneMessage, last.Text)

	report, err := h.Wait()
	require.NoError(t, err)
	assert.Len(t, report.Repaired, 3)
}

func TestWait_WithoutReadingEvents(t *testing.T) {
	// More events than the stream buffers: two per file plus progress.
	sizes := map[string]int{}
	for i := 0; i < 40; i++ {
		sizes[fmt.Sprintf("clip%02d.MXF.enc", i)] = 8
	}
	_, ref, folder := fixture(t, sizes)
	files, err := Discover(folder, "")
	require.NoError(t, err)

	h, err := Start(Config{
		Reference: ref,
		Files:     files,
		OutputDir: OutputDirFor(folder),
		Splicer:   splice.New(splice.Options{PrefixLen: 4}),
	})
	require.NoError(t, err)

	done := make(chan *Report, 1)
	go func() {
		report, err := h.Wait()
		assert.NoError(t, err)
		done <- report
	}()

	select {
	case report := <-done:
		require.NotNil(t, report)
		assert.Len(t, report.Repaired, 40)
		assert.False(t, h.Running())
	case <-time.After(10 * time.Second):
		t.Fatal("Wait did not return with unread events pending")
	}

	// A second Wait returns the same result.
	report, err := h.Wait()
	require.NoError(t, err)
	assert.Len(t, report.Repaired, 40)
}

func TestStart_MissingReference(t *testing.T) {
	_, _, folder := fixture(t, map[string]int{"a.MXF.enc": splice.PrefixLen + 1})
	outDir := OutputDirFor(folder)

	h, err := Start(Config{
		Reference: filepath.Join(folder, "missing.MXF"),
		Files:     []string{filepath.Join(folder, "a.MXF.enc")},
		OutputDir: outDir,
	})
	require.ErrorIs(t, err, splice.ErrInputNotFound)
	assert.Nil(t, h)

	_, statErr := os.Stat(outDir)
	assert.True(t, os.IsNotExist(statErr), "no output directory may be created")
}

func TestStart_ReferenceIsDirectory(t *testing.T) {
	_, _, folder := fixture(t, nil)

	_, err := Start(Config{Reference: folder, OutputDir: OutputDirFor(folder)})
	assert.ErrorIs(t, err, splice.ErrInputNotFound)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "progress", EventProgress.String())
	assert.Equal(t, "log", EventLog.String())
	assert.Equal(t, "complete", EventComplete.String())
	assert.Equal(t, "unknown", EventKind(42).String())
}
