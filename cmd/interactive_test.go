package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/DRCRecoveryData/MXF-Repair-Tool/pkg/batch"
	"github.com/DRCRecoveryData/MXF-Repair-Tool/pkg/splice"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tuiFixture creates <root>/ref.MXF and n corrupted files in <root>/Corrupted.
func tuiFixture(t *testing.T, n int) (reference, folder string) {
	t.Helper()
	root := t.TempDir()
	reference = filepath.Join(root, "ref.MXF")
	require.NoError(t, os.WriteFile(reference, []byte("GOOD"), 0644))

	folder = filepath.Join(root, "Corrupted")
	require.NoError(t, os.MkdirAll(folder, 0755))
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("clip%03d.MXF.enc", i)
		require.NoError(t, os.WriteFile(filepath.Join(folder, name), []byte("BAD!payload"), 0644))
	}
	return reference, folder
}

func press(t *testing.T, m model, k tea.KeyType) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(model), cmd
}

// drain feeds worker messages back into the model until the batch is done.
func drain(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	for i := 0; i < 10000; i++ {
		require.NotNil(t, cmd, "batch ended without a done message")
		msg := cmd()
		next, c := m.Update(msg)
		m = next.(model)
		if _, ok := msg.(batchDoneMsg); ok {
			return m
		}
		cmd = c
	}
	t.Fatal("batch did not finish")
	return m
}

func testSplicer() *splice.Splicer {
	return splice.New(splice.Options{PrefixLen: 4})
}

func TestInteractiveRepair(t *testing.T) {
	reference, folder := tuiFixture(t, 3)
	m := newModel(reference, folder, testSplicer(), batch.DefaultPattern)

	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, m.handle)
	assert.Equal(t, "Repairing 3 files...", m.status)

	m = drain(t, m, cmd)

	assert.Nil(t, m.handle)
	assert.False(t, m.statusErr)
	assert.Equal(t, batch.DoneMessage, m.status)
	assert.Equal(t, 1.0, m.percent)
	assert.Len(t, m.lines, 6)
	assert.Contains(t, m.View(), batch.DoneMessage)

	out, err := os.ReadFile(filepath.Join(filepath.Dir(folder), "Repaired", "clip000.MXF"))
	require.NoError(t, err)
	assert.Equal(t, "GOODpayload", string(out))
}

func TestInteractiveMissingReference(t *testing.T) {
	_, folder := tuiFixture(t, 1)
	m := newModel(filepath.Join(folder, "missing.MXF"), folder, testSplicer(), batch.DefaultPattern)

	m, cmd := press(t, m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.Nil(t, m.handle)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, splice.ErrInputNotFound.Error())
	assert.NoDirExists(t, filepath.Join(filepath.Dir(folder), "Repaired"))
}

func TestInteractiveEmptyFolder(t *testing.T) {
	reference, folder := tuiFixture(t, 0)
	m := newModel(reference, folder, testSplicer(), batch.DefaultPattern)

	m, _ = press(t, m, tea.KeyEnter)
	assert.Nil(t, m.handle)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "No files matching")
}

func TestInteractiveRefusesQuitWhileRunning(t *testing.T) {
	// Enough items to fill the event buffer, so the worker stays
	// blocked until the model drains it.
	reference, folder := tuiFixture(t, 40)
	m := newModel(reference, folder, testSplicer(), batch.DefaultPattern)

	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, m.handle)

	m, quitCmd := press(t, m, tea.KeyEsc)
	assert.Nil(t, quitCmd)
	assert.False(t, m.quitting)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "Cannot quit")

	// A second start is refused as well.
	m, again := press(t, m, tea.KeyEnter)
	assert.Nil(t, again)
	assert.Equal(t, "A repair is already running.", m.status)

	m = drain(t, m, cmd)
	assert.Equal(t, batch.DoneMessage, m.status)

	m, quitCmd = press(t, m, tea.KeyEsc)
	assert.True(t, m.quitting)
	assert.NotNil(t, quitCmd)
	assert.Equal(t, "Bye!\n", m.View())
}

func TestInteractiveFocusAndTyping(t *testing.T) {
	m := newModel("", "", testSplicer(), batch.DefaultPattern)
	assert.Equal(t, fieldReference, m.focus)

	m, _ = press(t, m, tea.KeyTab)
	assert.Equal(t, fieldFolder, m.focus)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/tmp/x")})
	m = next.(model)
	assert.Equal(t, "/tmp/x", m.inputs[fieldFolder].Value())
	assert.Equal(t, "", m.inputs[fieldReference].Value())

	next, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = next.(model)
	assert.Equal(t, 80, m.bar.Width)
}
