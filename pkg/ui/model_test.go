package ui

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/recordbook/pkg/app"
	"github.com/entrhq/recordbook/pkg/kv"
	"github.com/entrhq/recordbook/pkg/photo"
	"github.com/entrhq/recordbook/pkg/view"
)

func pngBytes(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.Set(2, 2, color.Gray{Y: shade})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	m         *Model
	svc       *app.Service
	store     *kv.Memory
	clipboard []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: kv.NewMemory()}
	warnings := NewWarnings()
	f.svc = app.Open(context.Background(), f.store, app.Options{OnWarning: warnings.Func()})
	t.Cleanup(func() { _ = f.svc.Close() })

	f.m = New(context.Background(), f.svc, warnings)
	f.m.copyToClipboard = func(s string) error {
		f.clipboard = append(f.clipboard, s)
		return nil
	}
	f.m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return f
}

func (f *fixture) key(t *testing.T, k tea.KeyMsg) tea.Cmd {
	t.Helper()
	_, cmd := f.m.Update(k)
	return cmd
}

func (f *fixture) addPending(t *testing.T, n int) {
	t.Helper()
	sources := make([]photo.Source, n)
	for i := range sources {
		sources[i] = photo.BytesSource("p.png", pngBytes(t, uint8(i)))
	}
	_, err := f.svc.AddImages(context.Background(), sources)
	require.NoError(t, err)
}

func (f *fixture) saveRecord(t *testing.T, title string, images int) {
	t.Helper()
	f.addPending(t, images)
	f.m.setFocus(focusTitle)
	f.m.title.SetValue(title)
	f.key(t, tea.KeyMsg{Type: tea.KeyEnter})
	require.False(t, f.m.statusErr, f.m.status)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_SaveFromTitle(t *testing.T) {
	f := newFixture(t)
	f.saveRecord(t, "Receipts", 2)

	assert.Equal(t, 1, f.svc.Len())
	assert.Empty(t, f.svc.Pending())
	assert.Len(t, f.m.records.Items(), 1)
	assert.Empty(t, f.m.title.Value())
	assert.Contains(t, f.m.status, "saved record 1")
}

func TestModel_SaveValidationError(t *testing.T) {
	f := newFixture(t)

	f.m.title.SetValue("no images")
	f.key(t, tea.KeyMsg{Type: tea.KeyCtrlS})

	assert.True(t, f.m.statusErr)
	assert.Contains(t, f.m.status, "images")
	assert.Equal(t, 0, f.svc.Len())
	assert.Equal(t, "no images", f.m.title.Value(), "input kept for correction")
}

func TestModel_SaveRefusedWhileAdding(t *testing.T) {
	f := newFixture(t)
	f.addPending(t, 1)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.png"), pngBytes(t, 9), 0644))

	f.m.setFocus(focusPath)
	f.m.path.SetValue(dir)
	cmd := f.key(t, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	f.m.title.SetValue("too early")
	f.key(t, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.True(t, f.m.statusErr)
	assert.Equal(t, 0, f.svc.Len())
	assert.Equal(t, "too early", f.m.title.Value())

	f.m.Update(cmd())
	f.key(t, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.False(t, f.m.statusErr, f.m.status)
	rec, ok := f.svc.Record(0)
	require.True(t, ok)
	assert.Len(t, rec.Images, 2)
}

func TestModel_SaveFailureShowsWarning(t *testing.T) {
	f := newFixture(t)
	f.store.FailWith(errors.New("disk full"))

	f.addPending(t, 1)
	f.m.title.SetValue("kept anyway")
	f.key(t, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, 1, f.svc.Len())
	assert.True(t, f.m.statusErr)
	assert.Contains(t, f.m.status, "disk full")
}

func TestModel_FocusCycle(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, focusTitle, f.m.focus)

	f.key(t, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusPath, f.m.focus)
	assert.True(t, f.m.path.Focused())
	assert.False(t, f.m.title.Focused())

	f.key(t, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusRecords, f.m.focus)

	f.key(t, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusTitle, f.m.focus)

	f.key(t, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, focusRecords, f.m.focus)
}

func TestModel_AddPaths(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	for i, name := range []string{"a.png", "b.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), pngBytes(t, uint8(i)), 0644))
	}

	f.m.setFocus(focusPath)
	f.m.path.SetValue(dir)
	cmd := f.key(t, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, f.m.busy)

	msg := cmd()
	added, ok := msg.(imagesAddedMsg)
	require.True(t, ok)
	assert.Equal(t, 2, added.kept)

	f.m.Update(msg)
	assert.False(t, f.m.busy)
	assert.False(t, f.m.statusErr)
	assert.Empty(t, f.m.path.Value())
	assert.Len(t, f.svc.Pending(), 2)
	assert.Contains(t, f.m.View(), "Pending 2/10")
}

func TestModel_AddPathsFailure(t *testing.T) {
	f := newFixture(t)

	f.m.setFocus(focusPath)
	f.m.path.SetValue(filepath.Join(t.TempDir(), "missing.png"))
	cmd := f.key(t, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	f.m.Update(cmd())
	assert.True(t, f.m.statusErr)
	assert.Empty(t, f.svc.Pending())
}

func TestModel_ClearPending(t *testing.T) {
	f := newFixture(t)
	f.addPending(t, 3)

	f.key(t, tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.Empty(t, f.svc.Pending())
	assert.Equal(t, 0, f.svc.Previews().Live())
}

func TestModel_DetailScreen(t *testing.T) {
	f := newFixture(t)
	f.saveRecord(t, "Trip", 3)

	f.m.setFocus(focusRecords)
	f.key(t, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, view.State{Mode: view.DetailView, Index: 0}, f.svc.View())
	assert.Len(t, f.m.images.Items(), 3)
	assert.Equal(t, 3, f.svc.Previews().Live())
	assert.True(t, strings.Contains(f.m.View(), "Trip"))

	f.key(t, runes("y"))
	require.Len(t, f.clipboard, 1)
	rec, ok := f.svc.Current()
	require.True(t, ok)
	assert.Equal(t, rec.Images[0].String(), f.clipboard[0])

	f.key(t, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, view.ListView, f.svc.View().Mode)
	assert.Equal(t, 0, f.svc.Previews().Live(), "leaving detail releases previews")
}

func TestModel_DeleteFromDetail(t *testing.T) {
	f := newFixture(t)
	f.saveRecord(t, "first", 1)
	f.saveRecord(t, "second", 1)

	f.m.setFocus(focusRecords)
	f.m.records.Select(1)
	f.key(t, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, view.DetailView, f.svc.View().Mode)

	f.key(t, runes("d"))
	assert.Equal(t, 1, f.svc.Len())
	assert.Equal(t, view.ListView, f.svc.View().Mode)
	assert.Equal(t, 0, f.svc.Previews().Live())
	assert.Len(t, f.m.records.Items(), 1)
}

func TestModel_DeleteFromList(t *testing.T) {
	f := newFixture(t)
	f.saveRecord(t, "only", 1)

	// d types into the title input while it has focus
	f.key(t, runes("d"))
	assert.Equal(t, 1, f.svc.Len())
	assert.Equal(t, "d", f.m.title.Value())

	f.m.setFocus(focusRecords)
	f.key(t, runes("d"))
	assert.Equal(t, 0, f.svc.Len())
	assert.Empty(t, f.m.records.Items())

	// nothing left to delete
	f.key(t, runes("d"))
	assert.False(t, f.m.statusErr)
}

func TestModel_Quit(t *testing.T) {
	f := newFixture(t)

	cmd := f.key(t, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	f.m.setFocus(focusRecords)
	cmd = f.key(t, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_LoadWarningShown(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set(context.Background(), "records", []byte("{broken")))

	warnings := NewWarnings()
	svc := app.Open(context.Background(), store, app.Options{OnWarning: warnings.Func()})
	t.Cleanup(func() { _ = svc.Close() })

	m := New(context.Background(), svc, warnings)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "corrupt")
}
