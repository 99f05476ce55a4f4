// Package ui is the interactive terminal front end: a record list screen
// with title and path inputs, and a detail screen for one record.
package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/entrhq/recordbook/pkg/app"
	"github.com/entrhq/recordbook/pkg/pending"
	"github.com/entrhq/recordbook/pkg/photo"
	"github.com/entrhq/recordbook/pkg/view"
)

const (
	keyEnter = "enter"
	keyEsc   = "esc"
	keyTab   = "tab"
)

type focusArea int

const (
	focusTitle focusArea = iota
	focusPath
	focusRecords
	focusCount
)

// Warnings collects service warnings so the UI can show them in the
// status line. Use Func as app.Options.OnWarning.
type Warnings struct {
	mu      sync.Mutex
	pending []string
}

// NewWarnings creates an empty collector.
func NewWarnings() *Warnings {
	return &Warnings{}
}

// Func returns the callback to hand to the service.
func (w *Warnings) Func() app.WarningFunc {
	return func(message string, err error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.pending = append(w.pending, fmt.Sprintf("%s: %v", message, err))
	}
}

func (w *Warnings) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.pending
	w.pending = nil
	return out
}

// imagesAddedMsg reports the result of an asynchronous encode batch.
type imagesAddedMsg struct {
	kept int
	err  error
}

// Model is the bubbletea model for the whole application.
type Model struct {
	ctx      context.Context
	svc      *app.Service
	warnings *Warnings

	title   textinput.Model
	path    textinput.Model
	records list.Model
	images  list.Model
	focus   focusArea

	// previews for the record in the detail screen
	detailPreviews []*photo.Transient

	status    string
	statusErr bool
	busy      bool
	width     int
	height    int

	copyToClipboard func(string) error
}

// New builds the model. warnings may be nil.
func New(ctx context.Context, svc *app.Service, warnings *Warnings) *Model {
	title := textinput.New()
	title.Placeholder = "Record title"
	title.CharLimit = 200
	title.Prompt = "title> "
	title.Focus()

	path := textinput.New()
	path.Placeholder = "Image file, directory or glob"
	path.Prompt = "add> "

	if warnings == nil {
		warnings = NewWarnings()
	}

	m := &Model{
		ctx:             ctx,
		svc:             svc,
		warnings:        warnings,
		title:           title,
		path:            path,
		records:         newList("Records"),
		images:          newList("Images"),
		focus:           focusTitle,
		copyToClipboard: clipboard.WriteAll,
	}
	m.refreshRecords()
	m.collectWarnings()
	return m
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, svc *app.Service, warnings *Warnings) error {
	m := New(ctx, svc, warnings)
	defer m.releaseDetail()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case imagesAddedMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(fmt.Sprintf("images not added: %v", msg.err))
		} else {
			m.setStatus(fmt.Sprintf("added %d image(s), %d pending", msg.kept, len(m.svc.Pending())))
			m.path.SetValue("")
		}
		m.collectWarnings()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.svc.View().Mode == view.DetailView {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}

	return m, m.forward(msg)
}

func (m *Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyTab:
		m.setFocus((m.focus + 1) % focusCount)
		return m, nil
	case "shift+tab":
		m.setFocus((m.focus + focusCount - 1) % focusCount)
		return m, nil
	case "ctrl+s":
		m.save()
		return m, nil
	case "ctrl+x":
		m.svc.ClearPending()
		m.setStatus("pending images cleared")
		return m, nil
	case keyEnter:
		switch m.focus {
		case focusTitle:
			m.save()
			return m, nil
		case focusPath:
			return m, m.addPaths()
		case focusRecords:
			m.openSelected()
			return m, nil
		}
	}

	if m.focus == focusRecords {
		switch msg.String() {
		case "d":
			if i := m.records.Index(); len(m.records.Items()) > 0 {
				m.delete(i)
			}
			return m, nil
		case "q", keyEsc:
			return m, tea.Quit
		}
	}

	return m, m.forward(msg)
}

func (m *Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyEsc, "q", "backspace":
		m.svc.Back()
		m.releaseDetail()
		return m, nil
	case "d":
		if state := m.svc.View(); state.Mode == view.DetailView {
			m.delete(state.Index)
		}
		return m, nil
	case "y":
		m.copySelected()
		return m, nil
	}

	var cmd tea.Cmd
	m.images, cmd = m.images.Update(msg)
	return m, cmd
}

// forward hands msg to whichever component has focus.
func (m *Model) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focus {
	case focusTitle:
		m.title, cmd = m.title.Update(msg)
	case focusPath:
		m.path, cmd = m.path.Update(msg)
	case focusRecords:
		m.records, cmd = m.records.Update(msg)
	}
	return cmd
}

func (m *Model) setFocus(f focusArea) {
	m.focus = f
	m.title.Blur()
	m.path.Blur()
	switch f {
	case focusTitle:
		m.title.Focus()
	case focusPath:
		m.path.Focus()
	}
}

func (m *Model) addPaths() tea.Cmd {
	raw := strings.TrimSpace(m.path.Value())
	if raw == "" || m.busy {
		return nil
	}
	m.busy = true
	m.setStatus("encoding images...")

	ctx, svc := m.ctx, m.svc
	paths := strings.Fields(raw)
	return func() tea.Msg {
		kept, err := svc.AddPaths(ctx, paths)
		return imagesAddedMsg{kept: kept, err: err}
	}
}

func (m *Model) save() {
	if m.busy {
		m.setError("images are still being added, save again when they are done")
		return
	}
	index, err := m.svc.Save(m.ctx, m.title.Value())
	if err != nil {
		m.setError(err.Error())
		return
	}
	m.title.SetValue("")
	m.refreshRecords()
	m.records.Select(index)
	m.setStatus(fmt.Sprintf("saved record %d", index+1))
	m.collectWarnings()
}

func (m *Model) delete(index int) {
	if err := m.svc.Delete(m.ctx, index); err != nil {
		m.setError(err.Error())
		return
	}
	m.refreshRecords()
	if m.svc.View().Mode == view.DetailView {
		m.refreshDetail()
	} else {
		m.releaseDetail()
	}
	m.setStatus("record deleted")
	m.collectWarnings()
}

func (m *Model) openSelected() {
	if len(m.records.Items()) == 0 {
		return
	}
	if err := m.svc.Select(m.records.Index()); err != nil {
		m.setError(err.Error())
		return
	}
	m.refreshDetail()
}

func (m *Model) copySelected() {
	item, ok := m.images.SelectedItem().(imageItem)
	if !ok {
		return
	}
	if err := m.copyToClipboard(item.image.String()); err != nil {
		m.setError(fmt.Sprintf("clipboard: %v", err))
		return
	}
	m.setStatus(fmt.Sprintf("copied image %d to clipboard", item.index+1))
}

func (m *Model) refreshRecords() {
	m.records.SetItems(recordItems(m.svc.List()))
}

// refreshDetail rebuilds the image list and its previews for the viewed record.
func (m *Model) refreshDetail() {
	m.releaseDetail()
	rec, ok := m.svc.Current()
	if !ok {
		return
	}

	items := make([]list.Item, len(rec.Images))
	for i, img := range rec.Images {
		t, err := m.svc.Previews().AcquireDurable(img)
		if err == nil {
			m.detailPreviews = append(m.detailPreviews, t)
		}
		items[i] = imageItem{index: i, image: img, preview: t}
	}
	m.images.Title = rec.Title
	m.images.SetItems(items)
	m.images.Select(0)
}

func (m *Model) releaseDetail() {
	for _, t := range m.detailPreviews {
		m.svc.Previews().Release(t)
	}
	m.detailPreviews = nil
}

func (m *Model) collectWarnings() {
	if w := m.warnings.drain(); len(w) > 0 {
		m.setError(w[len(w)-1])
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

func (m *Model) resize() {
	listHeight := m.height - 16
	if listHeight < 5 {
		listHeight = 5
	}
	m.records.SetSize(m.width-2, listHeight)
	m.images.SetSize(m.width-2, m.height-6)
	m.title.Width = m.width - 12
	m.path.Width = m.width - 12
}

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	if m.svc.View().Mode == view.DetailView {
		body = m.detailView()
	} else {
		body = m.listView()
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.statusLine())
}

func (m *Model) box(content string, focused bool) string {
	style := inputBoxStyle
	if focused {
		style = focusedBoxStyle
	}
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(content)
}

func (m *Model) listView() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("recordbook"))
	b.WriteString("\n\n")
	b.WriteString(m.box(m.title.View(), m.focus == focusTitle))
	b.WriteString("\n")
	b.WriteString(m.box(m.path.View(), m.focus == focusPath))
	b.WriteString("\n")
	b.WriteString(m.pendingView())
	b.WriteString("\n")
	b.WriteString(m.records.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab focus • enter add/save/open • ctrl+s save • ctrl+x clear pending • d delete • ctrl+c quit"))
	return b.String()
}

func (m *Model) pendingView() string {
	items := m.svc.Pending()
	header := labelStyle.Render(fmt.Sprintf("Pending %d/%d", len(items), pending.Capacity))
	if len(items) == 0 {
		return header + tipsStyle.Render("  add images by path above")
	}

	lines := []string{header}
	for i, it := range items {
		line := fmt.Sprintf("  %2d. %-12s %8s", i+1, it.Image.MediaType(), humanize.Bytes(uint64(it.Image.Size())))
		if it.Preview != nil {
			line += "  " + tipsStyle.Render(it.Preview.ID())
		}
		lines = append(lines, textStyle.Render(line))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) detailView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.images.View(),
		helpStyle.Render("↑/↓ select • y copy data URL • d delete record • esc back"),
	)
}

func (m *Model) statusLine() string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return statusBarStyle.Render(errorStyle.Render(m.status))
	}
	return statusBarStyle.Render(successStyle.Render(m.status))
}
