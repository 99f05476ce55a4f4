package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/dustin/go-humanize"

	"github.com/entrhq/recordbook/pkg/photo"
	"github.com/entrhq/recordbook/pkg/records"
)

// recordItem is one row of the record list.
type recordItem struct {
	summary records.Summary
}

func (i recordItem) FilterValue() string { return i.summary.Title }

func (i recordItem) Title() string { return i.summary.Title }

func (i recordItem) Description() string {
	if i.summary.ImageCount == 1 {
		return "1 image"
	}
	return fmt.Sprintf("%d images", i.summary.ImageCount)
}

// imageItem is one image of the record being viewed.
type imageItem struct {
	index   int
	image   photo.Durable
	preview *photo.Transient
}

func (i imageItem) FilterValue() string { return i.image.MediaType() }

func (i imageItem) Title() string {
	return fmt.Sprintf("#%d  %s", i.index+1, i.image.MediaType())
}

func (i imageItem) Description() string {
	desc := humanize.Bytes(uint64(i.image.Size()))
	if i.preview != nil {
		desc += "  " + i.preview.ID()
	}
	return desc
}

func newListDelegate() list.DefaultDelegate {
	d := list.NewDefaultDelegate()

	d.Styles.SelectedTitle = d.Styles.SelectedTitle.
		Foreground(salmonPink).
		BorderForeground(salmonPink)
	d.Styles.SelectedDesc = d.Styles.SelectedDesc.
		Foreground(mutedGray).
		BorderForeground(salmonPink)

	return d
}

func newList(title string) list.Model {
	l := list.New([]list.Item{}, newListDelegate(), 0, 0)
	l.Title = title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	// q and esc belong to the screens, not the list
	l.KeyMap.Quit.SetEnabled(false)

	l.Styles.Title = headerStyle.Padding(0, 1)
	return l
}

func recordItems(summaries []records.Summary) []list.Item {
	items := make([]list.Item, len(summaries))
	for i, s := range summaries {
		items[i] = recordItem{summary: s}
	}
	return items
}
