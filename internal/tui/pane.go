package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/larsmagnus/tfm/internal/cache"
)

// pane is one half of the window: a directory, its listing and a cursor.
// Marked entries override the cursor as the active selection.
type pane struct {
	dir      string
	entries  []cache.Entry
	cursor   int
	offset   int
	marked   map[string]struct{}
	loadErr  error
	listings *cache.Cache
}

func newPane(dir string, listings *cache.Cache) *pane {
	p := &pane{
		dir:      filepath.Clean(dir),
		marked:   make(map[string]struct{}),
		listings: listings,
	}
	p.reload(false)
	return p
}

// reload populates entries from the cache, falling back to the filesystem.
func (p *pane) reload(showHidden bool) {
	if l, ok := p.listings.Get(p.dir); ok {
		p.entries = filterHidden(l.Entries, showHidden)
		p.clampCursor()
		return
	}

	entries, err := readListing(p.dir)
	if err != nil {
		p.loadErr = err
		p.entries = nil
		return
	}
	p.loadErr = nil
	p.listings.Put(p.dir, entries)
	p.entries = filterHidden(entries, showHidden)
	p.clampCursor()
}

func readListing(dir string) ([]cache.Entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	entries := make([]cache.Entry, 0, len(dirents))
	for _, d := range dirents {
		e := cache.Entry{Name: d.Name(), IsDir: d.IsDir()}
		if info, err := d.Info(); err == nil {
			e.Size = info.Size()
			e.Mode = uint32(info.Mode())
			e.ModTime = info.ModTime()
		}
		entries = append(entries, e)
	}

	// Directories first, then files, both alphabetical.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

func filterHidden(entries []cache.Entry, showHidden bool) []cache.Entry {
	if showHidden {
		return entries
	}
	visible := make([]cache.Entry, 0, len(entries))
	for _, e := range entries {
		if !strings.HasPrefix(e.Name, ".") {
			visible = append(visible, e)
		}
	}
	return visible
}

func (p *pane) clampCursor() {
	if p.cursor >= len(p.entries) {
		p.cursor = len(p.entries) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

func (p *pane) moveCursor(delta int) {
	p.cursor += delta
	p.clampCursor()
}

func (p *pane) current() (cache.Entry, bool) {
	if p.cursor < 0 || p.cursor >= len(p.entries) {
		return cache.Entry{}, false
	}
	return p.entries[p.cursor], true
}

func (p *pane) toggleMark() {
	e, ok := p.current()
	if !ok {
		return
	}
	path := filepath.Join(p.dir, e.Name)
	if _, marked := p.marked[path]; marked {
		delete(p.marked, path)
	} else {
		p.marked[path] = struct{}{}
	}
}

// selection returns the paths an operation should act on: the marked
// entries when any exist, otherwise the entry under the cursor.
func (p *pane) selection() []string {
	if len(p.marked) > 0 {
		paths := make([]string, 0, len(p.marked))
		for path := range p.marked {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		return paths
	}
	if e, ok := p.current(); ok {
		return []string{filepath.Join(p.dir, e.Name)}
	}
	return nil
}

func (p *pane) clearMarks() {
	p.marked = make(map[string]struct{})
}

// enter descends into the directory under the cursor.
func (p *pane) enter(showHidden bool) bool {
	e, ok := p.current()
	if !ok || !e.IsDir {
		return false
	}
	p.dir = filepath.Join(p.dir, e.Name)
	p.cursor = 0
	p.offset = 0
	p.clearMarks()
	p.reload(showHidden)
	return true
}

// up ascends to the parent directory, leaving the cursor on the directory
// we came from.
func (p *pane) up(showHidden bool) bool {
	parent := filepath.Dir(p.dir)
	if parent == p.dir {
		return false
	}
	from := filepath.Base(p.dir)
	p.dir = parent
	p.cursor = 0
	p.offset = 0
	p.clearMarks()
	p.reload(showHidden)
	for i, e := range p.entries {
		if e.Name == from {
			p.cursor = i
			break
		}
	}
	return true
}

func (p *pane) render(width, height int, active bool) string {
	var sb strings.Builder

	title := p.dir
	if len(title) > width-4 {
		title = "…" + title[len(title)-(width-5):]
	}
	sb.WriteString(titleStyle.Render(title) + "\n")

	if p.loadErr != nil {
		sb.WriteString(errorStyle.Render(p.loadErr.Error()))
		return frame(sb.String(), width, height, active)
	}
	if len(p.entries) == 0 {
		sb.WriteString(helpStyle.Render("(empty)"))
		return frame(sb.String(), width, height, active)
	}

	rows := height - 3
	if rows < 1 {
		rows = 1
	}
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+rows {
		p.offset = p.cursor - rows + 1
	}

	end := p.offset + rows
	if end > len(p.entries) {
		end = len(p.entries)
	}
	for i := p.offset; i < end; i++ {
		e := p.entries[i]
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		size := ""
		if !e.IsDir {
			size = formatBytes(e.Size)
		}

		line := fmt.Sprintf("%-*s %8s", width-14, truncate(name, width-14), size)
		path := filepath.Join(p.dir, e.Name)
		_, marked := p.marked[path]

		switch {
		case i == p.cursor && active:
			sb.WriteString(selectedItemStyle.Render("> "+line) + "\n")
		case marked:
			sb.WriteString(markedItemStyle.Render("* "+line) + "\n")
		default:
			sb.WriteString(itemStyle.Render("  "+line) + "\n")
		}
	}

	return frame(sb.String(), width, height, active)
}

func truncate(s string, max int) string {
	if max <= 1 || len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func frame(content string, width, height int, active bool) string {
	style := paneStyle
	if active {
		style = activePaneStyle
	}
	return style.Width(width).Height(height).Render(content)
}
