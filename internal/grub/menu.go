package grub

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// MenuEntry is one selectable entry of the rendered boot menu, with
// the titles of the submenus it is nested under, outermost first.
type MenuEntry struct {
	Title    string   `json:"entry"`
	Submenus []string `json:"submenus"`
}

// FullPath returns the submenu titles and the entry title joined with '>'.
func (e *MenuEntry) FullPath() string {
	if len(e.Submenus) == 0 {
		return e.Title
	}
	return strings.Join(e.Submenus, ">") + ">" + e.Title
}

// Menu is the parsed boot menu plus the currently selected entry, if
// one could be resolved from grubenv.
type Menu struct {
	Entries  []MenuEntry
	Selected *MenuEntry
}

var (
	menuentryRe = regexp.MustCompile(`^menuentry\s+'([^']+)'`)
	submenuRe   = regexp.MustCompile(`^submenu\s+'([^']+)'`)
)

// ParseMenuEntries scans rendered boot-menu text for menuentry and
// submenu blocks. This is a heuristic line scanner, not a grammar
// parser: a '}' line closes the open menuentry if there is one, else
// the innermost submenu. Lines whose title capture fails are skipped.
func ParseMenuEntries(text string) []MenuEntry {
	var entries []MenuEntry
	var stack []string
	menuOpen := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "menuentry '"):
			m := menuentryRe.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			entries = append(entries, MenuEntry{
				Title:    m[1],
				Submenus: append([]string(nil), stack...),
			})
			menuOpen = true

		case strings.HasPrefix(trimmed, "submenu '"):
			m := submenuRe.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			stack = append(stack, m[1])

		case strings.HasPrefix(trimmed, "}"):
			if menuOpen {
				menuOpen = false
			} else if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	return entries
}

// ResolveSelected resolves the selected entry from grubenv text. The
// saved_entry value is either an index into entries or a literal
// title. A missing saved_entry line yields nil; a present but
// malformed one is a parse error.
func ResolveSelected(entries []MenuEntry, envText string) (*MenuEntry, error) {
	for _, line := range strings.Split(envText, "\n") {
		if !strings.HasPrefix(line, "saved_entry") {
			continue
		}

		idx := strings.Index(line, "=")
		if idx < 0 {
			return nil, &ParseError{Msg: fmt.Sprintf("malformed saved_entry line %q", line)}
		}
		value := strings.TrimSpace(line[idx+1:])
		if value == "" {
			return nil, &ParseError{Msg: "saved_entry has no value"}
		}

		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			if n >= len(entries) {
				return nil, nil
			}
			return &entries[n], nil
		}

		for i := range entries {
			if entries[i].Title == value {
				return &entries[i], nil
			}
		}
		return nil, nil
	}

	return nil, nil
}

// LoadMenu reads the rendered menu and grubenv from disk and resolves
// the selection. A missing grubenv is treated as no selection.
func LoadMenu(menuPath, envPath string) (*Menu, error) {
	text, err := os.ReadFile(menuPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", menuPath, err)
	}
	entries := ParseMenuEntries(string(text))

	menu := &Menu{Entries: entries}

	envText, err := os.ReadFile(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return menu, nil
		}
		return nil, fmt.Errorf("reading %s: %w", envPath, err)
	}

	selected, err := ResolveSelected(entries, string(envText))
	if err != nil {
		return nil, err
	}
	menu.Selected = selected
	return menu, nil
}

// HasTitle reports whether any entry has the given title.
func (m *Menu) HasTitle(title string) bool {
	for i := range m.Entries {
		if m.Entries[i].Title == title {
			return true
		}
	}
	return false
}

// SelectedTitle returns the selected entry's title, or nil.
func (m *Menu) SelectedTitle() *string {
	if m.Selected == nil {
		return nil
	}
	return &m.Selected.Title
}
