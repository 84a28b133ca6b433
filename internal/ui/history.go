package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const defaultHistoryLimit = 500

// History keeps the prompts typed at the REPL, persisted one per line.
type History struct {
	path    string
	limit   int
	entries []string
}

// LoadHistoryFromFile reads history entries from a readline history file.
func LoadHistoryFromFile(filepath string) []string {
	history := make([]string, 0)

	file, err := os.Open(filepath)
	if err != nil {
		return history
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			history = append(history, line)
		}
	}

	return history
}

// OpenHistory loads the history stored at path. An empty path keeps the
// history in memory only.
func OpenHistory(path string, limit int) *History {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	h := &History{path: path, limit: limit}
	if path != "" {
		h.entries = LoadHistoryFromFile(path)
	}
	h.trim()
	return h
}

// Add records an entry. Blank lines and repeats of the last entry are
// ignored. It reports whether the entry was recorded.
func (h *History) Add(entry string) bool {
	entry = strings.TrimSpace(entry)
	if entry == "" || strings.Contains(entry, "\n") {
		return false
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == entry {
		return false
	}
	h.entries = append(h.entries, entry)
	h.trim()
	return true
}

// Save writes the entries back to the history file.
func (h *History) Save() error {
	if h.path == "" {
		return nil
	}
	data := strings.Join(h.entries, "\n")
	if data != "" {
		data += "\n"
	}
	if err := os.WriteFile(h.path, []byte(data), 0o600); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// Entries returns a copy of history entries.
func (h *History) Entries() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) trim() {
	if len(h.entries) > h.limit {
		h.entries = append([]string(nil), h.entries[len(h.entries)-h.limit:]...)
	}
}
