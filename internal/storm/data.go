package storm

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
)

// file data.go loads the grammar artifact's terminal-English table. The
// table is data, not logic: it is installed alongside the package as an
// embedded resource and loaded exactly once, so concurrent first use is
// safe.

//go:embed data/terminals.toml
var terminalsFS embed.FS

type termRow struct {
	ID    string `toml:"id"`
	Human string `toml:"human"`
}

type termTable struct {
	Terminal []termRow `toml:"terminal"`
}

var (
	termEnglishOnce sync.Once
	termEnglish     map[string]string
	termLoadErr     error
)

// init loads the table at process start, so it is in place before any
// parse runs and a malformed table aborts the process right away.
func init() {
	loadTerminalEnglish()
}

// loadTerminalEnglish loads the terminal -> English name table exactly once
// per process, regardless of how many goroutines call it concurrently.
func loadTerminalEnglish() map[string]string {
	termEnglishOnce.Do(func() {
		data, err := terminalsFS.ReadFile("data/terminals.toml")
		if err != nil {
			termLoadErr = fmt.Errorf("storm: reading embedded grammar table: %w", err)
			return
		}

		var table termTable
		if _, err := toml.Decode(string(data), &table); err != nil {
			termLoadErr = fmt.Errorf("storm: decoding embedded grammar table: %w", err)
			return
		}

		m := make(map[string]string, len(table.Terminal))
		for _, row := range table.Terminal {
			m[row.ID] = row.Human
		}
		termEnglish = m
	})

	if termLoadErr != nil {
		// The grammar/English-name table is a build-time artifact installed
		// alongside this package; a load failure here is a packaging defect,
		// not a runtime condition callers can recover from.
		panic(termLoadErr)
	}

	return termEnglish
}

// englishFor returns the human-readable name for a terminal id. A missing
// entry indicates the grammar and the English-name table have drifted out
// of sync.
func englishFor(id string) string {
	m := loadTerminalEnglish()
	name, ok := m[id]
	if !ok {
		panic(fmt.Sprintf("storm: terminal %q has no English-name table entry", id))
	}
	return name
}

// englishList renders a sorted, de-duplicated set of terminal ids as an
// oxford-comma joined English list, e.g. "a, b, and c".
func englishList(ids map[string]struct{}) string {
	names := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for id := range ids {
		name := englishFor(id)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return makeTextList(names)
}
