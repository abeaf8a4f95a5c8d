package patterns

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Library holds the loaded pattern definitions. It is populated once by
// LoadLibrary and read-only afterwards, so concurrent matching never locks.
type Library struct {
	defs []*Definition
	byID map[string]*Definition
}

// LoadLibrary reads every *.json pattern file in dir. Malformed files and
// files without a pattern_id are logged and skipped; a missing directory is
// a startup error because the engine cannot run without its library.
func LoadLibrary(dir string, logger zerolog.Logger) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern library %s: %w", dir, err)
	}

	lib := &Library{byID: make(map[string]*Definition)}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	// Directory order is not guaranteed; sort for a stable library order,
	// which is also the tie-break order for equal-confidence matches.
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Str("file", name).Err(err).Msg("Skipping unreadable pattern file")
			continue
		}
		var def Definition
		if err := json.Unmarshal(data, &def); err != nil {
			logger.Warn().Str("file", name).Err(err).Msg("Skipping malformed pattern file")
			continue
		}
		if def.PatternID == "" {
			logger.Warn().Str("file", name).Msg("Skipping pattern file without pattern_id")
			continue
		}
		if _, dup := lib.byID[def.PatternID]; dup {
			logger.Warn().Str("file", name).Str("pattern_id", def.PatternID).Msg("Skipping duplicate pattern_id")
			continue
		}
		def.normalize()
		lib.Add(&def)
	}

	if lib.Len() == 0 {
		logger.Warn().Str("dir", dir).Msg("Pattern library loaded with zero patterns")
	} else {
		logger.Info().Int("patterns", lib.Len()).Str("dir", dir).Msg("Pattern library loaded")
	}
	return lib, nil
}

// NewLibrary builds a library from in-code definitions (tests, embedding).
func NewLibrary(defs ...*Definition) *Library {
	lib := &Library{byID: make(map[string]*Definition, len(defs))}
	for _, def := range defs {
		def.normalize()
		lib.Add(def)
	}
	return lib
}

// Add registers a definition. Later duplicates are ignored.
func (l *Library) Add(def *Definition) {
	if _, exists := l.byID[def.PatternID]; exists {
		return
	}
	l.defs = append(l.defs, def)
	l.byID[def.PatternID] = def
}

// Get returns a definition by id.
func (l *Library) Get(id string) (*Definition, bool) {
	def, ok := l.byID[id]
	return def, ok
}

// All returns definitions in library (insertion) order.
func (l *Library) All() []*Definition {
	return l.defs
}

// Len returns the number of loaded definitions.
func (l *Library) Len() int {
	return len(l.defs)
}
