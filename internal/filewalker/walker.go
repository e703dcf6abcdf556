package filewalker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"timetable-import/internal/ingest"

	"github.com/rs/zerolog/log"
)

// SupportedExtensions lists the export formats handled by the tool.
var SupportedExtensions = map[string]bool{
	".txt":  true,
	".tsv":  true,
	".json": true,
	".html": true,
	".htm":  true,
}

// Walker traverses an export directory and dispatches files to the correct parser.
type Walker struct {
	parsers []ingest.Parser
}

// NewWalker creates a Walker whose parsers share one engine.
func NewWalker(engine *ingest.Engine) *Walker {
	return &Walker{
		parsers: []ingest.Parser{
			ingest.NewTextParser(engine),
			ingest.NewJSONParser(engine),
			ingest.NewHTMLParser(engine),
		},
	}
}

// FileEntry represents a discovered file ready for processing.
type FileEntry struct {
	Path   string
	Ext    string
	Parser ingest.Parser
}

// Walk discovers all supported files under the given root directory.
func (w *Walker) Walk(root string) ([]FileEntry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	var entries []FileEntry

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error walking path")
			return nil
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !SupportedExtensions[ext] {
			return nil
		}

		if p := w.parserFor(ext); p != nil {
			entries = append(entries, FileEntry{Path: path, Ext: ext, Parser: p})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	log.Info().Int("count", len(entries)).Str("root", root).Msg("Discovered timetable files")
	return entries, nil
}

// ParserFor returns the parser for a single file path, or an error for an
// unsupported extension.
func (w *Walker) ParserFor(path string) (ingest.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if p := w.parserFor(ext); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("unsupported file type %q", ext)
}

func (w *Walker) parserFor(ext string) ingest.Parser {
	for _, p := range w.parsers {
		if p.CanParse(ext) {
			return p
		}
	}
	return nil
}

// ParseFile parses a single file using the appropriate parser.
func (w *Walker) ParseFile(entry FileEntry) (*ingest.Result, error) {
	return entry.Parser.Parse(entry.Path)
}
