// Package ingest routes raw timetable input to the structural parser or the
// recovery engine, validates the outcome and flattens it into entries.
package ingest

import (
	"errors"
	"fmt"
	"regexp"

	"timetable-import/internal/parser"
	"timetable-import/internal/recovery"
	"timetable-import/internal/schedule"
	"timetable-import/internal/textutil"

	"github.com/rs/zerolog/log"
)

// ErrUnusable wraps every reason an input cannot be imported.
var ErrUnusable = errors.New("unusable timetable")

// Method names the engine that produced a document.
type Method string

const (
	MethodStructural Method = "structural"
	MethodRecovery   Method = "recovery"
)

// Result is one parsed input.
type Result struct {
	// Source is the file path, or empty for text handed in directly.
	Source   string             `json:"source,omitempty"`
	Format   string             `json:"format"`
	Method   Method             `json:"method"`
	Stage    string             `json:"stage,omitempty"`
	Hash     string             `json:"hash"`
	Document *schedule.Document `json:"document"`
	Entries  []schedule.Entry   `json:"entries"`
}

// Engine holds the parser rules shared by every input.
type Engine struct {
	parser *parser.Parser
}

// NewEngine creates an engine around a configured structural parser.
func NewEngine(p *parser.Parser) *Engine {
	if p == nil {
		p = parser.New(parser.DefaultOptions())
	}
	return &Engine{parser: p}
}

var defaultEngine = NewEngine(nil)

// ParseText parses raw text with the default rules.
func ParseText(raw string) (*Result, error) {
	return defaultEngine.ParseText(raw)
}

var (
	jsonStart = regexp.MustCompile("^\\s*(?:```[A-Za-z]*\\s*)?\\{")
	jsonDays  = regexp.MustCompile(`"days"\s*:\s*\[`)
)

// LooksLikeJSON reports whether raw is a (possibly fenced or truncated) JSON
// document rather than copy-pasted timetable text.
func LooksLikeJSON(raw string) bool {
	return jsonStart.MatchString(raw) || jsonDays.MatchString(raw)
}

// ParseText sends JSON-shaped input to recovery and everything else to the
// structural parser.
func (e *Engine) ParseText(raw string) (*Result, error) {
	if LooksLikeJSON(raw) {
		return e.ParseJSON(raw)
	}
	return e.ParseStructural(raw)
}

// ParseStructural runs the structural parser regardless of input shape.
func (e *Engine) ParseStructural(raw string) (*Result, error) {
	doc := e.parser.Parse(raw)
	return finish(&Result{Format: "text", Method: MethodStructural, Hash: textutil.Hash(raw)}, doc)
}

// ParseJSON runs the recovery engine regardless of input shape.
func (e *Engine) ParseJSON(raw string) (*Result, error) {
	res, err := recovery.Recover(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnusable, err)
	}
	return finish(&Result{
		Format: "json",
		Method: MethodRecovery,
		Stage:  res.Stage.String(),
		Hash:   textutil.Hash(raw),
	}, res.Document)
}

func finish(res *Result, doc *schedule.Document) (*Result, error) {
	if err := schedule.Validate(doc); err != nil {
		log.Warn().Err(err).Str("method", string(res.Method)).Msg("Timetable has no usable structure")
		return nil, fmt.Errorf("%w: %w", ErrUnusable, err)
	}

	res.Document = doc
	res.Entries = schedule.ToEntries(doc)
	if res.Entries == nil {
		res.Entries = []schedule.Entry{}
	}

	log.Debug().
		Str("method", string(res.Method)).
		Int("days", len(doc.Days)).
		Int("periods", len(doc.Periods)).
		Int("entries", len(res.Entries)).
		Msg("Timetable parsed")
	return res, nil
}
