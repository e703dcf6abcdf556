// Package recovery rebuilds schedule documents from JSON that a text
// generation model produced, including responses cut off mid-token.
package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"timetable-import/internal/schedule"
	"timetable-import/internal/textutil"

	"github.com/rs/zerolog/log"
)

// ErrUnrecoverable is returned when not even the days and periods of the
// document can be located.
var ErrUnrecoverable = errors.New("unrecoverable truncated response")

// Stage identifies the strategy that produced a document.
type Stage int

const (
	StageDirect Stage = iota + 1
	StageCleanup
	StageReconstructed
	StageSkeleton
)

func (s Stage) String() string {
	switch s {
	case StageDirect:
		return "direct"
	case StageCleanup:
		return "cleanup"
	case StageReconstructed:
		return "reconstructed"
	case StageSkeleton:
		return "skeleton"
	default:
		return "unknown"
	}
}

// Result is a recovered document with a trace of how it was obtained.
type Result struct {
	Document *schedule.Document
	Stage    Stage
	// Blocks is the number of complete day-blocks kept by reconstruction.
	Blocks int
	// Dropped counts day-blocks discarded as partial or invalid.
	Dropped int
	// Truncated is set when the input ended inside a string literal.
	Truncated bool
}

// RecoverTruncatedResponse returns the best document recoverable from text.
func RecoverTruncatedResponse(text string) (*schedule.Document, error) {
	res, err := Recover(text)
	if err != nil {
		return nil, err
	}
	return res.Document, nil
}

// Recover tries progressively more aggressive strategies: a direct parse, a
// light cleanup parse, structural reconstruction from complete day-blocks,
// and finally an empty-classes skeleton. It fails only when the days or
// periods arrays cannot be found.
func Recover(text string) (*Result, error) {
	body := objectText(text)

	candidates := []string{body}
	if end := strings.LastIndex(body, "}"); end >= 0 && end < len(body)-1 {
		candidates = append(candidates, body[:end+1])
	}

	for _, c := range candidates {
		if doc, err := decode(c); err == nil {
			return done(&Result{Document: doc, Stage: StageDirect}), nil
		}
	}
	for _, c := range candidates {
		if doc, err := decode(cleanup(c)); err == nil {
			return done(&Result{Document: doc, Stage: StageCleanup}), nil
		}
	}

	return reconstruct(cleanup(body))
}

var (
	fencePattern   = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)(?:```|$)")
	daysKey        = regexp.MustCompile(`"days"\s*:\s*\[`)
	periodsKey     = regexp.MustCompile(`"periods"\s*:\s*\[`)
	classesOpening = regexp.MustCompile(`"classes"\s*:\s*\{`)
)

// objectText strips a markdown fence and any prose before the first brace.
func objectText(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil && strings.Contains(m[1], "{") {
		text = m[1]
	}
	if start := strings.Index(text, "{"); start >= 0 {
		text = text[start:]
	}
	return strings.TrimSpace(text)
}

// decode parses a complete document. Objects without a days key are
// rejected so unrelated JSON is not mistaken for an empty timetable.
func decode(s string) (*schedule.Document, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &keys); err != nil {
		return nil, err
	}
	if _, ok := keys["days"]; !ok {
		return nil, errors.New("missing days")
	}

	var doc schedule.Document
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, err
	}
	if doc.Days == nil {
		doc.Days = []string{}
	}
	if doc.Periods == nil {
		doc.Periods = []schedule.Period{}
	}
	if doc.Classes == nil {
		doc.Classes = make(map[string]map[string][]schedule.ClassEntry)
	}
	return &doc, nil
}

// reconstruct reassembles a minimal document from the days and periods
// arrays plus every day-block that was captured whole.
func reconstruct(s string) (*Result, error) {
	truncated := endsInString(s)

	days, ok := arrayAfter(s, daysKey)
	if !ok {
		return nil, fmt.Errorf("%w: days array not found in %q", ErrUnrecoverable, textutil.Truncate(s, 80))
	}
	periods, ok := arrayAfter(s, periodsKey)
	if !ok {
		return nil, fmt.Errorf("%w: periods array not found", ErrUnrecoverable)
	}

	var blocks []string
	dropped := 0
	if loc := classesOpening.FindStringIndex(s); loc != nil {
		captured, partial := splitBlocks(s[loc[1]:])
		dropped = partial
		for _, block := range captured {
			block = cleanup(block)
			var probe map[string]map[string][]schedule.ClassEntry
			if err := json.Unmarshal([]byte("{"+block+"}"), &probe); err != nil {
				log.Debug().Err(err).Str("block", textutil.Truncate(block, 40)).Msg("Discarding invalid day-block")
				dropped++
				continue
			}
			blocks = append(blocks, block)
		}
	}

	shell := `{"days":` + days + `,"periods":` + periods + `,"classes":{`
	if len(blocks) > 0 {
		doc, err := decode(shell + strings.Join(blocks, ",") + `}}`)
		if err == nil {
			return done(&Result{
				Document:  doc,
				Stage:     StageReconstructed,
				Blocks:    len(blocks),
				Dropped:   dropped,
				Truncated: truncated,
			}), nil
		}
		log.Warn().Err(err).Int("blocks", len(blocks)).Msg("Reassembled document did not parse")
		dropped += len(blocks)
	}

	doc, err := decode(shell + `}}`)
	if err != nil {
		return nil, fmt.Errorf("%w: days/periods do not parse: %v", ErrUnrecoverable, err)
	}
	return done(&Result{
		Document:  doc,
		Stage:     StageSkeleton,
		Dropped:   dropped,
		Truncated: truncated,
	}), nil
}

// arrayAfter returns the complete array value that follows a key match.
func arrayAfter(s string, key *regexp.Regexp) (string, bool) {
	loc := key.FindStringIndex(s)
	if loc == nil {
		return "", false
	}
	open := loc[1] - 1
	end := matchClose(s, open)
	if end < 0 {
		return "", false
	}
	return s[open : end+1], true
}

func done(res *Result) *Result {
	ev := log.Info()
	if res.Stage >= StageReconstructed {
		ev = log.Warn()
	}
	ev.Str("stage", res.Stage.String()).
		Int("days", len(res.Document.Days)).
		Int("periods", len(res.Document.Periods)).
		Int("day_blocks", len(res.Document.Classes)).
		Int("dropped_blocks", res.Dropped).
		Bool("truncated", res.Truncated).
		Msg("Recovered timetable document")
	return res
}
