package ingest

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Parser is implemented by every file format adapter.
type Parser interface {
	// CanParse returns true if this parser handles the given file extension.
	CanParse(ext string) bool
	// Parse reads a timetable file.
	Parse(filePath string) (*Result, error)
}

// TextParser handles portal copy-paste and spreadsheet TSV exports.
type TextParser struct {
	engine *Engine
}

func NewTextParser(e *Engine) *TextParser { return &TextParser{engine: e} }

func (p *TextParser) CanParse(ext string) bool {
	return ext == ".txt" || ext == ".tsv"
}

func (p *TextParser) Parse(filePath string) (*Result, error) {
	lines, err := readLines(filePath)
	if err != nil {
		return nil, err
	}

	res, err := p.engine.ParseText(strings.Join(lines, "\n"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	res.Source = filePath
	if res.Method == MethodStructural && detectTSV(lines) {
		res.Format = "tsv"
	}
	return res, nil
}

// JSONParser handles saved AI responses, which may be truncated.
type JSONParser struct {
	engine *Engine
}

func NewJSONParser(e *Engine) *JSONParser { return &JSONParser{engine: e} }

func (p *JSONParser) CanParse(ext string) bool {
	return ext == ".json"
}

func (p *JSONParser) Parse(filePath string) (*Result, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read json file: %w", err)
	}

	res, err := p.engine.ParseJSON(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	res.Source = filePath
	return res, nil
}

func readLines(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open text file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan text file: %w", err)
	}
	return lines, nil
}

// detectTSV checks whether most non-empty lines carry the same number of tabs.
func detectTSV(lines []string) bool {
	tabCounts := make(map[int]int)
	nonEmpty := 0

	for _, line := range lines[:min(len(lines), 20)] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		nonEmpty++
		if n := strings.Count(line, "\t"); n > 0 {
			tabCounts[n]++
		}
	}
	if nonEmpty < 2 {
		return false
	}

	best := 0
	for _, c := range tabCounts {
		best = max(best, c)
	}
	return float64(best)/float64(nonEmpty) > 0.6
}
