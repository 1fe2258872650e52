package symbolicate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// MapParseError marks one artifact's source map as unusable. The frames
// that needed it stay raw; capture never fails on it.
type MapParseError struct {
	ArtifactID uint64
	Err        error
}

func (e *MapParseError) Error() string {
	return fmt.Sprintf("parse source map (artifact %d): %v", e.ArtifactID, e.Err)
}

func (e *MapParseError) Unwrap() error { return e.Err }

// mappingEntry is one decoded segment, absolute values. sourceIndex and
// nameIndex are -1 when the segment did not carry them.
type mappingEntry struct {
	generatedCol int
	sourceIndex  int
	origLine     int
	origCol      int
	nameIndex    int
}

// ParsedSourceMap is the decoded form of one uploaded map. Immutable once
// built, safe for concurrent readers.
type ParsedSourceMap struct {
	Sources        []string
	SourcesContent []string
	Names          []string
	lines          [][]mappingEntry
}

// Location is one successful lookup, 0-based like the map itself.
type Location struct {
	SourceIndex int
	Source      string
	Line        int
	Col         int
	Name        string
}

type sourceMapFile struct {
	Version        int      `json:"version"`
	SourceRoot     string   `json:"sourceRoot"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// ParseSourceMap decodes an uploaded map. Input is untrusted: size is
// bounded before parsing and every structural defect comes back as an
// error instead of reaching the lookup path.
func ParseSourceMap(content []byte, maxBytes int64) (*ParsedSourceMap, error) {
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return nil, fmt.Errorf("map is %d bytes, limit %d", len(content), maxBytes)
	}

	var file sourceMapFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, err
	}
	if file.Version != 3 {
		return nil, fmt.Errorf("unsupported source map version %d", file.Version)
	}
	if len(file.Sources) == 0 {
		return nil, errors.New("map has no sources")
	}
	if file.Mappings == "" {
		return nil, errors.New("map has no mappings")
	}

	sources := file.Sources
	if root := strings.TrimSuffix(file.SourceRoot, "/"); root != "" {
		sources = make([]string, len(file.Sources))
		for i, s := range file.Sources {
			sources[i] = root + "/" + s
		}
	}

	lines, err := parseMappings(file.Mappings)
	if err != nil {
		return nil, err
	}

	return &ParsedSourceMap{
		Sources:        sources,
		SourcesContent: file.SourcesContent,
		Names:          file.Names,
		lines:          lines,
	}, nil
}

// parseMappings walks the ;-separated lines and ,-separated segments.
// Five running counters: generatedCol resets at every line, the other
// four deltas accumulate across the whole map.
func parseMappings(field string) ([][]mappingEntry, error) {
	var (
		sourceIndex int
		origLine    int
		origCol     int
		nameIndex   int
	)

	rawLines := strings.Split(field, ";")
	lines := make([][]mappingEntry, len(rawLines))

	for lineNo, rawLine := range rawLines {
		if rawLine == "" {
			continue
		}
		generatedCol := 0
		var entries []mappingEntry

		for _, segment := range strings.Split(rawLine, ",") {
			if segment == "" {
				continue
			}
			values, err := DecodeVLQ(segment)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if n := len(values); n != 1 && n != 4 && n != 5 {
				return nil, fmt.Errorf("line %d: segment has %d fields", lineNo, len(values))
			}

			generatedCol += values[0]
			if generatedCol < 0 {
				return nil, fmt.Errorf("line %d: negative generated column", lineNo)
			}
			entry := mappingEntry{
				generatedCol: generatedCol,
				sourceIndex:  -1,
				nameIndex:    -1,
			}
			if len(values) >= 4 {
				sourceIndex += values[1]
				origLine += values[2]
				origCol += values[3]
				if sourceIndex < 0 || origLine < 0 || origCol < 0 {
					return nil, fmt.Errorf("line %d: negative mapping value", lineNo)
				}
				entry.sourceIndex = sourceIndex
				entry.origLine = origLine
				entry.origCol = origCol
			}
			if len(values) == 5 {
				nameIndex += values[4]
				if nameIndex < 0 {
					return nil, fmt.Errorf("line %d: negative name index", lineNo)
				}
				entry.nameIndex = nameIndex
			}
			entries = append(entries, entry)
		}

		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].generatedCol < entries[j].generatedCol
		})
		lines[lineNo] = entries
	}

	return lines, nil
}

// Lookup finds the entry with the greatest generated column that does not
// exceed col on the given generated line. Both arguments are 0-based.
func (m *ParsedSourceMap) Lookup(line int, col int) (Location, bool) {
	if line < 0 || line >= len(m.lines) || col < 0 {
		return Location{}, false
	}
	entries := m.lines[line]
	if len(entries) == 0 {
		return Location{}, false
	}

	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].generatedCol > col
	})
	if idx == 0 {
		return Location{}, false
	}

	entry := entries[idx-1]
	if entry.sourceIndex < 0 || entry.sourceIndex >= len(m.Sources) {
		return Location{}, false
	}

	loc := Location{
		SourceIndex: entry.sourceIndex,
		Source:      m.Sources[entry.sourceIndex],
		Line:        entry.origLine,
		Col:         entry.origCol,
	}
	if entry.nameIndex >= 0 && entry.nameIndex < len(m.Names) {
		loc.Name = m.Names[entry.nameIndex]
	}
	return loc, true
}

// Context slices ±around lines of embedded source around a 0-based line.
// ok is false when the map carries no content for that source.
func (m *ParsedSourceMap) Context(sourceIndex int, line int, around int) (pre []string, contextLine string, post []string, ok bool) {
	if sourceIndex < 0 || sourceIndex >= len(m.SourcesContent) || around < 0 {
		return nil, "", nil, false
	}
	content := m.SourcesContent[sourceIndex]
	if content == "" {
		return nil, "", nil, false
	}

	sourceLines := strings.Split(content, "\n")
	if line < 0 || line >= len(sourceLines) {
		return nil, "", nil, false
	}

	start := line - around
	if start < 0 {
		start = 0
	}
	end := line + around + 1
	if end > len(sourceLines) {
		end = len(sourceLines)
	}

	pre = append(pre, sourceLines[start:line]...)
	post = append(post, sourceLines[line+1:end]...)
	return pre, sourceLines[line], post, true
}
