package movie

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format identifies a movie source encoding.
type Format int

const (
	FormatText Format = iota // asciimation text encoding
	FormatYAML               // YAML sequence of frame scalars
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// ErrUnknownFormat is returned for file extensions no loader understands.
var ErrUnknownFormat = errors.New("movie: unknown movie format")

// FormatForPath picks the format for a file path by extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return FormatText, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// LoadFile loads a movie from a local file, picking the format by extension.
func LoadFile(path string, opts Options) (*Movie, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("movie: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, format, opts)
}

// Load reads a movie in the given format.
func Load(r io.Reader, format Format, opts Options) (*Movie, error) {
	switch format {
	case FormatText:
		return LoadText(r, opts)
	case FormatYAML:
		return LoadYAML(r, opts)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}
}

// LoadText parses the asciimation text encoding: repeating blocks of one
// display-time line (in ticks) followed by FrameHeight lines of frame body.
// The final block may be shorter; missing body lines stay blank.
func LoadText(r io.Reader, opts Options) (*Movie, error) {
	opts = opts.withDefaults()
	linesPerFrame := opts.FrameHeight + TimeBarHeight
	tick := opts.Tick()

	var frames []Frame
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNum := 0; scanner.Scan(); lineNum++ {
		line := scanner.Text()
		if lineNum%linesPerFrame == 0 {
			ticks, err := strconv.Atoi(strings.TrimSpace(line))
			if err != nil {
				return nil, fmt.Errorf("movie: line %d: bad display time %q: %w", lineNum+1, line, err)
			}
			if ticks < 0 {
				return nil, fmt.Errorf("movie: line %d: %w", lineNum+1, ErrNegativeDuration)
			}
			frames = append(frames, Frame{Duration: time.Duration(ticks) * tick})
			continue
		}
		last := &frames[len(frames)-1]
		last.Lines = append(last.Lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("movie: read: %w", err)
	}
	return New(frames, opts)
}

// LoadYAML parses a YAML movie: one or more documents, each either a single
// multi-line scalar or a sequence of them, one scalar per frame. Every frame
// is shown for DefaultTicks ticks.
func LoadYAML(r io.Reader, opts Options) (*Movie, error) {
	opts = opts.withDefaults()
	duration := time.Duration(opts.DefaultTicks) * opts.Tick()

	var frames []Frame
	dec := yaml.NewDecoder(r)
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("movie: decode yaml: %w", err)
		}
		for _, body := range scalarValues(&doc) {
			frames = append(frames, Frame{Lines: frameLines(body), Duration: duration})
		}
	}
	return New(frames, opts)
}

// scalarValues collects the scalar values under a decoded YAML node: a bare
// scalar is one frame, a sequence contributes one frame per scalar entry.
func scalarValues(n *yaml.Node) []string {
	switch n.Kind {
	case yaml.DocumentNode:
		var out []string
		for _, c := range n.Content {
			out = append(out, scalarValues(c)...)
		}
		return out
	case yaml.SequenceNode:
		var out []string
		for _, c := range n.Content {
			out = append(out, scalarValues(c)...)
		}
		return out
	case yaml.ScalarNode:
		return []string{n.Value}
	default:
		return nil
	}
}

// frameLines splits a frame scalar into lines, dropping the single trailing
// blank line block scalars carry.
func frameLines(body string) []string {
	lines := strings.Split(body, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
