package movie

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{path: "sw1.txt", want: FormatText},
		{path: "movies/short_intro.yaml", want: FormatYAML},
		{path: "clip.YML", want: FormatYAML},
		{path: "movie.pkl", wantErr: true},
		{path: "noext", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatForPath(tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFormat) {
					t.Fatalf("FormatForPath(%q) error = %v, want ErrUnknownFormat", tt.path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FormatForPath(%q) error = %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("FormatForPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestLoadText(t *testing.T) {
	// Two frames at 10x3: display times 2 and 3 ticks.
	src := strings.Join([]string{
		"2",
		"hello",
		"world",
		"",
		"3",
		"goodbye",
		"",
		"",
	}, "\n")

	opts := testOptions()
	m, err := LoadText(strings.NewReader(src), opts)
	if err != nil {
		t.Fatalf("LoadText() error = %v", err)
	}

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	tick := opts.Tick()
	if got, want := m.Frame(0).Duration, 2*tick; got != want {
		t.Errorf("frame 0 duration = %v, want %v", got, want)
	}
	if got, want := m.Frame(1).Duration, 3*tick; got != want {
		t.Errorf("frame 1 duration = %v, want %v", got, want)
	}
	if got, want := m.Duration(), 5*tick; got != want {
		t.Errorf("Duration() = %v, want %v", got, want)
	}
	if got, want := m.Frame(0).Lines[0], "     hello     "; got != want {
		t.Errorf("frame 0 line 0 = %q, want %q", got, want)
	}
}

func TestLoadTextShortFinalBlock(t *testing.T) {
	src := "1\nonly line\n"
	m, err := LoadText(strings.NewReader(src), testOptions())
	if err != nil {
		t.Fatalf("LoadText() error = %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
	if got := len(m.Frame(0).Lines); got != 3 {
		t.Errorf("frame padded to %d lines, want 3", got)
	}
}

func TestLoadTextErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "empty input", src: ""},
		{name: "bad display time", src: "not a number\nabc\n"},
		{name: "negative display time", src: "-4\nabc\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadText(strings.NewReader(tt.src), testOptions()); err == nil {
				t.Error("LoadText() error = nil, want error")
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	src := `- |
  frame one
  line two
- |
  frame two
`
	opts := testOptions()
	m, err := LoadYAML(strings.NewReader(src), opts)
	if err != nil {
		t.Fatalf("LoadYAML() error = %v", err)
	}

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	if got, want := m.Frame(0).Duration, opts.Tick(); got != want {
		t.Errorf("frame 0 duration = %v, want %v", got, want)
	}
	if got, want := m.Frame(0).Lines[0], "     frame one "; got != want {
		t.Errorf("frame 0 line 0 = %q, want %q", got, want)
	}
	if got, want := m.Frame(1).Lines[0], "     frame two "; got != want {
		t.Errorf("frame 1 line 0 = %q, want %q", got, want)
	}
}

func TestLoadYAMLDocumentStream(t *testing.T) {
	src := "--- |\n  one\n--- |\n  two\n"
	m, err := LoadYAML(strings.NewReader(src), testOptions())
	if err != nil {
		t.Fatalf("LoadYAML() error = %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestLoadYAMLEmpty(t *testing.T) {
	if _, err := LoadYAML(strings.NewReader(""), testOptions()); !errors.Is(err, ErrNoFrames) {
		t.Errorf("LoadYAML() error = %v, want ErrNoFrames", err)
	}
}

func TestFrameLines(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "block scalar trailing newline", body: "a\nb\n", want: 2},
		{name: "no trailing newline", body: "a\nb", want: 2},
		{name: "single line", body: "a", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := frameLines(tt.body); len(got) != tt.want {
				t.Errorf("frameLines(%q) = %d lines, want %d", tt.body, len(got), tt.want)
			}
		})
	}
}

func TestLoadDispatch(t *testing.T) {
	if _, err := Load(strings.NewReader("1\nx\n"), FormatText, testOptions()); err != nil {
		t.Errorf("Load(FormatText) error = %v", err)
	}
	if _, err := Load(strings.NewReader("- |\n  x\n"), FormatYAML, testOptions()); err != nil {
		t.Errorf("Load(FormatYAML) error = %v", err)
	}
	if _, err := Load(strings.NewReader(""), Format(99), testOptions()); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Load(99) error = %v, want ErrUnknownFormat", err)
	}
}

func TestTickDuration(t *testing.T) {
	opts := Options{TickRate: 15}
	if got, want := opts.Tick(), time.Second/15; got != want {
		t.Errorf("Tick() = %v, want %v", got, want)
	}
}
