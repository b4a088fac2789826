// Package vpp handles Verilog preprocessing: `define/`undef substitution,
// `ifdef/`ifndef/`else/`endif conditionals, and `include resolution.
package vpp

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Options configures the preprocessing step
type Options struct {
	IncludePaths []string          // `include search directories
	Defines      map[string]string // predefined macros (name -> value, empty string for simple define)
}

// Preprocessor expands compiler directives in Verilog source text.
type Preprocessor struct {
	opts    Options
	defines map[string]string
}

// New creates a preprocessor with the given options.
func New(opts Options) *Preprocessor {
	pp := &Preprocessor{opts: opts, defines: make(map[string]string)}
	for name, value := range opts.Defines {
		pp.defines[name] = value
	}
	return pp
}

// PreprocessFile reads and preprocesses a source file.
func (pp *Preprocessor) PreprocessFile(filename string) (string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", errors.Wrap(err, "reading source file")
	}
	return pp.Preprocess(string(data), filepath.Dir(filename))
}

// condState tracks one open `ifdef level.
type condState struct {
	active    bool // this branch is being emitted
	taken     bool // some branch of this conditional was emitted
	sawElse   bool
	parentOff bool // an enclosing conditional is inactive
}

// Preprocess expands the directives in src. Include files are resolved
// relative to dir first, then the configured include paths.
func (pp *Preprocessor) Preprocess(src, dir string) (string, error) {
	var out strings.Builder
	var conds []condState

	emitting := func() bool {
		for _, c := range conds {
			if !c.active || c.parentOff {
				return false
			}
		}
		return true
	}

	lines := strings.Split(src, "\n")
	for lineno := 0; lineno < len(lines); lineno++ {
		line := lines[lineno]
		trimmed := strings.TrimSpace(line)

		if !strings.HasPrefix(trimmed, "`") {
			if emitting() {
				out.WriteString(pp.expandLine(line))
			}
			out.WriteByte('\n')
			continue
		}

		directive, rest := splitDirective(trimmed[1:])
		switch directive {
		case "define":
			if emitting() {
				name, value := splitDirective(rest)
				pp.defines[name] = value
			}
			out.WriteByte('\n')
		case "undef":
			if emitting() {
				delete(pp.defines, rest)
			}
			out.WriteByte('\n')
		case "ifdef", "ifndef":
			_, defined := pp.defines[rest]
			active := defined == (directive == "ifdef")
			conds = append(conds, condState{
				active:    active,
				taken:     active,
				parentOff: !emitting(),
			})
			out.WriteByte('\n')
		case "else":
			if len(conds) == 0 {
				return "", errors.Errorf("line %d: `else without `ifdef", lineno+1)
			}
			top := &conds[len(conds)-1]
			if top.sawElse {
				return "", errors.Errorf("line %d: duplicate `else", lineno+1)
			}
			top.sawElse = true
			top.active = !top.taken
			top.taken = true
			out.WriteByte('\n')
		case "endif":
			if len(conds) == 0 {
				return "", errors.Errorf("line %d: `endif without `ifdef", lineno+1)
			}
			conds = conds[:len(conds)-1]
			out.WriteByte('\n')
		case "include":
			if !emitting() {
				out.WriteByte('\n')
				continue
			}
			name := strings.Trim(rest, `"`)
			text, incDir, err := pp.readInclude(name, dir)
			if err != nil {
				return "", errors.Wrapf(err, "line %d", lineno+1)
			}
			expanded, err := pp.Preprocess(text, incDir)
			if err != nil {
				return "", err
			}
			out.WriteString(expanded)
		case "timescale", "default_nettype", "resetall":
			// tool directives carry no synthesis semantics here
			out.WriteByte('\n')
		default:
			// a macro use at the start of a line
			if emitting() {
				out.WriteString(pp.expandLine(line))
			}
			out.WriteByte('\n')
		}
	}

	if len(conds) != 0 {
		return "", errors.New("unterminated `ifdef")
	}
	result := out.String()
	return strings.TrimSuffix(result, "\n"), nil
}

// readInclude locates and reads an include file.
func (pp *Preprocessor) readInclude(name, dir string) (string, string, error) {
	paths := append([]string{dir}, pp.opts.IncludePaths...)
	for _, p := range paths {
		full := filepath.Join(p, name)
		data, err := os.ReadFile(full)
		if err == nil {
			return string(data), filepath.Dir(full), nil
		}
	}
	return "", "", errors.Errorf("include file %q not found", name)
}

// expandLine substitutes `NAME macro uses in one source line, skipping
// string literals and comments.
func (pp *Preprocessor) expandLine(line string) string {
	var out strings.Builder
	inString := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case inString:
			out.WriteByte(ch)
			if ch == '"' && (i == 0 || line[i-1] != '\\') {
				inString = false
			}
		case ch == '"':
			inString = true
			out.WriteByte(ch)
		case ch == '/' && i+1 < len(line) && line[i+1] == '/':
			out.WriteString(line[i:])
			return out.String()
		case ch == '`':
			j := i + 1
			for j < len(line) && (isIdentChar(line[j]) || (j == i+1 && isDigit(line[j]))) {
				j++
			}
			name := line[i+1 : j]
			if value, ok := pp.defines[name]; ok {
				// macro values may contain macro uses themselves
				out.WriteString(pp.expandLine(value))
			} else {
				out.WriteString(line[i:j])
			}
			i = j - 1
		default:
			out.WriteByte(ch)
		}
	}
	return out.String()
}

func isIdentChar(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || isDigit(ch)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func splitDirective(s string) (string, string) {
	s = strings.TrimSpace(s)
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\t' {
			return s[:i], strings.TrimSpace(s[i:])
		}
	}
	return s, ""
}
