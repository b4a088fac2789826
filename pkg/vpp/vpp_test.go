package vpp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func preprocess(t *testing.T, src string, opts Options) string {
	t.Helper()
	out, err := New(opts).Preprocess(src, ".")
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}
	return out
}

func TestDefineSubstitution(t *testing.T) {
	out := preprocess(t, "`define WIDTH 8\nwire [`WIDTH-1:0] w;", Options{})
	if !strings.Contains(out, "wire [8-1:0] w;") {
		t.Errorf("substitution failed:\n%s", out)
	}
}

func TestNestedDefine(t *testing.T) {
	out := preprocess(t, "`define A 4\n`define B `A\nassign x = `B;", Options{})
	if !strings.Contains(out, "assign x = 4;") {
		t.Errorf("nested substitution failed:\n%s", out)
	}
}

func TestUndef(t *testing.T) {
	out := preprocess(t, "`define X 1\n`undef X\nassign a = `X;", Options{})
	if !strings.Contains(out, "assign a = `X;") {
		t.Errorf("undefined macro must stay verbatim:\n%s", out)
	}
}

func TestIfdef(t *testing.T) {
	src := "`ifdef SIM\nwire sim_only;\n`else\nwire synth_only;\n`endif"
	out := preprocess(t, src, Options{})
	if strings.Contains(out, "sim_only") || !strings.Contains(out, "synth_only") {
		t.Errorf("ifdef selection failed:\n%s", out)
	}
	out = preprocess(t, src, Options{Defines: map[string]string{"SIM": ""}})
	if !strings.Contains(out, "sim_only") || strings.Contains(out, "synth_only") {
		t.Errorf("ifdef with define failed:\n%s", out)
	}
}

func TestNestedIfdef(t *testing.T) {
	src := "`ifdef A\n`ifdef B\nboth\n`endif\nonly_a\n`endif"
	out := preprocess(t, src, Options{Defines: map[string]string{"A": ""}})
	if strings.Contains(out, "both") || !strings.Contains(out, "only_a") {
		t.Errorf("nested conditional failed:\n%s", out)
	}
}

func TestUnterminatedIfdefFails(t *testing.T) {
	if _, err := New(Options{}).Preprocess("`ifdef A\nx", "."); err == nil {
		t.Fatal("unterminated ifdef must fail")
	}
}

func TestMacroNotExpandedInString(t *testing.T) {
	out := preprocess(t, "`define X 1\ninitial $display(\"`X\");", Options{})
	if !strings.Contains(out, "\"`X\"") {
		t.Errorf("macro expanded inside string literal:\n%s", out)
	}
}

func TestInclude(t *testing.T) {
	dir := t.TempDir()
	inc := filepath.Join(dir, "defs.vh")
	if err := os.WriteFile(inc, []byte("`define FROM_INCLUDE 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := "`include \"defs.vh\"\nassign x = `FROM_INCLUDE;"
	out, err := New(Options{}).Preprocess(src, dir)
	if err != nil {
		t.Fatalf("preprocess failed: %v", err)
	}
	if !strings.Contains(out, "assign x = 1;") {
		t.Errorf("include not applied:\n%s", out)
	}
}

func TestMissingIncludeFails(t *testing.T) {
	if _, err := New(Options{}).Preprocess("`include \"nope.vh\"", t.TempDir()); err == nil {
		t.Fatal("missing include must fail")
	}
}

func TestLineCommentNotExpanded(t *testing.T) {
	out := preprocess(t, "`define X 1\n// use `X here\nassign a = `X;", Options{})
	if !strings.Contains(out, "// use `X here") {
		t.Errorf("comment rewritten:\n%s", out)
	}
	if !strings.Contains(out, "assign a = 1;") {
		t.Errorf("code not rewritten:\n%s", out)
	}
}
