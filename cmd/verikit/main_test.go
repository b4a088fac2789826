package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompileVerilog(t *testing.T) {
	path := writeTemp(t, "t.v", `module m;
  parameter [7:0] P = 2 * 3;
endmodule
`)
	out, err := runCLI(t, path)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if !strings.Contains(out, "module 'm'") {
		t.Errorf("dump missing module:\n%s", out)
	}
	if !strings.Contains(out, "constant 8'00000110") {
		t.Errorf("parameter did not fold:\n%s", out)
	}
}

func TestDumpAst1SkipsElaboration(t *testing.T) {
	path := writeTemp(t, "t.v", `module m;
  parameter [7:0] P = 2 * 3;
endmodule
`)
	out, err := runCLI(t, "--dump-ast1", path)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if !strings.Contains(out, "mul") {
		t.Errorf("--dump-ast1 must show the unfolded tree:\n%s", out)
	}
	dumpAst1 = false
}

func TestCompileAiger(t *testing.T) {
	path := writeTemp(t, "t.aag", `aag 3 2 0 1 1
2
4
6
6 2 4
`)
	out, err := runCLI(t, path)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if !strings.Contains(out, "module 'aig'") {
		t.Errorf("dump missing aig module:\n%s", out)
	}
	if !strings.Contains(out, "bit_and") {
		t.Errorf("dump missing AND gate:\n%s", out)
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := runCLI(t, "/nonexistent/file.v"); err == nil {
		t.Fatal("missing input file must fail")
	}
}
