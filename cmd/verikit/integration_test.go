package main

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/verikit/verikit/pkg/diag"
	"github.com/verikit/verikit/pkg/parser"
	"github.com/verikit/verikit/pkg/simplify"
)

// IntegrationTestSpec represents a single integration test case
type IntegrationTestSpec struct {
	Name      string   `yaml:"name"`
	Input     string   `yaml:"input"`
	Expect    []string `yaml:"expect"`     // Strings that must appear in the dumped AST
	ExpectNot []string `yaml:"expect_not"` // Strings that must NOT appear in the dumped AST
	Error     string   `yaml:"error"`      // Substring of a required elaboration error
	Skip      string   `yaml:"skip,omitempty"`
}

// IntegrationTestFile represents the integration.yaml file structure
type IntegrationTestFile struct {
	Tests []IntegrationTestSpec `yaml:"tests"`
}

// TestIntegration parses, elaborates and dumps every YAML case and checks
// the dumped output against the expectations.
func TestIntegration(t *testing.T) {
	diag.Output = io.Discard

	data, err := os.ReadFile("../../testdata/integration.yaml")
	if err != nil {
		t.Fatalf("integration.yaml not found: %v", err)
	}

	var testFile IntegrationTestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse integration.yaml: %v", err)
	}

	for _, tc := range testFile.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}

			modules, err := parser.Parse(tc.Input, tc.Name+".v")
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}

			var out bytes.Buffer
			for _, mod := range modules {
				err = simplify.Module(mod, simplify.Options{})
				if err != nil {
					break
				}
				mod.Dump(&out, "")
			}

			if tc.Error != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got success:\n%s", tc.Error, out.String())
				}
				if !strings.Contains(err.Error(), tc.Error) {
					t.Fatalf("error = %q, want substring %q", err.Error(), tc.Error)
				}
				return
			}
			if err != nil {
				t.Fatalf("elaboration failed: %v", err)
			}

			dump := out.String()
			for _, exp := range tc.Expect {
				if !strings.Contains(dump, exp) {
					t.Errorf("output does not contain %q:\n%s", exp, dump)
				}
			}
			for _, exp := range tc.ExpectNot {
				if strings.Contains(dump, exp) {
					t.Errorf("output must not contain %q:\n%s", exp, dump)
				}
			}
		})
	}
}
