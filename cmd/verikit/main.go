package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nikandfor/tlog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/verikit/verikit/pkg/aiger"
	"github.com/verikit/verikit/pkg/ast"
	"github.com/verikit/verikit/pkg/parser"
	"github.com/verikit/verikit/pkg/simplify"
	"github.com/verikit/verikit/pkg/vpp"
)

var version = "0.1.0"

var (
	dumpAst1  bool   // dump the AST before elaboration
	noMem2Reg bool   // never replace memories with registers
	mem2Reg   bool   // always replace memories with registers
	clkName   string // clock net name for AIGER latches
	trace     string // tlog verbosity topics

	defineFlags  []string // -D name[=value] macros
	includePaths []string // -I include directories
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "verikit: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "verikit [flags] <file.v|file.aag|file.aig>",
		Short: "verikit is a Verilog elaboration frontend",
		Long: `verikit parses a Verilog or AIGER source file, elaborates every
module (parameter substitution, generate expansion, function inlining,
memory lowering) and dumps the resulting AST.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			if trace != "" {
				tlog.SetVerbosity(trace)
			}
			return compile(args[0], out)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVar(&dumpAst1, "dump-ast1", false, "dump the AST before elaboration")
	rootCmd.Flags().BoolVar(&noMem2Reg, "no-mem2reg", false, "never replace memories with registers")
	rootCmd.Flags().BoolVar(&mem2Reg, "mem2reg", false, "replace every memory with registers")
	rootCmd.Flags().StringVar(&clkName, "clk", "clk", "clock net name for AIGER latches")
	rootCmd.Flags().StringVar(&trace, "trace", "", "enable trace logging for the given topics (e.g. simplify,mem2reg)")
	rootCmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "predefine a preprocessor macro (name or name=value)")
	rootCmd.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "add a directory to the include file search path")

	return rootCmd
}

// compile runs the full pipeline on one input file and dumps the result.
func compile(filename string, out io.Writer) error {
	modules, err := loadModules(filename)
	if err != nil {
		return err
	}

	for _, mod := range modules {
		if dumpAst1 {
			mod.Dump(out, "")
			continue
		}
		opts := simplify.Options{NoMem2Reg: noMem2Reg, Mem2RegAll: mem2Reg}
		if err := simplify.Module(mod, opts); err != nil {
			return err
		}
		mod.Dump(out, "")
	}
	return nil
}

// loadModules picks the frontend by file extension.
func loadModules(filename string) ([]*ast.Node, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening input")
	}
	defer f.Close()

	switch filepath.Ext(filename) {
	case ".aag", ".aig":
		mod, err := aiger.Parse(f, clkName)
		if err != nil {
			return nil, errors.Wrapf(err, "reading AIGER file %s", filename)
		}
		return []*ast.Node{mod}, nil
	default:
		defines := make(map[string]string)
		for _, def := range defineFlags {
			name, value, _ := strings.Cut(def, "=")
			defines[name] = value
		}
		pp := vpp.New(vpp.Options{IncludePaths: includePaths, Defines: defines})
		src, err := pp.PreprocessFile(filename)
		if err != nil {
			return nil, err
		}
		return parser.Parse(src, filename)
	}
}
