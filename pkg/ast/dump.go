package ast

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/verikit/verikit/pkg/logic"
)

// Dump writes an indented one-node-per-line rendering of the tree. The
// output is stable and is what the CLI prints and the integration tests
// match against.
func (n *Node) Dump(w io.Writer, indent string) {
	fmt.Fprintf(w, "%s%s", indent, n.Type)
	if n.Str != "" {
		fmt.Fprintf(w, " '%s'", n.Str)
	}
	switch n.Type {
	case Constant:
		if n.IsString {
			fmt.Fprintf(w, " %q", logic.FromBits(n.Bits).AsString())
		} else {
			fmt.Fprintf(w, " %d'%s", len(n.Bits), logic.FromBits(n.Bits).String())
		}
	case RealValue:
		fmt.Fprintf(w, " %g", n.RealValue)
	}
	if n.IsSigned {
		fmt.Fprint(w, " signed")
	}
	if n.IsReg {
		fmt.Fprint(w, " reg")
	}
	if n.IsInput {
		fmt.Fprint(w, " input")
	}
	if n.IsOutput {
		fmt.Fprint(w, " output")
	}
	if n.PortID > 0 {
		fmt.Fprintf(w, " port=%d", n.PortID)
	}
	if n.RangeValid {
		fmt.Fprintf(w, " [%d:%d]", n.RangeLeft, n.RangeRight)
	}
	fmt.Fprintln(w)

	for _, name := range sortedAttrNames(n.Attributes) {
		fmt.Fprintf(w, "%s  attribute '%s'\n", indent, name)
		n.Attributes[name].Dump(w, indent+"    ")
	}
	for _, child := range n.Children {
		child.Dump(w, indent+"  ")
	}
}

// DumpString renders the tree into a string.
func (n *Node) DumpString() string {
	var sb strings.Builder
	n.Dump(&sb, "")
	return sb.String()
}

func sortedAttrNames(attrs map[string]*Node) []string {
	if len(attrs) == 0 {
		return nil
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
