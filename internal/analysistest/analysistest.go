// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package analysistest contains utility functions for testing the analyses on small programs written in the tests.
package analysistest

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"regexp"
	"strings"
	"testing"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// Match annotations of the form "@Source(id1, id2, id3)"
var SourceRegex = regexp.MustCompile(`//.*@Source\(((?:\s*\w\s*,?)+)\)`)
var SinkRegex = regexp.MustCompile(`//.*@Sink\(((?:\s*\w\s*,?)+)\)`)

// LPos is a position in a file, without the column
type LPos struct {
	Filename string
	Line     int
}

func (p LPos) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// RemoveColumn drops the column of the position
func RemoveColumn(pos token.Position) LPos {
	return LPos{Line: pos.Line, Filename: pos.Filename}
}

// Program is a test program: a single file package built in SSA form, with its callgraph.
type Program struct {
	Fset      *token.FileSet
	File      *ast.File
	Pkg       *ssa.Package
	CallGraph *callgraph.Graph
}

// BuildSSA parses src as the file main.go and builds the SSA of the package it declares. The callgraph is built
// with the class hierarchy analysis. The source may only import packages of the standard library.
func BuildSSA(t *testing.T, src string) *Program {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "main.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("failed to parse test program: %v", err)
	}
	pkg := types.NewPackage(f.Name.Name, "")
	conf := &types.Config{Importer: importer.Default()}
	ssaPkg, _, err := ssautil.BuildPackage(conf, fset, pkg, []*ast.File{f}, ssa.SanityCheckFunctions)
	if err != nil {
		t.Fatalf("failed to build SSA of test program: %v", err)
	}
	return &Program{
		Fset:      fset,
		File:      f,
		Pkg:       ssaPkg,
		CallGraph: cha.CallGraph(ssaPkg.Prog),
	}
}

// Func returns the package level function with the given name, and fails the test if there is none.
func (p *Program) Func(t *testing.T, name string) *ssa.Function {
	t.Helper()
	fn := p.Pkg.Func(name)
	if fn == nil {
		t.Fatalf("no function %q in test program", name)
	}
	return fn
}

// InstructionsAt returns all the instructions of the package functions located at the given line.
func (p *Program) InstructionsAt(line int) []ssa.Instruction {
	var res []ssa.Instruction
	for fn := range ssautil.AllFunctions(p.Pkg.Prog) {
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				if instr.Pos().IsValid() && p.Fset.Position(instr.Pos()).Line == line {
					res = append(res, instr)
				}
			}
		}
	}
	return res
}

// CallAt returns the call instruction at the given line, and fails the test if there is not exactly one.
func (p *Program) CallAt(t *testing.T, line int) ssa.CallInstruction {
	t.Helper()
	var calls []ssa.CallInstruction
	for _, instr := range p.InstructionsAt(line) {
		if call, ok := instr.(ssa.CallInstruction); ok {
			calls = append(calls, call)
		}
	}
	if len(calls) != 1 {
		t.Fatalf("expected one call at line %d, found %d", line, len(calls))
	}
	return calls[0]
}

// Annotations returns the source and sink annotations of the program, as maps from identifiers to the position of
// the annotated line.
func (p *Program) Annotations() (sources map[string]LPos, sinks map[string][]LPos) {
	sources = map[string]LPos{}
	sinks = map[string][]LPos{}
	for _, c := range p.File.Comments {
		for _, c1 := range c.List {
			pos := RemoveColumn(p.Fset.Position(c1.Pos()))
			for _, ident := range matchIdents(SourceRegex, c1.Text) {
				sources[ident] = pos
			}
			for _, ident := range matchIdents(SinkRegex, c1.Text) {
				sinks[ident] = append(sinks[ident], pos)
			}
		}
	}
	return sources, sinks
}

// ExpectedSourceToSink looks for comments @Source(id) and @Sink(id) to construct expected flows from sources to
// sink in the form of a map from sink positions to all the source position that reach that sink.
func (p *Program) ExpectedSourceToSink() map[LPos]map[LPos]bool {
	sources, sinks := p.Annotations()
	source2sink := map[LPos]map[LPos]bool{}
	for ident, sinkPositions := range sinks {
		sourcePos, ok := sources[ident]
		if !ok {
			continue
		}
		for _, sinkPos := range sinkPositions {
			if _, ok := source2sink[sinkPos]; !ok {
				source2sink[sinkPos] = make(map[LPos]bool)
			}
			source2sink[sinkPos][sourcePos] = true
		}
	}
	return source2sink
}

func matchIdents(re *regexp.Regexp, text string) []string {
	a := re.FindStringSubmatch(text)
	if len(a) <= 1 {
		return nil
	}
	var idents []string
	for _, ident := range strings.Split(a[1], ",") {
		idents = append(idents, strings.TrimSpace(ident))
	}
	return idents
}
