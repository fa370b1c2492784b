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

package main

import (
	"fmt"
	"go/ast"
	"go/token"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// pkgLoadMode mirrors the teacher's own load_program.go: load everything the
// SSA builder and the decorator both need in one pass.
const pkgLoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedTypesSizes |
	packages.NeedModule

// funcSite locates one function declaration within its decorated file, for
// CloneFunctionForCallsite to splice a clone next to.
type funcSite struct {
	pkg  *decorator.Package
	file *dst.File
	decl *dst.FuncDecl
}

// loadedProgram is everything the ssaadapter needs to run against a real
// program: its SSA form and its decorated syntax tree, correlated by
// source position so a profile naming positions can be resolved to both.
type loadedProgram struct {
	prog *ssa.Program

	callExprByPos  map[string]*dst.CallExpr
	callInstrByPos map[string]ssa.CallInstruction
	funcSiteByName map[string]*funcSite
	ssaFuncByName  map[string]*ssa.Function
	pathByFile     map[*dst.File]string
}

// loadProgram loads patterns (the same argument packages.Load takes) twice:
// once through go/ssa, once through dst/decorator, sharing one FileSet so
// positions line up between the two.
func loadProgram(patterns []string) (*loadedProgram, error) {
	fset := token.NewFileSet()
	cfg := &packages.Config{Mode: pkgLoadMode, Fset: fset}

	initial, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	if packages.PrintErrors(initial) > 0 {
		return nil, fmt.Errorf("errors loading packages")
	}

	prog, ssaPkgs := ssautil.AllPackages(initial, ssa.BuilderMode(0))
	for i, p := range ssaPkgs {
		if p == nil {
			return nil, fmt.Errorf("cannot build SSA for package %s", initial[i])
		}
	}
	prog.Build()

	dstPkgs, err := decorator.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading syntax: %w", err)
	}

	lp := &loadedProgram{
		prog:           prog,
		callExprByPos:  make(map[string]*dst.CallExpr),
		callInstrByPos: make(map[string]ssa.CallInstruction),
		funcSiteByName: make(map[string]*funcSite),
		ssaFuncByName:  make(map[string]*ssa.Function),
		pathByFile:     make(map[*dst.File]string),
	}

	for _, pkg := range dstPkgs {
		if pkg.Decorator == nil {
			continue
		}
		for i, f := range pkg.Syntax {
			if i < len(pkg.GoFiles) {
				lp.pathByFile[f] = pkg.GoFiles[i]
			}
		}
		for astNode, dstNode := range pkg.Decorator.Map.Dst.Nodes {
			switch an := astNode.(type) {
			case *ast.CallExpr:
				if dn, ok := dstNode.(*dst.CallExpr); ok {
					lp.callExprByPos[fset.Position(an.Pos()).String()] = dn
				}
			case *ast.FuncDecl:
				if dn, ok := dstNode.(*dst.FuncDecl); ok {
					lp.funcSiteByName[funcKey(pkg.PkgPath, an.Name.Name)] = &funcSite{
						pkg:  pkg,
						file: enclosingFile(pkg, dn),
						decl: dn,
					}
				}
			}
		}
	}

	for fn := range ssautil.AllFunctions(prog) {
		if fn.Synthetic != "" || fn.Pkg == nil {
			continue
		}
		lp.ssaFuncByName[funcKey(fn.Pkg.Pkg.Path(), fn.Name())] = fn
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				if call, ok := instr.(ssa.CallInstruction); ok {
					lp.callInstrByPos[fset.Position(instr.Pos()).String()] = call
				}
			}
		}
	}

	return lp, nil
}

func funcKey(pkgPath, name string) string { return pkgPath + "." + name }

func enclosingFile(pkg *decorator.Package, decl *dst.FuncDecl) *dst.File {
	for _, f := range pkg.Syntax {
		for _, d := range f.Decls {
			if d == decl {
				return f
			}
		}
	}
	return nil
}
