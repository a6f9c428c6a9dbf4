// Package golang implements the Go backend (§4.C) for necessist: parsing
// and classification via go/ast+go/parser+go/token, and build/run command
// construction via `go build`/`go test`.
//
// Grounding: original_source/frameworks/src/golang and
// original_source/backends/src/go are the detail source for Go-specific
// removability and classification rules (SPEC_FULL.md "SUPPLEMENTED
// FEATURES"). Package discovery follows ctxweaver's
// pkg/processor.Process entry point (golang.org/x/tools/go/packages),
// repurposed for read-only file discovery instead of code generation; the
// module-path lookup follows ctxweaver's use of golang.org/x/mod/modfile.
package golang

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"

	"github.com/mpyw/necessist/pkg/backend"
	"github.com/mpyw/necessist/pkg/ignore"
	"github.com/mpyw/necessist/pkg/span"
)

// File is the Go backend's parsed-file handle: the AST, its FileSet, and
// the shared SourceFile used to build Spans (§4.B, §4.C parse_source_file).
type File struct {
	path    string
	sf      *span.SourceFile
	fset    *token.FileSet
	astFile *ast.File

	// locals maps top-level function/method names defined in this file to
	// their declarations, for local-function following (§4.C
	// local_functions, §4.D "Local-function following").
	locals map[string]*ast.FuncDecl

	// comments associates each statement with its attached comment groups,
	// for the "necessist:skip" directive (internal/directive).
	comments ast.CommentMap
}

func (f *File) Path() string     { return f.path }
func (f *File) Contents() []byte { return f.sf.Contents() }

// SourceFile exposes the underlying span.SourceFile for callers (the run
// controller) that need ByteRange/Text directly.
func (f *File) SourceFile() *span.SourceFile { return f.sf }

// Backend implements backend.Backend for Go test suites.
type Backend struct {
	functions *ignore.Matcher
	macros    *ignore.Matcher
	methods   *ignore.Matcher
}

// New returns a Go backend instance.
func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "go" }

// Applicable reports whether root contains a go.mod (§6 "project inputs
// detected").
func (b *Backend) Applicable(root string) (bool, error) {
	_, err := os.Stat(filepath.Join(root, "go.mod"))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat go.mod: %w", err)
	}
	return true, nil
}

// ModulePath reads <root>/go.mod and returns its module path, used to
// qualify package import paths for `go test -run` targeting (§6 "module
// path errors").
func ModulePath(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	f, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse go.mod: %w", err)
	}
	if f.Module == nil {
		return "", fmt.Errorf("go.mod: missing module directive")
	}
	return f.Module.Mod.Path, nil
}

// WalkDir returns every "*_test.go" file under root, discovered via
// `go list`-style package loading rather than a directory walk, so vendor
// directories and build-constrained files are excluded the same way the
// `go` tool itself would exclude them (§4.C walk_dir). Both internal
// (package p) and external (package p_test) test files are collected,
// since packages.Load's Tests mode surfaces each in its corresponding
// test-variant package's GoFiles.
func (b *Backend) WalkDir(root string) ([]string, error) {
	cfg := &packages.Config{
		Mode:  packages.NeedName | packages.NeedFiles,
		Dir:   root,
		Tests: true,
	}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return nil, fmt.Errorf("failed to load packages under %s: %w", root, err)
	}

	seen := map[string]bool{}
	var files []string
	for _, pkg := range pkgs {
		for _, f := range pkg.GoFiles {
			if !strings.HasSuffix(f, "_test.go") || seen[f] {
				continue
			}
			seen[f] = true
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ParseFile parses path into a Go AST bundled with its SourceFile (§4.C
// parse_source_file).
func (b *Backend) ParseFile(path string) (backend.File, error) {
	sf, err := span.Load(path)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	astFile, err := parser.ParseFile(fset, path, sf.Contents(), parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	f := &File{
		path:     path,
		sf:       sf,
		fset:     fset,
		astFile:  astFile,
		locals:   map[string]*ast.FuncDecl{},
		comments: ast.NewCommentMap(fset, astFile, astFile.Comments),
	}
	for _, decl := range astFile.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok {
			f.locals[funcKey(fd)] = fd
		}
	}
	return f, nil
}

// funcKey names a top-level declaration for the locals map: bare name for
// functions, "Type.Name" for methods.
func funcKey(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return fd.Name.Name
	}
	recv := fd.Recv.List[0].Type
	if star, ok := recv.(*ast.StarExpr); ok {
		recv = star.X
	}
	if ident, ok := recv.(*ast.Ident); ok {
		return ident.Name + "." + fd.Name.Name
	}
	return fd.Name.Name
}

// spanOf converts a go/ast node's byte-offset position range into a §4.A
// rune-counted Span over f's SourceFile.
func spanOf(f *File, start, end token.Pos) (span.Span, error) {
	startOff := f.fset.Position(start).Offset
	endOff := f.fset.Position(end).Offset
	startPos, err := f.sf.PositionForOffset(startOff)
	if err != nil {
		return span.Span{}, err
	}
	endPos, err := f.sf.PositionForOffset(endOff)
	if err != nil {
		return span.Span{}, err
	}
	return span.New(f.sf, startPos, endPos)
}

// dotPosition converts a byte position (a selector's receiver's End()) into
// the §4.A rune-counted Position immediately after it, the boundary a
// method-call span is left-truncated to via span.WithStart (§4.B, §4.D
// rule 4 "span covers just the .method(args) suffix").
func dotPosition(f *File, pos token.Pos) (span.Position, error) {
	off := f.fset.Position(pos).Offset
	return f.sf.PositionForOffset(off)
}

// isTestFunc reports whether fd is a top-level TestXxx(t *testing.T) test
// function (not a subtest, which is discovered via t.Run during the walk).
func isTestFunc(fd *ast.FuncDecl) bool {
	if fd.Recv != nil || !strings.HasPrefix(fd.Name.Name, "Test") {
		return false
	}
	if fd.Type.Params == nil || len(fd.Type.Params.List) != 1 {
		return false
	}
	return isTestingTParam(fd.Type.Params.List[0].Type)
}

func isTestingTParam(expr ast.Expr) bool {
	star, ok := expr.(*ast.StarExpr)
	if !ok {
		return false
	}
	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == "testing" && sel.Sel.Name == "T"
}
