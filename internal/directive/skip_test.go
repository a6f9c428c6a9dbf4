package directive

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"
)

func TestIsSkipComment(t *testing.T) {
	tests := map[string]struct {
		input string
		want  bool
	}{
		"exact match without space":      {input: "//necessist:skip", want: true},
		"exact match with space":         {input: "// necessist:skip", want: true},
		"multiple spaces after //":       {input: "//  necessist:skip", want: true},
		"with trailing content":          {input: "//necessist:skip flaky assertion", want: true},
		"with trailing content and space": {input: "// necessist:skip flaky assertion", want: true},
		"different directive":            {input: "//nolint:errcheck", want: false},
		"contains but not prefix":        {input: "// some necessist:skip comment", want: false},
		"partial match":                  {input: "//necessist:skipme", want: true}, // HasPrefix allows this
		"empty comment":                  {input: "//", want: false},
		"just whitespace":                {input: "//   ", want: false},
		"lowercase variant":              {input: "//NECESSIST:SKIP", want: false}, // case sensitive
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := isSkipComment(tt.input)
			if got != tt.want {
				t.Errorf("isSkipComment(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestHasSkipDirective(t *testing.T) {
	tests := map[string]struct {
		group *ast.CommentGroup
		want  bool
	}{
		"has skip directive": {
			group: &ast.CommentGroup{List: []*ast.Comment{{Text: "// necessist:skip"}}},
			want:  true,
		},
		"has skip directive without space": {
			group: &ast.CommentGroup{List: []*ast.Comment{{Text: "//necessist:skip"}}},
			want:  true,
		},
		"no skip directive": {
			group: &ast.CommentGroup{List: []*ast.Comment{{Text: "// some comment"}}},
			want:  false,
		},
		"nil group": {
			group: nil,
			want:  false,
		},
		"multiple comments with skip": {
			group: &ast.CommentGroup{List: []*ast.Comment{
				{Text: "// first comment"},
				{Text: "// necessist:skip"},
				{Text: "// third comment"},
			}},
			want: true,
		},
		"skip in wrong position (not prefix)": {
			group: &ast.CommentGroup{List: []*ast.Comment{{Text: "// do not necessist:skip"}}},
			want:  false,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := HasSkipDirective(tt.group)
			if got != tt.want {
				t.Errorf("HasSkipDirective() = %v, want %v", got, tt.want)
			}
		})
	}
}

func parseWithComments(t *testing.T, src string) (*token.FileSet, *ast.File) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "a_test.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	return fset, f
}

func firstTestStmt(t *testing.T, f *ast.File) ast.Stmt {
	t.Helper()
	for _, decl := range f.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Body == nil || len(fd.Body.List) == 0 {
			continue
		}
		return fd.Body.List[0]
	}
	t.Fatal("no statement found")
	return nil
}

func TestHasStmtSkipDirective(t *testing.T) {
	tests := map[string]struct {
		src  string
		want bool
	}{
		"leading comment on own line": {
			src: `package a
func TestX(t *T) {
	// necessist:skip
	doThing()
}
`,
			want: true,
		},
		"trailing same-line comment": {
			src: `package a
func TestX(t *T) {
	doThing() // necessist:skip
}
`,
			want: true,
		},
		"no directive": {
			src: `package a
func TestX(t *T) {
	doThing() // just a comment
}
`,
			want: false,
		},
		"no comment at all": {
			src: `package a
func TestX(t *T) {
	doThing()
}
`,
			want: false,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			fset, f := parseWithComments(t, tt.src)
			cmap := ast.NewCommentMap(fset, f, f.Comments)
			stmt := firstTestStmt(t, f)
			got := HasStmtSkipDirective(cmap, stmt)
			if got != tt.want {
				t.Errorf("HasStmtSkipDirective() = %v, want %v", got, tt.want)
			}
		})
	}
}
