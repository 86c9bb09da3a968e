package docs

import (
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// indexed returns the topic names listed as "* name: summary" in the index.
func indexed(t *testing.T) []string {
	t.Helper()
	src, err := os.ReadFile(Index + ".md")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	root := goldmark.DefaultParser().Parse(text.NewReader(src))
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindListItem {
			return ast.WalkContinue, nil
		}
		line := n.FirstChild().Lines().At(0)
		if name, _, ok := strings.Cut(string(line.Value(src)), ":"); ok {
			names = append(names, strings.TrimSpace(name))
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return names
}

func TestIndexListsEveryTopic(t *testing.T) {
	listed := indexed(t)
	all, err := Topics()
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range all {
		if !slices.Contains(listed, name) {
			t.Errorf("topic %q is not listed in %s.md", name, Index)
		}
	}
	for _, name := range listed {
		if _, err := Topic(name); err != nil {
			t.Errorf("Topic(%q) error = %v", name, err)
		}
	}
}

func TestTopic(t *testing.T) {
	got, err := Topic("import")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "# Importing bank exports") {
		t.Errorf("Topic(import) = %q", got)
	}
	if _, err := Topic("nope"); err == nil {
		t.Error("Topic(nope) expected an error")
	}

	all, err := Topic("*")
	if err != nil {
		t.Fatal(err)
	}
	for _, title := range []string{"# Alerts", "# HTTP API", "# Configuration"} {
		if !strings.Contains(all, title) {
			t.Errorf("Topic(*) is missing %q", title)
		}
	}
	if strings.Contains(all, "Run `finntra topic") {
		t.Error("Topic(*) includes the index")
	}
}
