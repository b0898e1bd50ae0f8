package scanner

import (
	"path/filepath"
	"strings"
)

// Kind classifies an analyzable input file.
type Kind string

const (
	KindUnknown Kind = ""
	KindCSharp  Kind = "csharp"
	KindGraph   Kind = "graph" // YAML graph description
)

var kindByExt = map[string]Kind{
	".cs":   KindCSharp,
	".yaml": KindGraph,
	".yml":  KindGraph,
}

// DetectKind returns the input kind for a file path.
func DetectKind(path string) Kind {
	return kindByExt[strings.ToLower(filepath.Ext(path))]
}
