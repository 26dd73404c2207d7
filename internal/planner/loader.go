package planner

import (
	"os"
	"strings"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

// DefaultFileLoader reads and parses the DTIF document at path. It
// satisfies FileLoader directly; wrapped with stripFileScheme it also
// satisfies resolver.DocumentParser, since a PlanEntry's URI carries a
// file:// scheme a bare filesystem read doesn't expect.
func DefaultFileLoader(path string) (dtif.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return dtif.ParseJSON(content)
}

// DocumentParserFromURI adapts DefaultFileLoader into the
// `func(uri string) (dtif.Document, error)` shape resolver.DocumentParser
// expects, stripping the file:// scheme PlanEntry.URI always carries.
func DocumentParserFromURI(uri string) (dtif.Document, error) {
	return DefaultFileLoader(stripFileScheme(uri))
}

func stripFileScheme(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
