package service

import "strings"

// GroupTag classifies a warehouse by business chain, derived purely from its
// name. Naming conventions drift, so the keyword table is explicit instead of
// scattered string matching.
type GroupTag string

const (
	GroupAndys   GroupTag = "andys"
	GroupExpress GroupTag = "express"
	GroupDepot   GroupTag = "depot"
	GroupOther   GroupTag = "other"
)

// groupKeywords maps an uppercase name fragment to its group. Depot keywords
// are checked first: a name like "ANDYS ALMACEN CENTRAL" is a depot, not a
// storefront.
var groupKeywords = []struct {
	fragment string
	tag      GroupTag
}{
	{"ALMACEN", GroupDepot},
	{"CENTRAL", GroupDepot},
	{"DISTRIBUCION", GroupDepot},
	{"DEPOSITO", GroupDepot},
	{"PISO 3", GroupDepot},
	{"EXPRESS", GroupExpress},
	{"EXPANDIA", GroupExpress},
	{"ANDYS", GroupAndys},
}

// GroupFor returns the group tag for a warehouse name.
func GroupFor(name string) GroupTag {
	upper := strings.ToUpper(name)
	for _, kw := range groupKeywords {
		if strings.Contains(upper, kw.fragment) {
			return kw.tag
		}
	}
	return GroupOther
}
