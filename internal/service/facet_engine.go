package service

import (
	"sort"
	"strings"

	"stock-service/internal/models"
)

// Facet keys, as exposed in option counts.
const (
	FacetProvider  = "provider"
	FacetOrigin    = "origen"
	FacetCategory  = "category"
	FacetABCGlobal = "abc_global"
	FacetABCLocal  = "abc_local"
	FacetTag       = "tag"
	FacetCoverage  = "coverage"
	FacetStatus    = "status"
)

// FacetResult is the filtered product list plus, for every facet, the count
// each option would yield if selected, computed against every other active
// filter (complementary counting). Selecting a provider must not collapse the
// provider dropdown's own counts.
type FacetResult struct {
	Filtered     []models.DerivedProduct   `json:"filtered"`
	OptionCounts map[string]map[string]int `json:"option_counts"`
}

type facetDef struct {
	key      string
	selected string
	values   func(p *models.DerivedProduct) []string
}

// buildFacets declares the facet set for a viewing context. The local ABC
// facet reads the per-warehouse classification when a warehouse is selected
// and falls back to the global category in the network view.
func buildFacets(f models.FilterSet, viewingWarehouse string) []facetDef {
	abcLocal := func(p *models.DerivedProduct) []string {
		if viewingWarehouse == "" {
			return []string{p.ABCAt("")}
		}
		return []string{p.ABCAt(viewingWarehouse)}
	}
	return []facetDef{
		{FacetProvider, f.Provider, func(p *models.DerivedProduct) []string { return []string{p.Provider} }},
		{FacetOrigin, f.Origin, func(p *models.DerivedProduct) []string { return []string{p.Origin} }},
		{FacetCategory, f.Category, func(p *models.DerivedProduct) []string { return []string{p.CategoryName} }},
		{FacetABCGlobal, f.ABCGlobal, func(p *models.DerivedProduct) []string { return []string{p.ABCCategory} }},
		{FacetABCLocal, f.ABCLocal, abcLocal},
		{FacetTag, f.Tag, func(p *models.DerivedProduct) []string { return p.Tags }},
		{FacetCoverage, f.CoverageBucket, func(p *models.DerivedProduct) []string { return []string{CoverageBucket(p.Coverage)} }},
		{FacetStatus, f.Status, func(p *models.DerivedProduct) []string { return []string{p.Status} }},
	}
}

// ApplyFilters evaluates the conjunction of all active predicates and the
// complementary per-facet option counts in a single pass.
//
// Per product we count how many facets reject it. Zero misses puts it in
// the filtered list and in every facet's counts; exactly one miss puts it
// only in the missing facet's counts. O(products x facets), no recursive
// re-filtering.
func ApplyFilters(products []models.DerivedProduct, f models.FilterSet, viewingWarehouse string) FacetResult {
	facets := buildFacets(f, viewingWarehouse)

	res := FacetResult{
		Filtered:     make([]models.DerivedProduct, 0, len(products)),
		OptionCounts: make(map[string]map[string]int, len(facets)),
	}
	for _, fc := range facets {
		res.OptionCounts[fc.key] = make(map[string]int)
	}

	needle := strings.ToLower(strings.TrimSpace(f.Search))

	for i := range products {
		p := &products[i]
		if needle != "" && !searchMatch(p, needle) {
			continue
		}

		// A product counts toward a facet's options when every OTHER facet
		// matches. Tracking the number of misses and the index of the single
		// miss answers that for all facets at once: zero misses counts
		// everywhere, one miss counts only toward the facet that missed.
		misses := 0
		missed := -1
		for j, fc := range facets {
			if fc.selected != "" && !containsValue(fc.values(p), fc.selected) {
				misses++
				missed = j
			}
		}
		if misses == 0 {
			res.Filtered = append(res.Filtered, *p)
		}
		if misses > 1 {
			continue
		}

		for j, fc := range facets {
			if misses == 1 && j != missed {
				continue
			}
			for _, v := range fc.values(p) {
				if v != "" {
					res.OptionCounts[fc.key][v]++
				}
			}
		}
	}
	return res
}

func containsValue(values []string, sel string) bool {
	for _, v := range values {
		if v == sel {
			return true
		}
	}
	return false
}

func searchMatch(p *models.DerivedProduct, needle string) bool {
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Barcode), needle) ||
		strings.Contains(strings.ToLower(p.Provider), needle)
}

// Sort fields for the product table.
const (
	SortByName     = "name"
	SortByProvider = "provider"
	SortByStock    = "stock"
	SortBySales    = "sales"
	SortByCoverage = "coverage"
	SortByStatus   = "status"
	SortByQty      = "transfer_qty"
)

// Sort directions. Toggling a field cycles none -> asc -> desc -> none.
const (
	SortNone = iota
	SortAsc
	SortDesc
)

// SortState is the current table ordering.
type SortState struct {
	Field     string `json:"field"`
	Direction int    `json:"direction"`
}

// Toggle advances the three-state cycle for a field; clicking a different
// field starts it ascending.
func (s *SortState) Toggle(field string) {
	if s.Field != field {
		s.Field = field
		s.Direction = SortAsc
		return
	}
	s.Direction = (s.Direction + 1) % 3
	if s.Direction == SortNone {
		s.Field = ""
	}
}

var statusRank = map[string]int{
	models.StatusOutOfStock: 0,
	models.StatusDeficient:  1,
	models.StatusNormal:     2,
}

// SortProducts orders the list in place by the sort state. The sort is
// stable: equal keys preserve their prior relative order. qtyOf supplies the
// staged transfer quantity per product for the transfer view; it may be nil.
func SortProducts(list []models.DerivedProduct, state SortState, qtyOf func(productID int64) float64) {
	if state.Direction == SortNone || state.Field == "" {
		return
	}
	less := lessFunc(state.Field, qtyOf)
	if less == nil {
		return
	}
	if state.Direction == SortDesc {
		inner := less
		less = func(a, b *models.DerivedProduct) bool { return inner(b, a) }
	}
	sort.SliceStable(list, func(i, j int) bool { return less(&list[i], &list[j]) })
}

func lessFunc(field string, qtyOf func(int64) float64) func(a, b *models.DerivedProduct) bool {
	switch field {
	case SortByName:
		return func(a, b *models.DerivedProduct) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case SortByProvider:
		return func(a, b *models.DerivedProduct) bool {
			return strings.ToLower(a.Provider) < strings.ToLower(b.Provider)
		}
	case SortByStock:
		return func(a, b *models.DerivedProduct) bool { return a.CurrentStock < b.CurrentStock }
	case SortBySales:
		return func(a, b *models.DerivedProduct) bool { return a.CurrentSales < b.CurrentSales }
	case SortByCoverage:
		return func(a, b *models.DerivedProduct) bool { return a.Coverage < b.Coverage }
	case SortByStatus:
		return func(a, b *models.DerivedProduct) bool { return statusRank[a.Status] < statusRank[b.Status] }
	case SortByQty:
		if qtyOf == nil {
			return nil
		}
		return func(a, b *models.DerivedProduct) bool { return qtyOf(a.ID) < qtyOf(b.ID) }
	}
	return nil
}
