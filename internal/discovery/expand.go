package discovery

// variantSuffixes broaden a query. The search surface caps results per query,
// so each phrasing surfaces a partially overlapping result set.
var variantSuffixes = []string{
	"center",
	"near me",
	"best",
	"popular",
	"24 hours",
	"chain",
	"local",
}

// Expand returns query followed by its broadened variants. The result always
// starts with the unmodified query and has a fixed length.
func Expand(query string) []string {
	variants := make([]string, 0, len(variantSuffixes)+1)
	variants = append(variants, query)
	for _, suffix := range variantSuffixes {
		variants = append(variants, query+" "+suffix)
	}
	return variants
}

// VariantCount is the length of every Expand result.
func VariantCount() int {
	return len(variantSuffixes) + 1
}
