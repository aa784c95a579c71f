package markup

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	lru "github.com/hashicorp/golang-lru/v2"
)

const selectorCacheSize = 128

var selectors *lru.Cache[string, cascadia.Selector]

func init() {
	cache, err := lru.New[string, cascadia.Selector](selectorCacheSize)
	if err != nil {
		panic(fmt.Sprintf("markup: selector cache: %v", err))
	}
	selectors = cache
}

// Selector renders tag and classes as a CSS selector. Class arguments
// holding several space separated markers are split, so "instock
// availability" and ("instock", "availability") are the same query.
func Selector(tag string, classes ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(tag))
	for _, class := range classes {
		for _, token := range strings.Fields(class) {
			b.WriteByte('.')
			b.WriteString(token)
		}
	}
	return b.String()
}

func compile(tag string, classes []string) (cascadia.Selector, string, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, "", fmt.Errorf("markup: empty tag")
	}
	query := Selector(tag, classes...)
	if sel, ok := selectors.Get(query); ok {
		return sel, query, nil
	}
	sel, err := cascadia.Compile(query)
	if err != nil {
		return nil, query, fmt.Errorf("markup: compile %q: %w", query, err)
	}
	selectors.Add(query, sel)
	return sel, query, nil
}
