package extract

import "strings"

// Walk traverses a decoded payload breadth-first, calling visit for
// every nested map until visit returns true. Breadth-first keeps the
// shallowest match, which is the dataset node rather than some nested
// echo of its name.
func Walk(root any, visit func(node map[string]any) bool) map[string]any {
	queue := []any{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		switch n := current.(type) {
		case map[string]any:
			if visit(n) {
				return n
			}
			for _, v := range n {
				queue = append(queue, v)
			}
		case []any:
			queue = append(queue, n...)
		}
	}
	return nil
}

// FindDatasetNode locates the node describing a dataset inside a portal
// payload, matching by slug-like keys or title-like labels.
func FindDatasetNode(root any, slug, label string) map[string]any {
	slug = strings.ToLower(slug)
	label = strings.ToLower(label)
	return Walk(root, func(node map[string]any) bool {
		nodeSlug := strings.ToLower(firstString(node, "slug", "key", "id"))
		nodeTitle := strings.ToLower(firstString(node, "title", "name", "label"))
		return (slug != "" && nodeSlug == slug) || (label != "" && nodeTitle == label)
	})
}

// FindTableNode returns the embedded tabular structure of a dataset
// node, searching the usual wrapper keys and then nested maps.
func FindTableNode(node map[string]any) map[string]any {
	for _, key := range []string{"table", "tableData", "grid", "dataTable"} {
		if table, ok := node[key].(map[string]any); ok {
			return table
		}
	}
	for _, v := range node {
		if child, ok := v.(map[string]any); ok {
			if table := FindTableNode(child); table != nil {
				return table
			}
		}
	}
	return nil
}

// DataURL returns the dataset node's downloadable data endpoint, if any.
func DataURL(node map[string]any) string {
	for _, key := range []string{"downloadUrl", "dataUrl", "csvUrl", "apiUrl"} {
		if v, ok := node[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstString(node map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := node[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64, int, int64:
			// numeric identifiers stringify poorly for slug matching;
			// skip them.
		}
	}
	return ""
}
