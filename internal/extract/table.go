package extract

import "fmt"

// columnNameKeys are the aliases under which column definitions carry
// their name, tried in order.
var columnNameKeys = []string{"dataIndex", "key", "field", "id", "name", "title", "label"}

// ColumnNames normalises a table's column definitions to a flat list of
// names. Columns may be plain strings or objects carrying the name
// under one of several aliases.
func ColumnNames(columns any) []string {
	items, ok := columns.([]any)
	if !ok {
		return nil
	}
	var names []string
	for _, item := range items {
		switch col := item.(type) {
		case string:
			names = append(names, col)
		case map[string]any:
			for _, key := range columnNameKeys {
				if v, ok := col[key].(string); ok && v != "" {
					names = append(names, v)
					break
				}
			}
		}
	}
	return names
}

// TableRows reads an embedded columns+rows structure into row-shaped
// records. Rows may already be objects, or arrays positional against
// the column list; a rows value wrapped in {"items": [...]} is
// unwrapped first.
func TableRows(table map[string]any) []map[string]any {
	columns := ColumnNames(firstValue(table, "columns", "headers"))
	data := firstValue(table, "rows", "data", "body")

	if wrapped, ok := data.(map[string]any); ok {
		for _, key := range []string{"items", "rows", "data"} {
			if inner, ok := wrapped[key].([]any); ok {
				data = inner
				break
			}
		}
	}

	items, ok := data.([]any)
	if !ok {
		return nil
	}

	var records []map[string]any
	for _, item := range items {
		switch row := item.(type) {
		case map[string]any:
			records = append(records, row)
		case []any:
			record := make(map[string]any, len(row))
			for i, value := range row {
				key := fmt.Sprintf("column_%d", i)
				if i < len(columns) {
					key = columns[i]
				}
				record[key] = value
			}
			records = append(records, record)
		}
	}
	return records
}

// RecordsFromPayload pulls row-shaped records out of an arbitrary JSON
// payload: a direct columns+rows table, a table under a wrapper key, a
// plain collection under a conventional key, or a bare array. Nested
// containers are searched recursively as a last resort.
func RecordsFromPayload(payload any) []map[string]any {
	switch node := payload.(type) {
	case map[string]any:
		if _, ok := node["columns"]; ok {
			if hasAny(node, "rows", "data") {
				if rows := TableRows(node); rows != nil {
					return rows
				}
			}
		}
		if table := FindTableNode(node); table != nil {
			if rows := TableRows(table); rows != nil {
				return rows
			}
		}
		for _, key := range []string{"data", "rows", "items", "records"} {
			if items, ok := node[key].([]any); ok {
				if rows := objectRows(items); rows != nil {
					return rows
				}
			}
		}
		for _, v := range node {
			switch v.(type) {
			case map[string]any, []any:
				if rows := RecordsFromPayload(v); rows != nil {
					return rows
				}
			}
		}
	case []any:
		return objectRows(node)
	}
	return nil
}

func objectRows(items []any) []map[string]any {
	var rows []map[string]any
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			rows = append(rows, obj)
		}
	}
	return rows
}

func firstValue(node map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := node[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func hasAny(node map[string]any, keys ...string) bool {
	for _, key := range keys {
		if _, ok := node[key]; ok {
			return true
		}
	}
	return false
}
