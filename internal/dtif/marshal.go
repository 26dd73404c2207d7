package dtif

import (
	"encoding/json"
	"sort"
	"strings"
)

// MarshalDocument renders doc back into the nested DTIF JSON shape
// ParseJSON reads: each pointer's segments become nested objects, and each
// RawToken becomes a leaf object carrying `$type`/`$value`/`$ref` plus any
// metadata fields.
func MarshalDocument(doc Document) ([]byte, error) {
	root := map[string]any{}

	pointers := make([]string, 0, len(doc))
	for p := range doc {
		pointers = append(pointers, p)
	}
	sort.Strings(pointers)

	for _, pointer := range pointers {
		segments := strings.Split(strings.TrimPrefix(pointer, "#/"), "/")
		node := root
		for i, seg := range segments {
			if i == len(segments)-1 {
				node[seg] = tokenToNode(doc[pointer])
				continue
			}
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[seg] = child
			}
			node = child
		}
	}

	return json.MarshalIndent(root, "", "  ")
}

func tokenToNode(token RawToken) map[string]any {
	node := map[string]any{}
	if token.Type != "" {
		node["$type"] = token.Type
	}
	if token.Value != nil {
		node["$value"] = token.Value
	}
	if token.Ref != "" {
		node["$ref"] = token.Ref
	}
	if token.Metadata != nil {
		metadataToNode(token.Metadata, node)
	}
	return node
}

func metadataToNode(meta *Metadata, node map[string]any) {
	if meta.Description != "" {
		node["$description"] = meta.Description
	}
	if len(meta.Tags) > 0 {
		node["$tags"] = meta.Tags
	}
	if meta.Author != "" {
		node["$author"] = meta.Author
	}
	if !meta.LastModified.IsZero() {
		node["$lastModified"] = meta.LastModified.Format("2006-01-02T15:04:05Z07:00")
	}
	if meta.UsageCount != 0 {
		node["$usageCount"] = meta.UsageCount
	}
	if meta.Hash != "" {
		node["$hash"] = meta.Hash
	}
	if meta.Deprecated != nil {
		if meta.Deprecated.SupersededBy != "" {
			node["$deprecated"] = map[string]any{"$supersededBy": meta.Deprecated.SupersededBy}
		} else {
			node["$deprecated"] = true
		}
	}
	if len(meta.Extensions) > 0 {
		node["$extensions"] = meta.Extensions
	}
}
