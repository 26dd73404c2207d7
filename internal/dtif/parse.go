package dtif

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ParseJSON decodes a DTIF document's JSON bytes into a flat Document. A
// node is a token (leaf) if it carries a `$type`, `$value`, or `$ref` key;
// any other node is a group and its non-`$`-prefixed children are walked
// recursively, building `#/a/b/c`-style pointers as the walk descends.
func ParseJSON(content []byte) (Document, error) {
	var root map[string]any
	if err := json.Unmarshal(content, &root); err != nil {
		return nil, fmt.Errorf("invalid DTIF document: %w", err)
	}
	doc := make(Document)
	if err := walkGroup(root, "#", doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func walkGroup(node map[string]any, pointer string, doc Document) error {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if len(key) > 0 && key[0] == '$' {
			continue
		}
		childPointer := pointer + "/" + key
		child, ok := node[key].(map[string]any)
		if !ok {
			return fmt.Errorf("DTIF document: %s is not an object", childPointer)
		}
		if isToken(child) {
			token, err := parseToken(child, childPointer)
			if err != nil {
				return err
			}
			doc[childPointer] = token
			continue
		}
		if err := walkGroup(child, childPointer, doc); err != nil {
			return err
		}
	}
	return nil
}

func isToken(node map[string]any) bool {
	_, hasType := node["$type"]
	_, hasValue := node["$value"]
	_, hasRef := node["$ref"]
	return hasType || hasValue || hasRef
}

func parseToken(node map[string]any, pointer string) (RawToken, error) {
	token := RawToken{}
	if t, ok := node["$type"].(string); ok {
		token.Type = t
	}
	if v, ok := node["$value"]; ok {
		token.Value = v
	}
	if ref, ok := node["$ref"].(string); ok {
		token.Ref = ref
	}
	if token.Type == "" && token.Value == nil && token.Ref == "" {
		return RawToken{}, fmt.Errorf("DTIF document: %s has neither $type, $value, nor $ref", pointer)
	}

	meta, err := parseMetadata(node)
	if err != nil {
		return RawToken{}, fmt.Errorf("DTIF document: %s: %w", pointer, err)
	}
	token.Metadata = meta
	return token, nil
}

func parseMetadata(node map[string]any) (*Metadata, error) {
	meta := &Metadata{}
	present := false

	if desc, ok := node["$description"].(string); ok {
		meta.Description = desc
		present = true
	}
	if tags, ok := node["$tags"].([]any); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				meta.Tags = append(meta.Tags, s)
			}
		}
		present = true
	}
	if author, ok := node["$author"].(string); ok {
		meta.Author = author
		present = true
	}
	if lastModified, ok := node["$lastModified"].(string); ok {
		t, err := time.Parse(time.RFC3339, lastModified)
		if err != nil {
			return nil, fmt.Errorf("invalid $lastModified: %w", err)
		}
		meta.LastModified = t
		present = true
	}
	if usageCount, ok := node["$usageCount"].(float64); ok {
		meta.UsageCount = int(usageCount)
		present = true
	}
	if hash, ok := node["$hash"].(string); ok {
		meta.Hash = hash
		present = true
	}
	if deprecated, ok := node["$deprecated"]; ok {
		present = true
		switch v := deprecated.(type) {
		case bool:
			if v {
				meta.Deprecated = &Deprecation{}
			}
		case string:
			meta.Deprecated = &Deprecation{SupersededBy: v}
		case map[string]any:
			dep := &Deprecation{}
			if supersededBy, ok := v["$supersededBy"].(string); ok {
				dep.SupersededBy = supersededBy
			}
			meta.Deprecated = dep
		}
	}
	if extensions, ok := node["$extensions"].(map[string]any); ok {
		meta.Extensions = make(map[string]map[string]any, len(extensions))
		for ns, body := range extensions {
			if m, ok := body.(map[string]any); ok {
				meta.Extensions[ns] = m
			}
		}
		present = true
	}

	if !present {
		return nil, nil
	}
	return meta, nil
}
