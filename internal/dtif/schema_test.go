package dtif

import "testing"

func TestSchemaValidateAcceptsDirectAndAliasTokens(t *testing.T) {
	schema, err := NewSchema()
	if err != nil {
		t.Fatalf("unexpected error compiling schema: %v", err)
	}
	doc := Document{
		"#/color/primary": RawToken{Type: "color", Value: "#336699"},
		"#/color/link":    RawToken{Ref: "#/color/primary"},
	}
	if errs := schema.Validate(doc); len(errs) != 0 {
		t.Fatalf("expected no violations, got %v", errs)
	}
}

func TestSchemaValidateRejectsEmptyType(t *testing.T) {
	schema, err := NewSchema()
	if err != nil {
		t.Fatalf("unexpected error compiling schema: %v", err)
	}
	doc := Document{
		"#/color/broken": RawToken{Type: "", Value: "#336699"},
	}
	errs := schema.Validate(doc)
	if len(errs) != 1 {
		t.Fatalf("expected one violation for an empty type, got %v", errs)
	}
}
