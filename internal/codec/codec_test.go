package codec

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

type profile struct {
	Name  *string
	Count int
	Tags  []string
	Inner struct {
		A int
		B int
	}
}

func fieldsOf(p *profile) Fields {
	rv := reflect.ValueOf(p).Elem()
	return Fields{
		"Name":  rv.FieldByName("Name"),
		"count": rv.FieldByName("Count"),
		"Tags":  rv.FieldByName("Tags"),
		"Inner": rv.FieldByName("Inner"),
	}
}

func TestMergeOverlaysOnlyPresentKeys(t *testing.T) {
	name := "default"
	target := &profile{Name: &name, Count: 7, Tags: []string{}}
	target.Inner.A = 1
	target.Inner.B = 2

	if err := Merge(`{"count": 5, "Inner": {"B": 9}}`, fieldsOf(target)); err != nil {
		t.Fatalf("merge: %v", err)
	}

	if target.Count != 5 {
		t.Fatalf("expected count overlaid, got %d", target.Count)
	}
	if target.Name == nil || *target.Name != "default" {
		t.Fatalf("expected absent key to keep default, got %v", target.Name)
	}
	if target.Inner.A != 1 || target.Inner.B != 9 {
		t.Fatalf("expected nested struct merged in place, got %+v", target.Inner)
	}
}

func TestMergeIgnoresNullsAndUnknownKeys(t *testing.T) {
	name := "keep"
	target := &profile{Name: &name, Tags: []string{"a"}}

	if err := Merge(`{"Name": null, "Tags": null, "Unknown": 1}`, fieldsOf(target)); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if target.Name == nil || *target.Name != "keep" {
		t.Fatalf("expected null to leave field untouched, got %v", target.Name)
	}
	if !reflect.DeepEqual(target.Tags, []string{"a"}) {
		t.Fatalf("expected null to leave slice untouched, got %v", target.Tags)
	}
}

func TestMergeMatchesKeysCaseInsensitively(t *testing.T) {
	target := &profile{}
	if err := Merge(`{"COUNT": 3}`, fieldsOf(target)); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if target.Count != 3 {
		t.Fatalf("expected case-insensitive match, got %d", target.Count)
	}
}

func TestMergeEmptyTextIsNoop(t *testing.T) {
	target := &profile{Count: 1}
	for _, text := range []string{"", "   \n"} {
		if err := Merge(text, fieldsOf(target)); err != nil {
			t.Fatalf("merge %q: %v", text, err)
		}
	}
	if target.Count != 1 {
		t.Fatalf("expected untouched target, got %+v", target)
	}
}

func TestMergeRejectsMalformedDocuments(t *testing.T) {
	cases := []string{`{"count":`, `[1,2]`, `"text"`}
	for _, text := range cases {
		err := Merge(text, fieldsOf(&profile{}))
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed for %q, got %v", text, err)
		}
	}
}

func TestMergeSurfacesTypeMismatch(t *testing.T) {
	err := Merge(`{"count": "five"}`, fieldsOf(&profile{}))
	if err == nil || !strings.Contains(err.Error(), `decode key "count"`) {
		t.Fatalf("expected decode error for count, got %v", err)
	}
}

func TestDocumentKeepsInsertionOrder(t *testing.T) {
	doc := NewDocument()
	doc.Set("zeta", 1)
	doc.Set("alpha", nil)
	doc.Set("mid", "<b>")
	doc.Set("zeta", 2)

	if got := doc.Keys(); !reflect.DeepEqual(got, []string{"zeta", "alpha", "mid"}) {
		t.Fatalf("unexpected key order: %v", got)
	}

	text, err := Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := "{\n  \"zeta\": 2,\n  \"alpha\": null,\n  \"mid\": \"\\u003cb\\u003e\"\n}"
	if text != want {
		t.Fatalf("unexpected encoding:\nwant: %s\n got: %s", want, text)
	}
}

func TestEqualIsStructural(t *testing.T) {
	if !Equal([]int{1, 2}, []int{1, 2}) {
		t.Fatalf("expected equal slices")
	}
	if Equal([]int{}, []int(nil)) {
		t.Fatalf("expected empty and nil slices to differ in encoding")
	}
	one, other := "x", "x"
	if !Equal(&one, &other) {
		t.Fatalf("expected pointers to equal strings to compare equal")
	}
	if !Equal(nil, (*string)(nil)) {
		t.Fatalf("expected nil and typed nil pointer to compare equal")
	}
}

func TestLookupFindsRawValue(t *testing.T) {
	raw, ok := Lookup(`{"a.b": 1, "c": null}`, "a.b")
	if !ok || string(raw) != "1" {
		t.Fatalf("expected literal dotted key lookup, got %s %v", raw, ok)
	}
	if _, ok := Lookup(`{"c": null}`, "c"); ok {
		t.Fatalf("expected null to be reported as absent")
	}
	if _, ok := Lookup("", "c"); ok {
		t.Fatalf("expected empty text to be absent")
	}
}

func TestSetWritesRawValue(t *testing.T) {
	out, err := Set(`{"Name":"a","Count":1}`, "Count", []byte(`7`))
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if out != `{"Name":"a","Count":7}` {
		t.Fatalf("unexpected document %s", out)
	}

	out, err = Set("", "a.b", []byte(`"dotted"`))
	if err != nil {
		t.Fatalf("set on empty text: %v", err)
	}
	if raw, ok := Lookup(out, "a.b"); !ok || string(raw) != `"dotted"` {
		t.Fatalf("expected literal dotted key, got %s", out)
	}
}

func TestSetRejectsInvalidInput(t *testing.T) {
	if _, err := Set(`[1]`, "Count", []byte(`1`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := Set(`{}`, "Count", []byte(`{oops`)); err == nil {
		t.Fatalf("expected invalid value error")
	}
}
