package payload

import (
	"errors"
	"testing"
)

func TestParseAndAccess(t *testing.T) {
	doc, err := Parse([]byte(`{"block":{"hash":"0xabc","index":412},"note":"hi"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hash, err := StringAt(doc, "block", "hash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "0xabc" {
		t.Fatalf("hash mismatch: %q", hash)
	}

	index, err := IntAt(doc, "block", "index")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if index != 412 {
		t.Fatalf("index mismatch: %d", index)
	}
}

func TestParseNonObject(t *testing.T) {
	if _, err := Parse([]byte(`[1,2,3]`)); err == nil {
		t.Fatalf("expected error for array payload")
	}
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestBlockIdentity(t *testing.T) {
	doc, err := Parse([]byte(`{"block":{"hash":"0xfeed","index":"99"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ref, ok := doc.BlockIdentity()
	if !ok {
		t.Fatalf("expected block identity")
	}
	if ref.Hash != "0xfeed" || ref.Index != 99 {
		t.Fatalf("ref mismatch: %+v", ref)
	}
}

func TestBlockIdentityAbsent(t *testing.T) {
	cases := []string{
		`{"hello":"world"}`,
		`{"block":{"hash":"","index":1}}`,
		`{"block":{"hash":"0xabc"}}`,
		`{"block":{"hash":"0xabc","index":"not-a-number"}}`,
		`{"block":"0xabc"}`,
	}
	for _, raw := range cases {
		doc, err := Parse([]byte(raw))
		if err != nil {
			t.Fatalf("unexpected parse error for %s: %v", raw, err)
		}
		if _, ok := doc.BlockIdentity(); ok {
			t.Fatalf("expected no block identity for %s", raw)
		}
	}
}

func TestStringAtWrongShape(t *testing.T) {
	doc, err := Parse([]byte(`{"block":{"index":7}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = StringAt(doc, "block", "index")
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("expected FieldError, got %v", err)
	}
	if fieldErr.Path != "block.index" || fieldErr.Want != "string" || fieldErr.Got != "number" {
		t.Fatalf("field error mismatch: %+v", fieldErr)
	}
}

func TestWalkThroughNonObject(t *testing.T) {
	doc, err := Parse([]byte(`{"block":"bare"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = StringAt(doc, "block", "hash")
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("expected FieldError, got %v", err)
	}
	if fieldErr.Path != "block" || fieldErr.Want != "object" {
		t.Fatalf("field error mismatch: %+v", fieldErr)
	}
}

func TestIntAtMissing(t *testing.T) {
	doc, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = IntAt(doc, "block", "index")
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("expected FieldError, got %v", err)
	}
	if fieldErr.Got != "missing" {
		t.Fatalf("field error mismatch: %+v", fieldErr)
	}
}

func TestIntAtFractional(t *testing.T) {
	doc, err := Parse([]byte(`{"fee":10.5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := IntAt(doc, "fee"); err == nil {
		t.Fatalf("expected error for fractional number")
	}
}
