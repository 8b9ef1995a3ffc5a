package enrich

import (
	"reflect"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"chainstage/internal/model"
)

func TestChunkContracts(t *testing.T) {
	entities := []model.Contract{
		{Address: "0xa"}, {Address: "0xb"}, {Address: "0xc"},
		{Address: "0xd"}, {Address: "0xe"},
	}
	got, err := chunkContracts(entities, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := [][]model.Contract{
		{{Address: "0xa"}, {Address: "0xb"}},
		{{Address: "0xc"}, {Address: "0xd"}},
		{{Address: "0xe"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("batches mismatch: %+v != %+v", got, want)
	}
}

func TestChunkContractsEmpty(t *testing.T) {
	got, err := chunkContracts(nil, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no batches, got %+v", got)
	}
}

func TestChunkContractsInvalidSize(t *testing.T) {
	if _, err := chunkContracts([]model.Contract{{Address: "0xa"}}, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestPacerUnpaused(t *testing.T) {
	if limit := pacer(0).Limit(); limit != rate.Inf {
		t.Fatalf("expected unlimited pacer, got %v", limit)
	}
}

func TestPacerPaused(t *testing.T) {
	got := pacer(time.Second).Limit()
	want := rate.Every(time.Second)
	if got != want {
		t.Fatalf("limit mismatch: %v != %v", got, want)
	}
}
