package transform

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"chainstage/internal/model"
	"chainstage/internal/warehouse"
)

type fakeWarehouse struct {
	leaseBusy    bool
	wm           model.Watermark
	wmFound      bool
	hasNew       bool
	staged       int64
	extractedMax time.Time
	extractErr   error

	peekCursor    time.Time
	extractCursor time.Time
	extractCalls  int
	markedError   bool
}

func (f *fakeWarehouse) AcquireLease(ctx context.Context, name string) (*warehouse.Lease, bool, error) {
	if f.leaseBusy {
		return nil, false, nil
	}
	return &warehouse.Lease{}, true, nil
}

func (f *fakeWarehouse) LoadWatermark(ctx context.Context, stream string) (model.Watermark, bool, error) {
	return f.wm, f.wmFound, nil
}

func (f *fakeWarehouse) HasNewRows(ctx context.Context, predicate string, cursor time.Time) (bool, error) {
	f.peekCursor = cursor
	return f.hasNew, nil
}

func (f *fakeWarehouse) ExtractStream(ctx context.Context, stream, predicate, extract string, cursor time.Time) (int64, time.Time, error) {
	f.extractCalls++
	f.extractCursor = cursor
	if f.extractErr != nil {
		return 0, time.Time{}, f.extractErr
	}
	return f.staged, f.extractedMax, nil
}

func (f *fakeWarehouse) MarkWatermarkError(ctx context.Context, stream string) error {
	f.markedError = true
	return nil
}

func TestRefreshSuccess(t *testing.T) {
	cursor := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	max := cursor.Add(90 * time.Second)
	fake := &fakeWarehouse{
		wm:           model.Watermark{StreamName: model.StreamTransactions, LastProcessedAt: cursor},
		wmFound:      true,
		hasNew:       true,
		staged:       42,
		extractedMax: max,
	}

	res, err := NewEngine(fake, nil).Refresh(context.Background(), model.StreamTransactions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != model.StatusSuccess {
		t.Fatalf("status mismatch: %s", res.Status)
	}
	if res.RowsProcessed != 42 {
		t.Fatalf("rows mismatch: %d", res.RowsProcessed)
	}
	if res.LastProcessedAt == nil || !res.LastProcessedAt.Equal(max) {
		t.Fatalf("cursor mismatch: %v", res.LastProcessedAt)
	}
	if !fake.extractCursor.Equal(cursor) {
		t.Fatalf("extract ran from %v, want %v", fake.extractCursor, cursor)
	}
}

func TestRefreshFirstRunStartsAtEpoch(t *testing.T) {
	fake := &fakeWarehouse{hasNew: true, staged: 1, extractedMax: time.Now().UTC()}

	if _, err := NewEngine(fake, nil).Refresh(context.Background(), model.StreamEvents); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fake.extractCursor.Equal(time.Unix(0, 0).UTC()) {
		t.Fatalf("first run cursor mismatch: %v", fake.extractCursor)
	}
}

func TestRefreshNoNewData(t *testing.T) {
	fake := &fakeWarehouse{wmFound: true, hasNew: false}

	res, err := NewEngine(fake, nil).Refresh(context.Background(), model.StreamAddresses)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != model.StatusNoNewData {
		t.Fatalf("status mismatch: %s", res.Status)
	}
	if res.LastProcessedAt != nil {
		t.Fatalf("expected no cursor in result")
	}
	if fake.extractCalls != 0 {
		t.Fatalf("extract should not run without new data")
	}
}

func TestRefreshLeaseBusy(t *testing.T) {
	fake := &fakeWarehouse{leaseBusy: true, hasNew: true}

	res, err := NewEngine(fake, nil).Refresh(context.Background(), model.StreamTransactions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != model.StatusNoNewData {
		t.Fatalf("status mismatch: %s", res.Status)
	}
	if fake.extractCalls != 0 {
		t.Fatalf("extract should not run while lease is held elsewhere")
	}
}

func TestRefreshExtractFailureMarksWatermark(t *testing.T) {
	fake := &fakeWarehouse{hasNew: true, extractErr: errors.New("boom")}

	res, err := NewEngine(fake, nil).Refresh(context.Background(), model.StreamTransactions)
	if err == nil {
		t.Fatalf("expected error")
	}
	if res.Status != model.StatusError || res.Error == "" {
		t.Fatalf("result mismatch: %+v", res)
	}
	if !fake.markedError {
		t.Fatalf("failed run should be recorded on the watermark")
	}
}

func TestRefreshUnknownStream(t *testing.T) {
	fake := &fakeWarehouse{}

	_, err := NewEngine(fake, nil).Refresh(context.Background(), "blocks")
	if !errors.Is(err, ErrUnknownStream) {
		t.Fatalf("expected ErrUnknownStream, got %v", err)
	}
	if fake.markedError {
		t.Fatalf("unknown stream should not touch watermarks")
	}
}

func TestStreams(t *testing.T) {
	got := NewEngine(&fakeWarehouse{}, nil).Streams()
	want := []string{model.StreamAddresses, model.StreamEvents, model.StreamTransactions}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("streams mismatch: %v != %v", got, want)
	}
}
