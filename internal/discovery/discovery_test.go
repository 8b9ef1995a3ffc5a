package discovery

import (
	"context"
	"errors"
	"testing"

	"chainstage/internal/model"
	"chainstage/internal/warehouse"
)

type fakeWarehouse struct {
	leaseBusy bool
	inserted  int64
	execErr   error
	execCalls int
}

func (f *fakeWarehouse) AcquireLease(ctx context.Context, name string) (*warehouse.Lease, bool, error) {
	if f.leaseBusy {
		return nil, false, nil
	}
	return &warehouse.Lease{}, true, nil
}

func (f *fakeWarehouse) Exec(ctx context.Context, op, sql string, args ...any) (int64, error) {
	f.execCalls++
	if f.execErr != nil {
		return 0, f.execErr
	}
	return f.inserted, nil
}

func TestRunReportsNewEntities(t *testing.T) {
	fake := &fakeWarehouse{inserted: 5}

	res, err := NewJob(fake, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != model.StatusSuccess || res.NewEntities != 5 {
		t.Fatalf("result mismatch: %+v", res)
	}
	if res.JobName != "contract_discovery" {
		t.Fatalf("job name mismatch: %q", res.JobName)
	}
}

func TestRunNothingNew(t *testing.T) {
	fake := &fakeWarehouse{inserted: 0}

	res, err := NewJob(fake, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != model.StatusSuccess || res.NewEntities != 0 {
		t.Fatalf("result mismatch: %+v", res)
	}
}

func TestRunLeaseBusy(t *testing.T) {
	fake := &fakeWarehouse{leaseBusy: true}

	res, err := NewJob(fake, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != model.StatusNoNewData {
		t.Fatalf("status mismatch: %s", res.Status)
	}
	if fake.execCalls != 0 {
		t.Fatalf("discovery should not run while lease is held elsewhere")
	}
}

func TestRunQueryFailure(t *testing.T) {
	fake := &fakeWarehouse{execErr: errors.New("relation missing")}

	res, err := NewJob(fake, nil).Run(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if res.Status != model.StatusError || res.Error == "" {
		t.Fatalf("result mismatch: %+v", res)
	}
}
