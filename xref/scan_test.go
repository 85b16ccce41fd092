package xref

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScanObjectsSkipsStreamPayload(t *testing.T) {
	data := "%PDF-1.7\n" +
		"1 0 obj\n<< /Length 20 >>\nstream\nendobj\n7 0 obj\nxx\nendstream\nendobj\n" +
		"2 0 obj\n<< /Type /Catalog >>\nendobj\n"
	found, err := scanObjects(context.Background(), []byte(data))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := map[int]entry{
		1: {offset: 9},
		2: {offset: int64(len("%PDF-1.7\n1 0 obj\n<< /Length 20 >>\nstream\nendobj\n7 0 obj\nxx\nendstream\nendobj\n"))},
	}
	if diff := cmp.Diff(want, found, cmp.AllowUnexported(entry{})); diff != "" {
		t.Fatalf("objects mismatch (-want +got):\n%s", diff)
	}
}

func TestScanObjectsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := scanObjects(ctx, []byte("1 0 obj\nnull\nendobj\n")); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
