package providers

import (
	"context"
	"errors"
	"testing"
)

func TestCollectPagesStopsWhenNoMore(t *testing.T) {
	var seen []int
	pages, partial, err := CollectPages(context.Background(), 0, func(_ context.Context, page int) (bool, error) {
		seen = append(seen, page)
		return page < 3, nil
	})
	if err != nil || partial != nil {
		t.Fatalf("unexpected errors: %v / %v", err, partial)
	}
	if pages != 3 || len(seen) != 3 || seen[2] != 3 {
		t.Fatalf("expected three pages, got %d (%v)", pages, seen)
	}
}

func TestCollectPagesFirstPageFailure(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := CollectPages(context.Background(), 0, func(context.Context, int) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected first page error, got %v", err)
	}
}

func TestCollectPagesLaterFailureKeepsPartial(t *testing.T) {
	collected := 0
	pages, partial, err := CollectPages(context.Background(), 0, func(_ context.Context, page int) (bool, error) {
		if page == 3 {
			return false, errors.New("rate limited")
		}
		collected++
		return true, nil
	})
	if err != nil {
		t.Fatalf("expected no hard error, got %v", err)
	}
	if partial == nil {
		t.Fatalf("expected partial error")
	}
	if pages != 2 || collected != 2 {
		t.Fatalf("expected two collected pages, got %d/%d", pages, collected)
	}
}

func TestCollectPagesHonoursMaxPages(t *testing.T) {
	pages, partial, err := CollectPages(context.Background(), 2, func(context.Context, int) (bool, error) {
		return true, nil
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if pages != 2 || partial == nil {
		t.Fatalf("expected cap at two pages with partial marker, got %d %v", pages, partial)
	}
}

func TestCollectPagesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := CollectPages(ctx, 0, func(context.Context, int) (bool, error) {
		t.Fatalf("fetch should not run")
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}
