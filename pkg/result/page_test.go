package result

import (
	"fmt"
	"testing"

	"github.com/unisql-project/unisql/pkg/errors"
)

func makeRowSet(n int) *RowSet {
	rs := &RowSet{Columns: []Column{{Name: "id"}}}
	for i := 0; i < n; i++ {
		rs.Rows = append(rs.Rows, []interface{}{int64(i)})
	}
	return rs
}

func TestPage_RoundTripCoversAllRows(t *testing.T) {
	rs := makeRowSet(237)

	seen := make(map[int64]bool)
	for i := 0; i < 5; i++ {
		view, err := Page(rs, i, 50)
		if err != nil {
			t.Fatalf("Page(%d) failed: %v", i, err)
		}
		if view.TotalRows != 237 {
			t.Errorf("page %d: TotalRows = %d, want 237", i, view.TotalRows)
		}
		if view.TotalPages != 5 {
			t.Errorf("page %d: TotalPages = %d, want 5", i, view.TotalPages)
		}
		for _, row := range view.Rows {
			id := row[0].(int64)
			if seen[id] {
				t.Fatalf("row %d appeared twice", id)
			}
			seen[id] = true
		}
	}

	if len(seen) != 237 {
		t.Errorf("pages covered %d rows, want 237", len(seen))
	}

	last, err := Page(rs, 4, 50)
	if err != nil {
		t.Fatalf("Page(4) failed: %v", err)
	}
	if len(last.Rows) != 37 {
		t.Errorf("last page has %d rows, want 37", len(last.Rows))
	}
}

func TestPage_OutOfRange(t *testing.T) {
	rs := makeRowSet(10)

	if _, err := Page(rs, 1, 10); err == nil {
		t.Error("expected range error for page past the clamped last page")
	} else if !errors.IsKind(err, errors.KindRange) {
		t.Errorf("expected range kind, got %v", errors.KindOf(err))
	}

	if _, err := Page(rs, -1, 10); err == nil {
		t.Error("expected range error for negative index")
	}
	if _, err := Page(rs, 0, 0); err == nil {
		t.Error("expected range error for non-positive page size")
	}
}

func TestPage_EmptyRowSet(t *testing.T) {
	rs := makeRowSet(0)

	view, err := Page(rs, 0, 50)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if len(view.Rows) != 0 || view.TotalPages != 1 {
		t.Errorf("unexpected view for empty row set: %+v", view)
	}

	if _, err := Page(rs, 1, 50); err == nil {
		t.Error("expected range error for page 1 of empty row set")
	}
}

func TestPage_DoesNotCopyRows(t *testing.T) {
	rs := makeRowSet(100)
	view, err := Page(rs, 1, 10)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if fmt.Sprintf("%p", view.Rows) != fmt.Sprintf("%p", rs.Rows[10:20]) {
		t.Error("page rows do not alias the row set storage")
	}
}

func TestPaginator_ResetOnNewRowSet(t *testing.T) {
	p := NewPaginator(10)
	p.SetRowSet(makeRowSet(100))

	if _, err := p.Seek(5); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}

	// A fresh execution invalidates the prior cursor.
	p.SetRowSet(makeRowSet(30))
	view, err := p.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if view.Index != 0 {
		t.Errorf("cursor = %d after new row set, want 0", view.Index)
	}
}

func TestPaginator_Navigation(t *testing.T) {
	p := NewPaginator(10)
	p.SetRowSet(makeRowSet(25))

	view, err := p.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if view.Index != 1 || !view.HasNext() || !view.HasPrev() {
		t.Errorf("unexpected middle page: %+v", view)
	}

	view, err = p.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if view.Index != 2 || view.HasNext() || len(view.Rows) != 5 {
		t.Errorf("unexpected last page: %+v", view)
	}

	if _, err := p.Next(); err == nil {
		t.Error("expected range error advancing past the last page")
	}

	// A failed seek must not move the cursor.
	view, err = p.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if view.Index != 2 {
		t.Errorf("cursor moved to %d after failed Next, want 2", view.Index)
	}
}

func TestPaginator_NoRowSet(t *testing.T) {
	p := NewPaginator(10)
	if _, err := p.Current(); err == nil {
		t.Error("expected error with no row set installed")
	}
}
