package result

import (
	"sync"

	"github.com/unisql-project/unisql/pkg/errors"
)

// PageView is a derived, non-owning window over a RowSet. The row
// slice aliases the RowSet's storage; nothing is copied.
type PageView struct {
	Index      int
	Size       int
	TotalRows  int
	TotalPages int
	Rows       [][]interface{}
}

// HasNext reports whether a later page exists.
func (v PageView) HasNext() bool { return v.Index < v.TotalPages-1 }

// HasPrev reports whether an earlier page exists.
func (v PageView) HasPrev() bool { return v.Index > 0 }

// Page returns the window at the given page index. The index is valid
// up to and including the clamped last page; anything beyond is a
// range error. An empty RowSet has exactly one valid, empty page 0.
func Page(rs *RowSet, index, size int) (PageView, error) {
	if size <= 0 {
		return PageView{}, errors.Newf(errors.KindRange, errors.CodePageSize,
			"page size must be positive, got %d", size)
	}
	if index < 0 {
		return PageView{}, errors.Newf(errors.KindRange, errors.CodePageOutOfRange,
			"page index must be non-negative, got %d", index)
	}

	total := rs.Len()
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if index > pages-1 {
		return PageView{}, errors.Newf(errors.KindRange, errors.CodePageOutOfRange,
			"page %d out of range: %d rows yield pages 0..%d", index, total, pages-1)
	}

	start := index * size
	end := start + size
	if end > total {
		end = total
	}

	var slice [][]interface{}
	if rs != nil && start < total {
		slice = rs.Rows[start:end]
	}

	return PageView{
		Index:      index,
		Size:       size,
		TotalRows:  total,
		TotalPages: pages,
		Rows:       slice,
	}, nil
}

// Paginator holds navigation state over the current RowSet. Installing
// a new RowSet resets the cursor to page 0; a fresh execution
// invalidates any prior pagination position.
type Paginator struct {
	mu    sync.Mutex
	rs    *RowSet
	index int
	size  int
}

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 100

// NewPaginator creates a paginator with the given page size (or
// DefaultPageSize when size is not positive).
func NewPaginator(size int) *Paginator {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Paginator{size: size}
}

// SetRowSet installs a new RowSet and resets the cursor to page 0.
func (p *Paginator) SetRowSet(rs *RowSet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rs = rs
	p.index = 0
}

// RowSet returns the currently installed RowSet, which retains every
// row regardless of the current page view.
func (p *Paginator) RowSet() *RowSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rs
}

// SetPageSize changes the page size and resets the cursor.
func (p *Paginator) SetPageSize(size int) error {
	if size <= 0 {
		return errors.Newf(errors.KindRange, errors.CodePageSize,
			"page size must be positive, got %d", size)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.size = size
	p.index = 0
	return nil
}

// Current returns the view at the cursor.
func (p *Paginator) Current() (PageView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view(p.index)
}

// Seek moves the cursor to the given page and returns its view.
func (p *Paginator) Seek(index int) (PageView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, err := p.view(index)
	if err != nil {
		return PageView{}, err
	}
	p.index = index
	return v, nil
}

// Next advances the cursor one page.
func (p *Paginator) Next() (PageView, error) {
	p.mu.Lock()
	index := p.index + 1
	p.mu.Unlock()
	return p.Seek(index)
}

// Prev moves the cursor back one page.
func (p *Paginator) Prev() (PageView, error) {
	p.mu.Lock()
	index := p.index - 1
	p.mu.Unlock()
	return p.Seek(index)
}

func (p *Paginator) view(index int) (PageView, error) {
	if p.rs == nil {
		return PageView{}, errors.New(errors.KindRange, errors.CodePageOutOfRange,
			"no row set installed")
	}
	return Page(p.rs, index, p.size)
}
