package lms_archiver

import (
	"context"
	"io"
)

// A context-aware io.Reader wrapper; lets io.Copy over a network stream be
// cancelled by the surrounding context.
type readerContext struct {
	ctx context.Context
	r   io.Reader
}

// NewReaderContext wraps r so that reads fail once ctx is done.
func NewReaderContext(ctx context.Context, r io.Reader) io.Reader {
	return &readerContext{ctx: ctx, r: r}
}

func (r *readerContext) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
