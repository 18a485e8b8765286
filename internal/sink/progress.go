package sink

import (
	"context"
	"io"

	"github.com/imagedrop/backend/internal/widget"
)

// ProgressReader reports how much of an expected total has been read, as a
// percentage. Reports are emitted only when the whole-number percentage
// advances, and once more at EOF.
type ProgressReader struct {
	r        io.Reader
	total    int64
	read     int64
	last     int
	report   widget.ProgressFunc
	finished bool
}

// NewProgressReader wraps r. total <= 0 disables intermediate reports.
func NewProgressReader(r io.Reader, total int64, report widget.ProgressFunc) *ProgressReader {
	return &ProgressReader{r: r, total: total, last: -1, report: report}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)

	if p.report != nil {
		if p.total > 0 {
			pct := int(p.read * 100 / p.total)
			if pct > 99 && err == nil {
				pct = 99
			}
			if pct > p.last {
				p.last = pct
				p.report(float64(pct))
			}
		}
		if err == io.EOF && !p.finished {
			p.finished = true
			if p.last < 100 {
				p.last = 100
				p.report(100)
			}
		}
	}
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (p *ProgressReader) BytesRead() int64 { return p.read }

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}
