package storage

import (
	"io"
	"sync"

	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/wb-go/wbf/zlog"
)

// ProgressChan forwards progress into a channel without ever blocking the upload.
type ProgressChan chan<- float64

func (c ProgressChan) OnProgress(percent float64) {
	select {
	case c <- percent:
	default:
	}
}

// progressReader counts bytes read through it and reports percentages
// to a listener. Each reported value is strictly greater than the previous.
// With a nil source it acts as a sink: every Read just counts len(b), which is
// how minio reports transferred bytes through PutObjectOptions.Progress.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	last     float64
	listener domain.ProgressListener
	once     sync.Once
}

// NewProgressReader wraps r, reporting progress against total bytes.
func NewProgressReader(r io.Reader, total int64, listener domain.ProgressListener) io.Reader {
	return newProgressReader(r, total, listener)
}

func newProgressReader(r io.Reader, total int64, listener domain.ProgressListener) *progressReader {
	return &progressReader{r: r, total: total, last: -1, listener: listener}
}

func newProgressSink(total int64, listener domain.ProgressListener) *progressReader {
	return newProgressReader(nil, total, listener)
}

func (p *progressReader) Read(b []byte) (int, error) {
	if p.r == nil {
		p.read += int64(len(b))
		p.report()
		return len(b), nil
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.report()
	}
	return n, err
}

func (p *progressReader) report() {
	if p.listener == nil || p.total <= 0 {
		return
	}
	pct := float64(p.read) / float64(p.total) * 100
	if pct > 100 {
		pct = 100
	}
	if pct <= p.last {
		return
	}
	p.last = pct
	p.notify(pct)
}

func (p *progressReader) notify(pct float64) {
	defer func() {
		if r := recover(); r != nil {
			p.once.Do(func() {
				zlog.Logger.Warn().Interface("panic", r).Msg("progress listener panicked, ignoring")
			})
		}
	}()
	p.listener.OnProgress(pct)
}
