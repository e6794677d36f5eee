package blobstore

import "sync"

// progressReader is handed to minio as PutObjectOptions.Progress. minio calls
// Read with every chunk it sends, so the slice length is the number of bytes
// just transferred. Retried parts are counted again, hence the clamp.
// Multipart uploads may call Read from several part goroutines; fn is called
// under the lock so callers see a non-decreasing count.
type progressReader struct {
	mu    sync.Mutex
	total int64
	done  int64
	fn    ProgressFunc
}

func newProgressReader(total int64, fn ProgressFunc) *progressReader {
	return &progressReader{total: total, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += int64(len(b))
	if p.total > 0 && p.done > p.total {
		p.done = p.total
	}
	p.fn(p.done, p.total)
	return len(b), nil
}
