package transfer

import (
	"context"
	"io"
	"os"

	"github.com/wippyai/engine-bridge/errors"
)

// chunkSize is the read granularity used to notice cancellation.
const chunkSize = 64 << 10

// FromHostSource reads r to the end. The result holds exactly the bytes r
// produced, in order. A read error or the end of ctx fails with a host
// source error.
func FromHostSource(ctx context.Context, r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, errors.HostSourceUnreadable("no source", nil)
	}

	var buf []byte
	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.HostSourceUnreadable("read aborted", err)
		}
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.HostSourceUnreadable("read failed", err)
		}
	}
	if buf == nil {
		buf = []byte{}
	}
	return buf, nil
}

// FromFile reads a host file. See FromHostSource.
func FromFile(ctx context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		e := errors.HostSourceUnreadable("open file", err)
		e.Path = path
		return nil, e
	}
	defer f.Close()

	buf, err := FromHostSource(ctx, f)
	if err != nil {
		if e, ok := errors.As(err); ok {
			e.Path = path
		}
		return nil, err
	}
	return buf, nil
}
