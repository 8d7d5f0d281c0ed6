package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// wasmMagic is the WebAssembly binary preamble.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6D}

// MaxImageSize bounds how much a Source may return.
const MaxImageSize = 512 << 20

// IsWasm reports whether b starts with the WebAssembly preamble.
func IsWasm(b []byte) bool {
	return bytes.HasPrefix(b, wasmMagic)
}

// Source supplies the engine image bytes.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
	String() string
}

// FileSource reads the engine image from a file on disk.
func FileSource(path string) Source {
	return fileSource(path)
}

type fileSource string

func (s fileSource) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(string(s))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readImage(f)
}

func (s fileSource) String() string { return "file:" + string(s) }

// BytesSource serves an image already in memory.
func BytesSource(b []byte) Source {
	return bytesSource(b)
}

type bytesSource []byte

func (s bytesSource) Load(context.Context) ([]byte, error) {
	if len(s) > MaxImageSize {
		return nil, fmt.Errorf("engine image exceeds %d bytes", MaxImageSize)
	}
	return s, nil
}

func (s bytesSource) String() string { return fmt.Sprintf("bytes:%d", len(s)) }

// URLSource fetches the engine image over HTTP. A nil client uses one with a
// 60 second timeout. Fetch failures are transient from the loader's view: a
// later Initialize retries.
func URLSource(url string, client *http.Client) Source {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &urlSource{url: url, client: client}
}

type urlSource struct {
	client *http.Client
	url    string
}

func (s *urlSource) Load(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", s.url, resp.Status)
	}
	return readImage(resp.Body)
}

func (s *urlSource) String() string { return s.url }

func readImage(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxImageSize {
		return nil, fmt.Errorf("engine image exceeds %d bytes", MaxImageSize)
	}
	return b, nil
}
