package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/wippyai/engine-bridge/errors"
)

// Sink delivers a produced buffer somewhere on the host.
type Sink interface {
	Deliver(ctx context.Context, buf []byte, name string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, buf []byte, name string) error

func (f SinkFunc) Deliver(ctx context.Context, buf []byte, name string) error {
	return f(ctx, buf, name)
}

// ToHostSink hands buf to sink under a sanitized version of suggestedName.
// It has no effect on any engine.
func ToHostSink(ctx context.Context, sink Sink, buf []byte, suggestedName string) error {
	if sink == nil {
		return errors.InvalidInput(errors.PhaseHostIO, "no sink")
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.PhaseHostIO, errors.KindCanceled, err, "delivery aborted")
	}
	name := SanitizeName(suggestedName)
	if err := sink.Deliver(ctx, buf, name); err != nil {
		if errors.IsPhase(err, errors.PhaseHostIO) {
			return err
		}
		e := errors.Wrap(errors.PhaseHostIO, errors.KindSinkFailed, err, "deliver output")
		e.Path = name
		return e
	}
	return nil
}

// SanitizeName reduces a suggested name to a single safe file name. Empty or
// unusable names become "output".
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7F:
			return -1
		case strings.ContainsRune(`<>:"|?*`, r):
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, ". ")
	if name == "" || name == "/" {
		return "output"
	}
	return name
}

// DirSink writes buffers as files in dir. Each file is written to a
// temporary name and renamed, so a reader never sees a partial file.
type DirSink string

func (d DirSink) Deliver(_ context.Context, buf []byte, name string) error {
	dir := string(d)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// WriterSink copies buffers to w, ignoring the name.
func WriterSink(w io.Writer) Sink {
	return SinkFunc(func(_ context.Context, buf []byte, _ string) error {
		_, err := io.Copy(w, bytes.NewReader(buf))
		return err
	})
}

// DownloadSink serves buffers as an HTTP attachment on w, with a content
// type detected from the bytes.
func DownloadSink(w http.ResponseWriter) Sink {
	return SinkFunc(func(_ context.Context, buf []byte, name string) error {
		mt := mimetype.Detect(buf)
		if filepath.Ext(name) == "" {
			name += mt.Extension()
		}
		w.Header().Set("Content-Type", mt.String())
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		w.Header().Set("Content-Length", fmt.Sprint(len(buf)))
		w.WriteHeader(http.StatusOK)
		_, err := w.Write(buf)
		return err
	})
}

// DetectType returns the MIME type and usual extension of buf.
func DetectType(buf []byte) (mediaType, extension string) {
	mt := mimetype.Detect(buf)
	return mt.String(), mt.Extension()
}
