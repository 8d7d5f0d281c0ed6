package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/engine-bridge/errors"
	"github.com/wippyai/engine-bridge/invoke"
	"github.com/wippyai/engine-bridge/loader"
	"github.com/wippyai/engine-bridge/transfer"
	"github.com/wippyai/engine-bridge/vfs"
)

// maxFieldSize bounds non-file multipart fields.
const maxFieldSize = 1 << 20

// ResultHeader carries the scalar result of an operation answered with a download.
const ResultHeader = "X-Engine-Result"

// Health is the body of /healthz and /readyz.
type Health struct {
	State    string `json:"state"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// Capability describes one exported operation.
type Capability struct {
	Name    string   `json:"name"`
	Params  []string `json:"params"`
	Results []string `json:"results"`
}

// CallRequest is the body of a JSON operation request and the "args" and
// "result" fields of a multipart one.
type CallRequest struct {
	Args     []invoke.ArgSpec `json:"args"`
	Result   string           `json:"result"`
	Filename string           `json:"filename,omitempty"`
}

// CallResponse is the JSON answer to an operation request. Outputs maps each
// output path that holds a buffer to its bytes.
type CallResponse struct {
	Op      string            `json:"op"`
	Result  string            `json:"result"`
	Value   any               `json:"value,omitempty"`
	Outputs map[string][]byte `json:"outputs,omitempty"`
}

func (s *Server) health() Health {
	h := Health{State: s.loader.State().String(), Attempts: s.loader.Attempts()}
	if err := s.loader.Err(); err != nil {
		h.Error = err.Error()
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.health())
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	if s.loader.State() != loader.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, s.health())
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	h, _, err := s.engine(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	caps := make([]Capability, 0, len(h.Capabilities()))
	for _, name := range h.Capabilities() {
		exp, ok := h.Export(name)
		if !ok {
			continue
		}
		caps = append(caps, Capability{
			Name:    name,
			Params:  typeNames(exp.Params),
			Results: typeNames(exp.Results),
		})
	}
	writeJSON(w, http.StatusOK, map[string][]Capability{"capabilities": caps})
}

func typeNames(types []api.ValueType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return names
}

// call is a parsed operation request.
type call struct {
	req      invoke.Request
	temps    []string // fresh paths removed after the call
	filename string
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUpload)

	c, err := parseCall(ctx, r, name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	_, serial, err := s.engine(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	waitCtx := ctx
	if s.cfg.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.cfg.InvokeTimeout)
		defer cancel()
	}

	var (
		out     invoke.Outcome
		outputs map[string][]byte
	)
	queued := time.Now()
	err = serial.Do(waitCtx, func(h invoke.Engine) error {
		s.metrics.RecordQueueWait(time.Since(queued))
		fsys := h.FS()
		defer func() {
			for _, p := range c.temps {
				_ = fsys.Remove(p)
			}
		}()

		label := name
		if _, ok := h.Export(name); !ok {
			label = UnsupportedOpLabel
		}
		start := time.Now()
		var err error
		out, err = invoke.Invoke(ctx, h, c.req)
		s.metrics.RecordInvocation(label, time.Since(start), err)
		if err != nil {
			return err
		}
		outputs = make(map[string][]byte, len(out.Outputs))
		for _, p := range out.Outputs {
			if data, err := fsys.Read(p); err == nil {
				outputs[p] = data
			}
		}
		return nil
	})
	if err != nil {
		s.log.Debug("operation failed",
			zap.String("request_id", RequestID(ctx)),
			zap.String("op", name),
			zap.Error(err))
		writeError(w, r, err)
		return
	}

	if len(outputs) == 1 {
		for _, data := range outputs {
			if out.Kind != invoke.Void {
				w.Header().Set(ResultHeader, fmt.Sprint(out.Value()))
			}
			suggested := c.filename
			if suggested == "" {
				suggested = name
			}
			if err := transfer.ToHostSink(ctx, transfer.DownloadSink(w), data, suggested); err != nil {
				s.log.Warn("download failed", zap.String("op", name), zap.Error(err))
			}
		}
		return
	}

	writeJSON(w, http.StatusOK, CallResponse{
		Op:      name,
		Result:  out.Kind.String(),
		Value:   out.Value(),
		Outputs: outputs,
	})
}

// parseCall reads a JSON or multipart operation request.
func parseCall(ctx context.Context, r *http.Request, name string) (*call, error) {
	var (
		body    CallRequest
		uploads = make(map[string]upload)
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := readMultipart(ctx, r, &body, uploads); err != nil {
			return nil, err
		}
	case "application/json", "":
		if r.ContentLength != 0 {
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&body); err != nil && err != io.EOF {
				var tooLarge *http.MaxBytesError
				if stderrors.As(err, &tooLarge) {
					return nil, errors.HostSourceUnreadable("read request body", err)
				}
				return nil, badRequest(name, "decode request: %v", err)
			}
		}
	default:
		return nil, badRequest(name, "unsupported content type %q", mediaType)
	}

	result, err := invoke.ParseResultKind(body.Result)
	if err != nil {
		return nil, err
	}

	c := &call{filename: body.Filename}
	args := make([]invoke.Arg, 0, len(body.Args))
	for i, spec := range body.Args {
		arg, err := c.resolve(name, i, spec, uploads)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	c.req = invoke.NewRequest(name, result, args...)
	return c, nil
}

type upload struct {
	data     []byte
	filename string
}

// resolve turns an ArgSpec into an Arg, binding "@field" references to
// uploads and "@" outputs to fresh paths.
func (c *call) resolve(op string, i int, spec invoke.ArgSpec, uploads map[string]upload) (invoke.Arg, error) {
	kind := strings.ToLower(strings.TrimSpace(spec.Kind))
	ref, isRef := strings.CutPrefix(spec.Value, "@")
	if !isRef {
		return spec.Arg()
	}

	switch kind {
	case "input", "bytes":
		up, ok := uploads[ref]
		if !ok {
			return invoke.Arg{}, badRequest(op, "argument %d refers to missing upload %q", i, ref)
		}
		p := vfs.Temp("upload", path.Ext(up.filename))
		c.temps = append(c.temps, p)
		return invoke.Bytes(p, up.data), nil
	case "output":
		if ref != "" {
			return invoke.Arg{}, badRequest(op, "output argument %d must be \"@\" or a path", i)
		}
		p := vfs.Temp("output", "")
		c.temps = append(c.temps, p)
		return invoke.Output(p), nil
	}
	return spec.Arg()
}

func readMultipart(ctx context.Context, r *http.Request, body *CallRequest, uploads map[string]upload) error {
	mr, err := r.MultipartReader()
	if err != nil {
		return badRequest("", "read multipart: %v", err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.HostSourceUnreadable("read multipart", err)
		}

		field := part.FormName()
		if part.FileName() != "" {
			data, err := transfer.FromHostSource(ctx, part)
			part.Close()
			if err != nil {
				return err
			}
			uploads[field] = upload{data: data, filename: part.FileName()}
			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
		part.Close()
		if err != nil {
			return errors.HostSourceUnreadable("read form field", err)
		}
		switch field {
		case "args":
			if err := json.Unmarshal(value, &body.Args); err != nil {
				return badRequest("", "decode args: %v", err)
			}
		case "result":
			body.Result = string(value)
		case "filename":
			body.Filename = string(value)
		}
	}
}

func badRequest(op, format string, args ...any) error {
	return errors.New(errors.PhaseInvocation, errors.KindInvalidInput).
		Op(op).
		Detail(format, args...).
		Build()
}
