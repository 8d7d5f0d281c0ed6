package engine

import (
	"bytes"
	"context"
	"crypto/rand"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"
	"github.com/tetratelabs/wazero/experimental/sysfs"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// WASIModuleName is the import module of WASI preview1.
const WASIModuleName = wasi_snapshot_preview1.ModuleName

// DefaultAssetsMount is where Config.AssetsDir appears inside the engine.
const DefaultAssetsMount = "/assets"

// instantiateWASI registers WASI preview1 in r.
func instantiateWASI(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(WASIModuleName)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	return builder.Instantiate(ctx)
}

// moduleConfig builds the engine instance configuration. The bridge namespace
// is mounted read-write at "/", assets (if any) read-only at their mount point,
// and engine stdout/stderr go to the log.
func moduleConfig(cfg Config, namespace experimentalsys.FS, log *zap.Logger) wazero.ModuleConfig {
	fsCfg := wazero.NewFSConfig().(sysfs.FSConfig).WithSysFSMount(namespace, "/")
	if cfg.AssetsDir != "" {
		mount := cfg.AssetsMount
		if mount == "" {
			mount = DefaultAssetsMount
		}
		fsCfg = fsCfg.WithReadOnlyDirMount(cfg.AssetsDir, mount)
	}

	return wazero.NewModuleConfig().
		WithName(cfg.name()).
		WithStartFunctions("_initialize").
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader).
		WithStdout(&logWriter{log: log, stream: "stdout"}).
		WithStderr(&logWriter{log: log, stream: "stderr"}).
		WithFSConfig(fsCfg)
}

// logWriter forwards engine console output to zap, one entry per line.
type logWriter struct {
	log    *zap.Logger
	stream string
	buf    []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.log.Debug(string(w.buf[:i]), zap.String("stream", w.stream))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}
