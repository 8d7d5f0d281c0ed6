package engine

// DefaultModuleName names the engine instance inside its runtime.
const DefaultModuleName = "engine"

// Config holds configuration for opening an engine.
type Config struct {
	// Source supplies the engine image. Required.
	Source Source

	// AssetsDir is a host directory of auxiliary engine assets (fonts, color
	// profiles). WASI engines see it read-only at AssetsMount.
	AssetsDir string

	// AssetsMount is the engine-side mount point of AssetsDir.
	// Defaults to DefaultAssetsMount.
	AssetsMount string

	// CacheDir enables wazero's on-disk compilation cache.
	CacheDir string

	// Name is the engine instance name. Defaults to DefaultModuleName.
	Name string

	// MemoryLimitPages sets the maximum engine memory in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32
}

func (c Config) name() string {
	if c.Name == "" {
		return DefaultModuleName
	}
	return c.Name
}
