// Package config loads settings for the engine bridge service and CLI.
//
// Settings come from three layers, later ones winning:
//
//  1. Default values
//  2. A YAML file, decoded strictly so unknown keys are rejected
//  3. ENGINE_BRIDGE_* environment variables, optionally seeded from a .env file
//
// Example file:
//
//	engine:
//	  image: ./engine.wasm
//	  assets: ./assets
//	  memory_limit_pages: 4096
//	server:
//	  addr: ":8080"
//	  invoke_timeout: 30s
package config
