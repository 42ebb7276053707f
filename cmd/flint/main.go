// Package main provides the Flint CLI.
package main

import (
	"fmt"
	"os"

	"github.com/flintml/flint/internal/backend/webgpu"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Flint %s\n", version)
			return
		case "devices":
			printDevices()
			return
		}
	}

	fmt.Println("Flint - Lazy Tensor Evaluation for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  devices    List available compute devices")
}

func printDevices() {
	if !webgpu.IsAvailable() {
		fmt.Println("WebGPU: not available")
		return
	}

	b, err := webgpu.New()
	if err != nil {
		fmt.Printf("WebGPU: %v\n", err)
		return
	}
	defer b.Release()

	info := b.AdapterInfo()
	fmt.Printf("WebGPU: %s\n", b.Name())
	if info != nil {
		fmt.Printf("  Driver:  %s\n", info.Description)
		fmt.Printf("  Backend: %v\n", info.BackendType)
		fmt.Printf("  Type:    %v\n", info.AdapterType)
	}

	stats := b.MemoryStats()
	fmt.Printf("  Buffers: %d active, %d bytes\n", stats.ActiveBuffers, stats.ActiveBytes)
}
