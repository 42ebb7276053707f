package webgpu

import (
	"fmt"

	"github.com/flintml/flint/internal/device"
	"github.com/go-webgpu/webgpu/wgpu"
)

// maxWorkgroupThreads is the WebGPU baseline limit for threads per
// workgroup. Shader sources registered here must not exceed it.
const maxWorkgroupThreads = 256

// kernel identifies a registered shader. Pipeline creation happens at
// first dispatch, not at resolution.
type kernel struct {
	name string
}

func (k *kernel) Name() string            { return k.name }
func (k *kernel) MaxThreadsPerGroup() int { return maxWorkgroupThreads }

// RegisterSource registers a WGSL compute shader under the given kernel
// name. The entry point must be named "main". Compilation is deferred
// until the kernel is first dispatched.
func (b *Backend) RegisterSource(name, code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources[name] = code
}

// GetKernel resolves a registered kernel by name.
func (b *Backend) GetKernel(name string) (device.Kernel, error) {
	b.mu.RLock()
	_, ok := b.sources[name]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("webgpu: no shader registered under %q", name)
	}
	return &kernel{name: name}, nil
}

// compileShader compiles the registered WGSL source for name into a
// ShaderModule, caching the result.
func (b *Backend) compileShader(name string) (*wgpu.ShaderModule, error) {
	b.mu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.mu.RUnlock()
		return shader, nil
	}
	code, ok := b.sources[name]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("webgpu: no shader registered under %q", name)
	}

	shader := b.dev.CreateShaderModuleWGSL(code)

	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()

	return shader, nil
}

// getOrCreatePipeline returns a cached ComputePipeline or creates one
// from the named shader module.
func (b *Backend) getOrCreatePipeline(name string) (*wgpu.ComputePipeline, error) {
	b.mu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.mu.RUnlock()
		return pipeline, nil
	}
	b.mu.RUnlock()

	shader, err := b.compileShader(name)
	if err != nil {
		return nil, err
	}

	// Auto layout (nil layout): bindings are inferred from the shader.
	pipeline := b.dev.CreateComputePipelineSimple(nil, shader, "main")

	b.mu.Lock()
	b.pipelines[name] = pipeline
	b.mu.Unlock()

	return pipeline, nil
}
