package pak

import (
	"github.com/sirupsen/logrus"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cgvshader"
)

var log = logrus.WithField("component", "pak")

// bytesToSPIRVWords reinterprets a little-endian SPIR-V byte blob as the
// uint32 word stream hal.ShaderSource expects, matching the conversion
// gogpu-gg's CompileShaderToSPIRV performs on naga.Compile's output.
func bytesToSPIRVWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}

// CreateShaderModule materializes a GPU shader module on device from the
// instance stored for sourceType, using the specialization for
// entryPointName (or the generic variant, if entryPointName is empty).
func (p *Package) CreateShaderModule(device hal.Device, sourceType cgvshader.SourceType, entryPointName, label string) (hal.ShaderModule, error) {
	instance, ok := p.instances[sourceType]
	if !ok {
		return nil, &InvalidSourceTypeError{SourceType: sourceType.String()}
	}
	code, ok := instance.Code(entryPointName)
	if !ok {
		return nil, &InvalidEntryPointError{EntryPoint: entryPointName}
	}

	var source hal.ShaderSource
	switch sourceType {
	case cgvshader.SourceTypeSPIRV:
		source = hal.ShaderSource{SPIRV: bytesToSPIRVWords(code)}
	case cgvshader.SourceTypeWGSL:
		source = hal.ShaderSource{WGSL: string(code)}
	}

	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: label, Source: source})
}

// CreateShaderModuleFromBestInstance tries every cgvshader.FeasibleTargets
// source type for platform, most suitable first, materializing a shader
// module from the first instance/entry-point combination that succeeds.
// An instance missing for a source type is skipped silently; an instance
// present but missing the requested entry point is skipped with a warning,
// matching the original's createShaderModuleFromBestInstance.
func (p *Package) CreateShaderModuleFromBestInstance(device hal.Device, platform cgvshader.Platform, entryPointName, label string) (hal.ShaderModule, bool) {
	seen := make(map[cgvshader.SourceType]struct{})
	for _, target := range cgvshader.FeasibleTargets(platform) {
		st := target.SourceType()
		if _, dup := seen[st]; dup {
			continue
		}
		seen[st] = struct{}{}

		module, err := p.CreateShaderModule(device, st, entryPointName, label)
		if err == nil {
			return module, true
		}
		switch err.(type) {
		case *InvalidSourceTypeError:
			continue
		case *InvalidEntryPointError:
			log.WithField("sourceType", st.String()).Warnf(
				"shader entry point %q not found in %s program instance", entryPointName, st)
		}
	}
	return nil, false
}
