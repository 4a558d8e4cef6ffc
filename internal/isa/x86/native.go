package x86

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/cpu"
)

// hostFeatures returns the values of the x86 settings detected on the host.
func hostFeatures() map[string]bool {
	return map[string]bool{
		"has_sse3":   cpu.X86.HasSSE3,
		"has_ssse3":  cpu.X86.HasSSSE3,
		"has_sse41":  cpu.X86.HasSSE41,
		"has_sse42":  cpu.X86.HasSSE42,
		"has_popcnt": cpu.X86.HasPOPCNT,
		"has_avx":    cpu.X86.HasAVX,
		"has_avx2":   cpu.X86.HasAVX2,
		"has_bmi1":   cpu.X86.HasBMI1,
		"has_bmi2":   cpu.X86.HasBMI2,
		// x/sys/cpu doesn't report ABM. LZCNT shipped with or before BMI1 on
		// every Intel and AMD generation.
		"has_lzcnt": cpu.X86.HasBMI1,
	}
}

// NativeBuilder returns a Builder for the CPU mode of the host with the
// features of the host CPU enabled.
func NativeBuilder() (*Builder, error) {
	var mode Mode
	switch runtime.GOARCH {
	case "amd64":
		mode = ModeX86_64
	case "386":
		mode = ModeI686
	default:
		return nil, fmt.Errorf("host architecture %s is not x86", runtime.GOARCH)
	}
	b, err := NewBuilder(mode.String())
	if err != nil {
		return nil, err
	}
	if err = b.EnableHostFeatures(); err != nil {
		return nil, err
	}
	return b, nil
}

// EnableHostFeatures enables the settings for the features of the host CPU.
// Settings the host lacks are left unchanged.
func (b *Builder) EnableHostFeatures() error {
	return b.applyFeatures(hostFeatures())
}

func (b *Builder) applyFeatures(features map[string]bool) error {
	for name, has := range features {
		if !has {
			continue
		}
		if err := b.settings.Set(name, true); err != nil {
			return err
		}
	}
	return nil
}
