package x86

import "github.com/tetratelabs/encsel/internal/settings"

// Template is the settings template shared by the x86 CPU modes.
var Template = settings.MustNewTemplate("x86",
	[]settings.Setting{
		{Name: "has_sse3", Doc: "SSE3: CPUID.01H:ECX.SSE3[bit 0]"},
		{Name: "has_ssse3", Doc: "SSSE3: CPUID.01H:ECX.SSSE3[bit 9]"},
		{Name: "has_sse41", Doc: "SSE4.1: CPUID.01H:ECX.SSE4_1[bit 19]"},
		{Name: "has_sse42", Doc: "SSE4.2: CPUID.01H:ECX.SSE4_2[bit 20]"},
		{Name: "has_popcnt", Doc: "POPCNT: CPUID.01H:ECX.POPCNT[bit 23]"},
		{Name: "has_avx", Doc: "AVX: CPUID.01H:ECX.AVX[bit 28]"},
		{Name: "has_avx2", Doc: "AVX2: CPUID.(EAX=07H, ECX=0H):EBX.AVX2[bit 5]"},
		{Name: "has_bmi1", Doc: "BMI1: CPUID.(EAX=07H, ECX=0H):EBX.BMI1[bit 3]"},
		{Name: "has_bmi2", Doc: "BMI2: CPUID.(EAX=07H, ECX=0H):EBX.BMI2[bit 8]"},
		{Name: "has_lzcnt", Doc: "LZCNT: CPUID.80000001H:ECX.ABM[bit 5]"},
		{Name: "is_pic", Doc: "Generate position independent code"},
	},
	[]settings.Predicate{
		{Name: "use_ssse3", Eval: func(has func(string) bool) bool { return has("has_sse3") && has("has_ssse3") }},
		{Name: "use_sse41", Eval: func(has func(string) bool) bool { return has("use_ssse3") && has("has_sse41") }},
		{Name: "use_sse42", Eval: func(has func(string) bool) bool { return has("use_sse41") && has("has_sse42") }},
		{Name: "use_popcnt", Eval: func(has func(string) bool) bool { return has("has_popcnt") && has("use_sse42") }},
		{Name: "use_bmi1", Eval: func(has func(string) bool) bool { return has("has_bmi1") }},
		{Name: "use_lzcnt", Eval: func(has func(string) bool) bool { return has("has_lzcnt") }},
	},
	[]settings.Preset{
		{Name: "baseline", Enables: []string{"has_sse3"}},
		{Name: "nehalem", Enables: []string{"baseline", "has_ssse3", "has_sse41", "has_sse42", "has_popcnt"}},
		{Name: "haswell", Enables: []string{"nehalem", "has_avx", "has_avx2", "has_bmi1", "has_bmi2", "has_lzcnt"}},
	},
)

// ISA predicate numbers used by encodings.
var (
	predUsePopcnt = Template.MustPredicateNumber("use_popcnt")
	predUseBmi1   = Template.MustPredicateNumber("use_bmi1")
	predUseLzcnt  = Template.MustPredicateNumber("use_lzcnt")
	predIsPIC     = Template.MustPredicateNumber("is_pic")
)
