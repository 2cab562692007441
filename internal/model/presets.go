//go:build native

package model

import "strings"

// Preset captures the context/thread/generation defaults a known MPT or
// Replit-Code model variant should start from, the way the teacher's
// `internal/native/presets.go` applies defaults by matching a substring of
// the model's description or file path.
type Preset struct {
	Name          string
	ContextSize   int32
	Threads       int32
	MaxTokens     int
	Temperature   float64
	TopK          int
	RepeatLastN   int
}

type presetEntry struct {
	key    string
	preset Preset
}

var knownPresets = []presetEntry{
	{"replit-code-v1-3b", Preset{Name: "Replit Code v1 3B", ContextSize: 2048, Threads: 8, MaxTokens: 256, Temperature: 0.2, TopK: 1, RepeatLastN: 256}},
	{"replit-code", Preset{Name: "Replit Code", ContextSize: 2048, Threads: 8, MaxTokens: 256, Temperature: 0.2, TopK: 1, RepeatLastN: 256}},
	{"mpt-30b-chat", Preset{Name: "MPT 30B Chat", ContextSize: 8192, Threads: 16, MaxTokens: 512, Temperature: 0.7, TopK: 40, RepeatLastN: 512}},
	{"mpt-30b", Preset{Name: "MPT 30B", ContextSize: 4096, Threads: 16, MaxTokens: 512, Temperature: 0.8, TopK: 40, RepeatLastN: 256}},
	{"mpt-7b-chat", Preset{Name: "MPT 7B Chat", ContextSize: 2048, Threads: 8, MaxTokens: 512, Temperature: 0.7, TopK: 40, RepeatLastN: 256}},
	{"mpt-7b-instruct", Preset{Name: "MPT 7B Instruct", ContextSize: 2048, Threads: 8, MaxTokens: 512, Temperature: 0.3, TopK: 40, RepeatLastN: 256}},
	{"mpt-7b", Preset{Name: "MPT 7B", ContextSize: 2048, Threads: 8, MaxTokens: 256, Temperature: 0.8, TopK: 40, RepeatLastN: 256}},
}

// MatchPreset finds the best-matching known preset by case-insensitive
// substring search against a free-form description and/or file path,
// normalizing '-'/'_' to spaces the way the teacher's matchPreset does.
func MatchPreset(description, filePath string) (Preset, bool) {
	haystack := normalizeForMatch(description + " " + filePath)
	for _, e := range knownPresets {
		if strings.Contains(haystack, normalizeForMatch(e.key)) {
			return e.preset, true
		}
	}
	return Preset{}, false
}

func normalizeForMatch(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	return s
}
