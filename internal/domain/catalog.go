package domain

// BuiltinCatalog is the list of on-device models shipped with the app.
// Sizes are the published GGUF byte counts.
var BuiltinCatalog = []CatalogEntry{
	{
		ID:            "tinyllama",
		DisplayName:   "TinyLlama 1.1B Chat",
		SourceURL:     "https://huggingface.co/TheBloke/TinyLlama-1.1B-Chat-v1.0-GGUF/resolve/main/tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf",
		FileName:      "tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf",
		ExpectedBytes: 668_788_096,
		ChatTemplate:  "zephyr",
		ContextSize:   2048,
	},
	{
		ID:            "qwen2.5-1.5b",
		DisplayName:   "Qwen 2.5 1.5B Instruct",
		SourceURL:     "https://huggingface.co/Qwen/Qwen2.5-1.5B-Instruct-GGUF/resolve/main/qwen2.5-1.5b-instruct-q4_k_m.gguf",
		FileName:      "qwen2.5-1.5b-instruct-q4_k_m.gguf",
		ExpectedBytes: 986_048_768,
		ChatTemplate:  "chatml",
		ContextSize:   4096,
	},
	{
		ID:            "llama3.2-1b",
		DisplayName:   "Llama 3.2 1B Instruct",
		SourceURL:     "https://huggingface.co/hugging-quants/Llama-3.2-1B-Instruct-Q4_K_M-GGUF/resolve/main/llama-3.2-1b-instruct-q4_k_m.gguf",
		FileName:      "llama-3.2-1b-instruct-q4_k_m.gguf",
		ExpectedBytes: 807_690_656,
		ChatTemplate:  "llama3",
		ContextSize:   4096,
	},
	{
		ID:            "phi3-mini",
		DisplayName:   "Phi-3 Mini 4k Instruct",
		SourceURL:     "https://huggingface.co/microsoft/Phi-3-mini-4k-instruct-gguf/resolve/main/Phi-3-mini-4k-instruct-q4.gguf",
		FileName:      "Phi-3-mini-4k-instruct-q4.gguf",
		ExpectedBytes: 2_393_231_072,
		ChatTemplate:  "phi3",
		ContextSize:   4096,
	},
	{
		ID:            "gemma2-2b",
		DisplayName:   "Gemma 2 2B Instruct",
		SourceURL:     "https://huggingface.co/bartowski/gemma-2-2b-it-GGUF/resolve/main/gemma-2-2b-it-Q4_K_M.gguf",
		FileName:      "gemma-2-2b-it-Q4_K_M.gguf",
		ExpectedBytes: 1_708_582_752,
		ChatTemplate:  "gemma",
		ContextSize:   8192,
	},
}

// MergeCatalog func - Overlays entries on base by ID, appending new IDs in order
func MergeCatalog(base, overrides []CatalogEntry) []CatalogEntry {
	merged := make([]CatalogEntry, len(base))
	copy(merged, base)
	index := make(map[string]int, len(merged))
	for i, e := range merged {
		index[e.ID] = i
	}
	for _, e := range overrides {
		if i, ok := index[e.ID]; ok {
			merged[i] = e
			continue
		}
		index[e.ID] = len(merged)
		merged = append(merged, e)
	}
	return merged
}
