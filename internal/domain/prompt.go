package domain

import "strings"

// RenderPrompt func - Formats an ordered history with the named chat template
// and leaves the assistant turn open for generation
func RenderPrompt(template string, messages []ChatMessage) string {
	var b strings.Builder
	switch template {
	case "llama3":
		b.WriteString("<|begin_of_text|>")
		for _, m := range messages {
			b.WriteString("<|start_header_id|>" + string(m.Role) + "<|end_header_id|>\n\n")
			b.WriteString(m.Content + "<|eot_id|>")
		}
		b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	case "phi3":
		for _, m := range messages {
			b.WriteString("<|" + string(m.Role) + "|>\n" + m.Content + "<|end|>\n")
		}
		b.WriteString("<|assistant|>\n")
	case "gemma":
		// gemma has no system role; fold it into the first user turn
		var system string
		for _, m := range messages {
			switch m.Role {
			case ChatMessageRoleSystem:
				system += m.Content + "\n\n"
			case ChatMessageRoleAssistant:
				b.WriteString("<start_of_turn>model\n" + m.Content + "<end_of_turn>\n")
			default:
				b.WriteString("<start_of_turn>user\n" + system + m.Content + "<end_of_turn>\n")
				system = ""
			}
		}
		b.WriteString("<start_of_turn>model\n")
	case "mistral":
		var system string
		for _, m := range messages {
			switch m.Role {
			case ChatMessageRoleSystem:
				system += m.Content + "\n\n"
			case ChatMessageRoleAssistant:
				b.WriteString(" " + m.Content + "</s>")
			default:
				b.WriteString("[INST] " + system + m.Content + " [/INST]")
				system = ""
			}
		}
	case "zephyr":
		for _, m := range messages {
			b.WriteString("<|" + string(m.Role) + "|>\n" + m.Content + "</s>\n")
		}
		b.WriteString("<|assistant|>\n")
	default:
		for _, m := range messages {
			b.WriteString("<|im_start|>" + string(m.Role) + "\n" + m.Content + "<|im_end|>\n")
		}
		b.WriteString("<|im_start|>assistant\n")
	}
	return b.String()
}

// StopTokens func - end-of-turn markers for a template plus any extra ones
func StopTokens(template string, extra []string) []string {
	var stops []string
	switch template {
	case "llama3":
		stops = []string{"<|eot_id|>", "<|end_of_text|>"}
	case "phi3":
		stops = []string{"<|end|>", "<|endoftext|>"}
	case "gemma":
		stops = []string{"<end_of_turn>"}
	case "mistral":
		stops = []string{"</s>", "[INST]"}
	case "zephyr":
		stops = []string{"</s>", "<|user|>"}
	default:
		stops = []string{"<|im_end|>", "<|im_start|>"}
	}
	seen := make(map[string]struct{}, len(stops)+len(extra))
	for _, s := range stops {
		seen[s] = struct{}{}
	}
	for _, s := range extra {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		stops = append(stops, s)
	}
	return stops
}
