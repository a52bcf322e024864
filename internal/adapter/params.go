package adapter

import "github.com/modelforge/modelforge/internal/domain"

// paramSupport reports, per adapter kind, whether a canonical parameter is
// sendable and under what wire name (spec §4.2's support matrix).
type paramSupport struct {
	openaiCompat string
	anthropic    string
	gemini       string
}

var paramMatrix = map[string]paramSupport{
	"temperature":        {"temperature", "temperature", "temperature"},
	"max_tokens":         {"max_tokens", "max_tokens", "maxOutputTokens"},
	"top_p":              {"top_p", "top_p", "topP"},
	"top_k":              {"", "top_k", "topK"},
	"frequency_penalty":  {"frequency_penalty", "", "frequencyPenalty"},
	"presence_penalty":   {"presence_penalty", "", "presencePenalty"},
	"stop_sequences":     {"stop", "stop_sequences", "stop"},
}

// projectParams returns the enabled-only subset of params, keyed by the
// wire name for kind, ready to merge into a request body. Params unsupported
// for kind, disabled, or an empty stop_sequences array are dropped.
func projectParams(kind domain.AdapterKind, params map[string]domain.ParamValue) map[string]any {
	out := make(map[string]any)
	for name, pv := range params {
		if !pv.Enabled {
			continue
		}
		support, known := paramMatrix[name]
		if !known {
			continue
		}

		var wireName string
		switch kind {
		case domain.AdapterOpenAICompat, domain.AdapterCustom:
			wireName = support.openaiCompat
		case domain.AdapterAnthropic:
			wireName = support.anthropic
		case domain.AdapterGemini:
			wireName = support.gemini
		}
		if wireName == "" {
			continue
		}

		if name == "stop_sequences" {
			if len(pv.StopSequences) == 0 {
				continue
			}
			out[wireName] = pv.StopSequences
			continue
		}
		out[wireName] = pv.Value
	}
	return out
}
