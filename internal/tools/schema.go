package tools

// Wire-shape exports for the schema endpoint. The llm layer builds its own
// typed provider params from Schemas(); these maps exist so external callers
// can fetch the tool surface in the shape their SDK expects.

// ToOpenAI renders the definitions as OpenAI function-tool objects.
func ToOpenAI() []map[string]any {
	defs := Definitions()
	out := make([]map[string]any, 0, len(defs))
	for _, d := range defs {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        string(d.Name),
				"description": d.Description,
				"parameters":  d.Parameters,
			},
		})
	}
	return out
}

// ToAnthropic renders the definitions as Anthropic tool objects.
func ToAnthropic() []map[string]any {
	defs := Definitions()
	out := make([]map[string]any, 0, len(defs))
	for _, d := range defs {
		out = append(out, map[string]any{
			"name":         string(d.Name),
			"description":  d.Description,
			"input_schema": d.Parameters,
		})
	}
	return out
}
