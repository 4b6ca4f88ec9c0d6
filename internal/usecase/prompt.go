package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/landirector2008-wq/ha-deepseek-control/internal/domain"
)

// promptTemplate is the fixed instruction sent as the user message. The
// system message (JSON-only constraint) lives with the AI client; this part
// carries the sensor snapshot, the actuator inventory, the permitted action
// vocabulary, and the user's command.
const promptTemplate = `
YOU ARE A SMART HOME CONTROL SYSTEM. YOUR TASK IS TO RETURN A RESPONSE **EXCLUSIVELY IN JSON FORMAT** WITHOUT ANY ADDITIONAL COMMENTS, EXPLANATIONS, OR TEXT.

Input data:
- Sensor data: %s
- Available devices: %s
- User command: %s

You must return the response **STRICTLY** in the following JSON format:

{
    "reasoning": "Brief explanation of the decision",
    "commands": [
        {
            "entity_id": "light.kitchen",
            "action": "turn_on",
            "service_params": {"brightness": 200}
        }
    ]
}

CRITICAL RULES:
1. The response must be VALID JSON
2. DO NOT add any text outside the JSON structure
3. Use only devices from the list: %s
4. Support only the following action formats: %s
5. If the command is not possible, return an empty "commands" array and explain the reason in "reasoning"
6. Do not use markdown formatting (` + "```json" + `) - only pure JSON
`

// BuildPrompt renders the instruction for one automation cycle.
func BuildPrompt(states map[string]domain.EntityState, actuators []string, table domain.ActionTable, userCommand string) string {
	sensors := compactJSON(states)
	devices := "[" + strings.Join(quoteAll(actuators), ", ") + "]"
	actions := compactJSON(table)
	return fmt.Sprintf(promptTemplate, sensors, devices, userCommand, devices, actions)
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = `"` + s + `"`
	}
	return out
}
