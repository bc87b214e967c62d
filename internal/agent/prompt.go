package agent

import (
	"fmt"
	"strings"

	"github.com/flemzord/quill/internal/tool"
)

const systemPromptTemplate = `You are a ReAct (Reasoning and Acting) agent specialized in historical document analysis.
You can reason about problems and use tools to solve them.

Available Tools:
%s

ReAct Pattern:
1. Thought: Analyze the problem and decide what to do next
2. Action: Either use a tool or provide a final answer
3. Observation: Process the results and update your understanding
4. Repeat until you have a complete answer

Tool Usage Format:
Action: tool_name(parameter1="value1", parameter2="value2")

Final Answer Format:
Action: Final Answer
Observation: [Your complete answer here]

Guidelines:
- Always think step by step
- Use tools when you need specific information
- Provide detailed observations about tool results
- Give comprehensive final answers with proper citations
- If a tool fails, try alternative approaches
- Focus on historical accuracy and scholarly analysis

Begin your reasoning with "Thought:" and continue with the ReAct pattern.`

const synthesisInstruction = "Based on your reasoning and tool usage above, provide a comprehensive final answer to the user's query."

// BuildSystemPrompt renders the system prompt for the given tools.
func BuildSystemPrompt(tools []tool.Tool) string {
	lines := make([]string, 0, len(tools))
	for _, t := range tools {
		lines = append(lines, fmt.Sprintf("- %s: %s\n  Parameters: %s",
			t.Name(), t.Description(), strings.Join(t.Parameters(), ", ")))
	}
	return fmt.Sprintf(systemPromptTemplate, strings.Join(lines, "\n"))
}

// transcript is the running context sent to the model, one entry per line.
type transcript []string

func newTranscript(systemPrompt, query string) transcript {
	return transcript{systemPrompt, "User Query: " + query}
}

// record appends a finished step.
func (t transcript) record(s Step) transcript {
	t = append(t, fmt.Sprintf("Step %d:", s.Number), "Thought: "+s.Thought)
	if s.Action != nil && *s.Action != "" {
		t = append(t, "Action: "+*s.Action)
	}
	if s.Observation != nil && *s.Observation != "" {
		t = append(t, "Observation: "+*s.Observation)
	}
	return t
}

// stepPrompt asks the model for step n.
func (t transcript) stepPrompt(n int) string {
	return strings.Join(t, "\n") + fmt.Sprintf("\n\nStep %d:\nThought:", n)
}

// synthesisPrompt asks for an answer once the iteration budget is spent.
func (t transcript) synthesisPrompt() string {
	return strings.Join(t, "\n") + "\n\n" + synthesisInstruction
}
