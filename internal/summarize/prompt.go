// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/book-analyzer/internal/openai"
)

// previousTopicChars bounds how much of each prior analysis is echoed back
// to the model as context.
const previousTopicChars = 100

// analysisInstructionsTmpl is the system prompt for summary generation. It
// asks for a layered markdown study guide and lists the topics of prior
// analyses so consecutive summaries do not repeat themselves.
var analysisInstructionsTmpl = template.Must(template.New("analysis").Parse(`Create a comprehensive and detailed summary of the supplied content using markdown. Follow these guidelines carefully:

Difficulty Rating:
Rate each section's complexity:
🟢 Basic - Fundamental concepts, no prior knowledge needed
🟡 Intermediate - Builds on basic concepts
🔴 Advanced - Requires strong understanding of prerequisites

1. Context and Overview:
   - Start with a "Quick Take" summary (2-3 sentences)
   - List key themes and topics covered
   - Explain target audience and required background
   - Rate section difficulty (🟢/🟡/🔴)

2. Key Concepts (Minimum 5):
   - Start each concept with an "In Simple Terms" explanation
   - Follow with "Deep Dive" technical details
   - Use analogies and metaphors for complex ideas
   - Include "Common Misconceptions" warnings
   - Rate each concept's difficulty (🟢/🟡/🔴)

3. Technical Details:
   - Use progressive disclosure - simple to complex
   - Include "Quick Reference" tables
   - Provide "Step-by-Step" breakdowns
   - Show "Real-World Examples"

4. Visual Learning Aids:
   | Concept | Simple Terms | Technical Details | Example |
   |---------|--------------|-------------------|---------|

5. Practice and Application:
   - "Try This" exercises
   - "Think About" discussion points
   - "Common Problems" and solutions

6. Summary and Next Steps:
   - "5-Minute Summary" for quick review
   - "Key Takeaways" checklist
   - "Further Reading" suggestions

Formatting:
- Use 💡 for insights
- Use ⚠️ for warnings
- Use 📌 for key points
- Use 🤔 for common questions

Previous Summary Topics:
{{range .PreviousTopics}}- {{.}}
{{else}}- No previous analyses
{{end}}
Remember to:
1. Use the "Explain, Example, Exercise" pattern
2. Include "Why This Matters" for each topic
3. Use progressive complexity
4. Reference previous knowledge rather than repeating it

Current Content Analysis:`))

// OpenAIBackend generates summaries through the OpenAI chat API.
type OpenAIBackend struct {
	Client *openai.Client
	Model  string
}

// Summarize renders the analysis instructions with prior-analysis context
// and asks the model for a markdown summary of the knowledge points.
func (b *OpenAIBackend) Summarize(ctx context.Context, knowledge, previousAnalyses []string) (string, error) {
	system, err := renderInstructions(previousAnalyses)
	if err != nil {
		return "", fmt.Errorf("rendering instructions: %w", err)
	}

	user := "Analyze this content:\n" + strings.Join(knowledge, "\n")
	return b.Client.Chat(ctx, b.Model, system, user)
}

func renderInstructions(previousAnalyses []string) (string, error) {
	topics := make([]string, 0, len(previousAnalyses))
	for _, a := range previousAnalyses {
		topics = append(topics, topicOf(a))
	}

	var buf bytes.Buffer
	err := analysisInstructionsTmpl.Execute(&buf, struct {
		PreviousTopics []string
	}{PreviousTopics: topics})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// topicOf truncates a prior analysis to its leading characters for the
// previous-topics list.
func topicOf(analysis string) string {
	runes := []rune(analysis)
	if len(runes) <= previousTopicChars {
		return analysis
	}
	return string(runes[:previousTopicChars]) + "..."
}
