package ollama

import (
	"fmt"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

func buildDecomposePrompt(question string, act domain.Act) string {
	if act == "" {
		act = domain.ActAll
	}
	return fmt.Sprintf(`You decompose legal queries into atomic retrieval sub-queries.
Rules:
- Output valid JSON only
- Max 5 sub-queries
- Prefer exact article/section references when present
- If a specific act is provided, keep sub-queries within that act

Output format:
{"sub_queries": ["..."]}

Act filter: %s
Query: %s
`, act, question)
}

func buildAnswerPrompt(question, contextText string) string {
	return fmt.Sprintf(`You are a legal assistant grounded ONLY in the provided context.
Rules:
- Use only the provided context
- Cite exact article/section citations (e.g., Article 21 (COI), Section 279 (IPC))
- If the question uses a common term that is not a named offence, answer by combining the relevant retrieved sections
- Do not guess or use external knowledge
- Prefer 2-4 short paragraphs plus a compact bullet list of cited sections and penalties
- If key details are missing in the context, state what is missing in one short sentence at the end

Return strict JSON: {"answer": string, "cited_sections": [string]}. No markdown fences.

Context:
%s

Question:
%s
`, contextText, question)
}
