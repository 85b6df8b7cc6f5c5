package steps

import (
	"fmt"
	"strings"
)

// Schemas follow the strict json_schema rules: additionalProperties false
// everywhere and required listing every property, unused fields come back
// as empty strings.

func conceptExtractionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"concepts": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"title":        map[string]any{"type": "string"},
						"explanation":  map[string]any{"type": "string"},
						"source_quote": map[string]any{"type": "string"},
					},
					"required":             []string{"title", "explanation", "source_quote"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"concepts"},
		"additionalProperties": false,
	}
}

func conceptExtractionPrompt(language string, maxConcepts int, marked string) (string, string) {
	system := `You extract the key concepts a learner must understand from study material.
Ground every concept in the provided text. Do not invent topics.
Return JSON only.`
	user := fmt.Sprintf(`SOURCE_TEXT (markers [p.N] are page numbers, [t=Ns] are video timestamps):
%s

Task:
- Extract at most %d key concepts, most important first.
- title: short noun phrase (2-8 words).
- explanation: 2-4 plain sentences a learner at any level can follow.
- source_quote: a short verbatim phrase copied from SOURCE_TEXT where the
  concept is introduced, without the [p.N]/[t=Ns] markers.
- Respond in %s.`, marked, maxConcepts, languageName(language))
	return system, user
}

func conceptEdgesSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"edges": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"from":      map[string]any{"type": "integer"},
						"to":        map[string]any{"type": "integer"},
						"edge_type": map[string]any{"type": "string", "enum": []string{"prereq", "related"}},
						"strength":  map[string]any{"type": "number"},
					},
					"required":             []string{"from", "to", "edge_type", "strength"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"edges"},
		"additionalProperties": false,
	}
}

func conceptEdgesPrompt(listing string, maxEdges int) (string, string) {
	system := `You map relations between key concepts from one study source.
Only propose relations the concept explanations themselves support.
Return JSON only.`
	user := fmt.Sprintf(`CONCEPTS (numbered):
%s

Task:
- Propose at most %d edges between concept numbers.
- edge_type "prereq": understanding "from" is required before "to".
- edge_type "related": the two illuminate each other, no ordering.
- strength: 0.0-1.0 confidence.
- No self-edges. Omit anything you are unsure about.`, listing, maxEdges)
	return system, user
}

func flashcardSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"front": map[string]any{"type": "string"},
			"back":  map[string]any{"type": "string"},
		},
		"required":             []string{"front", "back"},
		"additionalProperties": false,
	}
}

func flashcardPrompt(language, level, title, explanation string) (string, string) {
	system := `You write one high-quality flashcard for a single concept.
The front asks, the back answers. No markdown, no labels.
Return JSON only.`
	user := fmt.Sprintf(`CONCEPT_TITLE: %s
CONCEPT_EXPLANATION:
%s

Task:
- front: one question that tests understanding, not recall of wording.
- back: a complete answer in 1-3 sentences.
%s- Respond in %s.`, title, explanation, levelHint(level), languageName(language))
	return system, user
}

func multipleChoiceSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question":     map[string]any{"type": "string"},
			"options":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"answer_index": map[string]any{"type": "integer"},
			"explanation":  map[string]any{"type": "string"},
		},
		"required":             []string{"question", "options", "answer_index", "explanation"},
		"additionalProperties": false,
	}
}

func multipleChoicePrompt(language, level, title, explanation string) (string, string) {
	system := `You write one fair multiple-choice question for a single concept.
Distractors must be plausible, the same length class as the answer, and wrong
for a reason a confused learner would actually believe.
Return JSON only.`
	user := fmt.Sprintf(`CONCEPT_TITLE: %s
CONCEPT_EXPLANATION:
%s

Task:
- question: one clear question.
- options: exactly 4 options, one correct.
- answer_index: 0-based index of the correct option.
- explanation: one sentence on why the answer is right.
%s- Respond in %s.`, title, explanation, levelHint(level), languageName(language))
	return system, user
}

func trueFalseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"statement":   map[string]any{"type": "string"},
			"answer":      map[string]any{"type": "string", "enum": []string{"true", "false"}},
			"explanation": map[string]any{"type": "string"},
		},
		"required":             []string{"statement", "answer", "explanation"},
		"additionalProperties": false,
	}
}

func trueFalsePrompt(language, level, title, explanation string) (string, string) {
	system := `You write one true/false statement for a single concept.
False statements must contain exactly one specific error, not be absurd.
Return JSON only.`
	user := fmt.Sprintf(`CONCEPT_TITLE: %s
CONCEPT_EXPLANATION:
%s

Task:
- statement: one declarative sentence, either true or subtly false.
- answer: "true" or "false".
- explanation: one sentence justifying the answer.
%s- Respond in %s.`, title, explanation, levelHint(level), languageName(language))
	return system, user
}

func levelHint(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "beginner":
		return "- Aim at a beginner: everyday vocabulary, no assumed background.\n"
	case "advanced":
		return "- Aim at an advanced learner: precise terminology is fine.\n"
	default:
		return ""
	}
}

func languageName(code string) string {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "", "en":
		return "English"
	case "es":
		return "Spanish"
	case "fr":
		return "French"
	case "de":
		return "German"
	case "pt":
		return "Portuguese"
	case "it":
		return "Italian"
	case "ja":
		return "Japanese"
	case "ko":
		return "Korean"
	case "zh":
		return "Chinese"
	case "hi":
		return "Hindi"
	default:
		return code
	}
}
