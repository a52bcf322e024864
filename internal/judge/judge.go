// Package judge builds the LLM-as-judge prompt and parses its verdict for
// text problems (C6).
package judge

import (
	"encoding/json"
	"fmt"
	"strings"
)

const judgeSystemPrompt = `You are an impartial grading assistant. Given a problem, its expected ` +
	`answer (if any), and a candidate's response, judge whether the candidate's response is correct. ` +
	`Reply with ONLY a JSON object of the form {"verdict":"PASS"|"FAIL","reasoning":"...","score":0-100}.`

// BuildPrompt constructs the system and user messages the Adapter sends to
// the judge model (spec §4.6).
func BuildPrompt(prompt, expected, candidateOutput string) (system, user string) {
	expectedLine := "No expected answer was provided."
	if expected != "" {
		expectedLine = fmt.Sprintf("Expected answer: %s", expected)
	}

	user = fmt.Sprintf("Problem:\n%s\n\n%s\n\nCandidate response:\n%s", prompt, expectedLine, candidateOutput)
	return judgeSystemPrompt, user
}

// Verdict is the parsed outcome of a judge response.
type Verdict struct {
	Pass      bool
	Score     int
	Reasoning string
}

type strictVerdict struct {
	Verdict   string `json:"verdict"`
	Reasoning string `json:"reasoning"`
	Score     *int   `json:"score"`
}

// Parse applies the strict-JSON parse with the documented textual fallback
// (spec §4.6). It never errors — an unparseable response degrades to the
// textual rule rather than surfacing a judge failure.
func Parse(response string) Verdict {
	var strict strictVerdict
	if err := json.Unmarshal([]byte(extractJSONObject(response)), &strict); err == nil && strict.Verdict != "" {
		pass := strings.EqualFold(strict.Verdict, "PASS")
		score := 0
		if strict.Score != nil {
			score = *strict.Score
		} else if pass {
			score = 100
		}
		return Verdict{Pass: pass, Score: score, Reasoning: strict.Reasoning}
	}

	return parseTextualFallback(response)
}

// extractJSONObject trims surrounding prose a judge model sometimes wraps
// its JSON in (code fences, "Here is the verdict:", etc.) by taking the
// substring between the first '{' and the last '}'.
func extractJSONObject(response string) string {
	start := strings.IndexByte(response, '{')
	end := strings.LastIndexByte(response, '}')
	if start == -1 || end == -1 || end < start {
		return response
	}
	return response[start : end+1]
}

func parseTextualFallback(response string) Verdict {
	upper := strings.ToUpper(response)
	pass := containsWord(upper, "PASS") || strings.HasPrefix(strings.TrimSpace(upper), "YES")
	pass = pass && !containsWord(upper, "FAIL")

	score := 0
	verdictWord := "FAIL"
	if pass {
		score = 100
		verdictWord = "PASS"
	}

	snippet := response
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}

	return Verdict{
		Pass:      pass,
		Score:     score,
		Reasoning: fmt.Sprintf("Simple verdict: %s. Full response: %s", verdictWord, snippet),
	}
}

// containsWord reports whether word appears in s as a standalone token
// (surrounded by non-letter boundaries or the string edges), so "PASSING"
// doesn't count as containing "PASS".
func containsWord(s, word string) bool {
	idx := 0
	for {
		pos := strings.Index(s[idx:], word)
		if pos == -1 {
			return false
		}
		start := idx + pos
		end := start + len(word)

		beforeOK := start == 0 || !isLetter(s[start-1])
		afterOK := end == len(s) || !isLetter(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
