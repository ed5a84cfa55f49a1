package llm

import (
	"fmt"

	"github.com/Shivaya007/CROP-AI/internal/analysis"
)

// The analysis prompt and the parser in internal/analysis are two
// halves of one wire format: the prompt tells the model to wrap its
// care plan and heading in the parser's sentinel tokens. Keep them in
// lockstep.
const analysisPromptTemplate = `Analyze this crop and provide the name, diseases, and possible treatments, provide a short report of 50 words only in points.

After the report, add a multi-day care plan:
- Wrap the plan heading between %[2]s markers, like %[2]sTreatment Plan%[2]s.
- Wrap the plan itself between %[1]s markers as a JSON array where each element is an object with exactly one key, the day label, mapping to that day's task, like %[1]s[{"Day 1":"Water the plant"},{"Day 2":"Apply fungicide"}]%[1]s.
- Do not use the marker tokens anywhere else in your reply.`

// AnalysisPrompt returns the prompt sent with every crop photo.
func AnalysisPrompt() string {
	return fmt.Sprintf(analysisPromptTemplate, analysis.TaskDelimiter, analysis.HeadingDelimiter)
}
