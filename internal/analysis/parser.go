// Package analysis extracts the structured care plan the model is
// instructed to embed in its free-form reply. The sentinel tokens here
// and the prompt sent to the model form one wire format: the prompt
// tells the model to wrap its task list and heading in these exact
// markers, and this package is the consuming side. Change them together.
package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Shivaya007/CROP-AI/internal/domain"
)

// Sentinel tokens of the prompt contract. TaskDelimiter bounds a JSON
// array of single-key objects mapping a day label to a task description;
// HeadingDelimiter bounds the plan heading.
const (
	TaskDelimiter    = "~$%~"
	HeadingDelimiter = "~&^~"
)

// ParsedResponse is the structured view of one raw model reply.
type ParsedResponse struct {
	// DisplayText is the reply with both sentinel regions (markers and
	// interior) removed, whitespace-trimmed.
	DisplayText string

	// Heading is the trimmed interior of the heading region, empty when
	// the region is absent.
	Heading string

	// Tasks are the decoded care-plan steps in source order, Sequence
	// assigned 1..N after skipping malformed elements.
	Tasks []domain.TaskItem

	// TaskDecodeErr is set when a task region was present but its
	// interior failed to decode as a JSON array. The tasks degrade to
	// empty; callers may log it. DisplayText is unaffected.
	TaskDecodeErr error
}

type sentinels struct {
	task    string
	heading string
}

// One fixed pair today regardless of locale. The locale hook exists so
// a per-language marker pair can be registered without touching callers.
func sentinelsFor(locale string) sentinels {
	_ = locale
	return sentinels{task: TaskDelimiter, heading: HeadingDelimiter}
}

// Parse extracts the care plan and heading from one raw model reply.
// It is a pure function: no I/O, no side effects, and it never panics
// for any input.
func Parse(raw string) ParsedResponse {
	return ParseWithLocale(raw, "")
}

// ParseWithLocale is Parse with an explicit locale tag selecting the
// recognized sentinel pair.
func ParseWithLocale(raw, locale string) ParsedResponse {
	s := sentinelsFor(locale)

	var (
		taskInterior, headingInterior string
		hasTasks, hasHeading          bool
	)

	// Stripping one region can splice the surrounding text into a new
	// marker pair, so iterate to a fixpoint. Only the first interior of
	// each kind is decoded.
	rest := raw
	for {
		next, inner, found := stripRegions(rest, s.task)
		if found && !hasTasks {
			taskInterior, hasTasks = inner, true
		}
		next, inner, foundHeading := stripRegions(next, s.heading)
		if foundHeading && !hasHeading {
			headingInterior, hasHeading = inner, true
		}
		if next == rest {
			break
		}
		rest = next
	}

	out := ParsedResponse{
		DisplayText: strings.TrimSpace(rest),
	}
	if hasHeading {
		out.Heading = strings.TrimSpace(headingInterior)
	}
	if hasTasks {
		out.Tasks, out.TaskDecodeErr = decodeTasks(taskInterior)
	}
	return out
}

// stripRegions removes every region bounded by a repeated delim from
// text and returns the interior of the first one. Stripping all pairs
// keeps Parse idempotent on its own output even when the model emits
// the markers more than once.
func stripRegions(text, delim string) (remainder, interior string, ok bool) {
	remainder = text
	for {
		rest, inner, found := extractRegion(remainder, delim)
		if !found {
			return remainder, interior, ok
		}
		remainder = rest
		if !ok {
			interior = inner
			ok = true
		}
	}
}

// extractRegion removes the first region bounded by a repeated delim
// from text and returns the remainder plus the interior. A lone,
// unclosed marker is not a region and is left in place.
func extractRegion(text, delim string) (remainder, interior string, ok bool) {
	start := strings.Index(text, delim)
	if start < 0 {
		return text, "", false
	}
	innerStart := start + len(delim)
	end := strings.Index(text[innerStart:], delim)
	if end < 0 {
		return text, "", false
	}
	interior = text[innerStart : innerStart+end]
	remainder = text[:start] + text[innerStart+end+len(delim):]
	return remainder, interior, true
}

// decodeTasks decodes the task-region interior as a JSON array of
// single-key objects. A whole-array decode failure degrades to no
// tasks; an element that is not exactly one key is skipped and the
// rest keep decoding, so Sequence stays contiguous.
func decodeTasks(interior string) ([]domain.TaskItem, error) {
	var raw []map[string]string
	if err := json.Unmarshal([]byte(strings.TrimSpace(interior)), &raw); err != nil {
		return nil, fmt.Errorf("decoding task array: %w", err)
	}

	var tasks []domain.TaskItem
	for _, m := range raw {
		if len(m) != 1 {
			continue
		}
		for day, desc := range m {
			tasks = append(tasks, domain.TaskItem{
				Sequence:    len(tasks) + 1,
				DayLabel:    day,
				Description: desc,
			})
		}
	}
	return tasks, nil
}
