package capture

import (
	"context"
	"regexp"
	"strings"
)

// Extraction is what the external analysis collaborator yields for a single
// captured line: a cleaned-up description and how confident it is that the
// text really is an action item.
type Extraction struct {
	Description string
	Confidence  float64
}

// ExtractedTask is one action item pulled out of a meeting transcript.
type ExtractedTask struct {
	Description string
	Assignee    string
	DueDate     string
}

// MeetingExtraction is the transcript analysis result.
type MeetingExtraction struct {
	Summary string
	Tasks   []ExtractedTask
}

// Extractor turns free text into a task candidate. The production
// implementation calls an external model service; its output is opaque here.
type Extractor interface {
	ExtractTask(ctx context.Context, text string) (*Extraction, error)
}

// MeetingExtractor analyzes a whole transcript into minutes plus action
// items.
type MeetingExtractor interface {
	ExtractMeeting(ctx context.Context, title, transcript string) (*MeetingExtraction, error)
}

var actionWords = []string{
	"todo", "need to", "needs to", "should", "must", "will", "review",
	"fix", "update", "prepare", "send", "schedule", "follow up", "finish",
}

var blockerWords = []string{
	"blocked", "stuck", "waiting", "can't proceed", "dependency", "issue",
	"problem", "blocker",
}

// HeuristicExtractor is the built-in fallback used when no external model
// service is configured. Confidence is a keyword score, deterministic for
// the same input.
type HeuristicExtractor struct{}

func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

func (h *HeuristicExtractor) ExtractTask(_ context.Context, text string) (*Extraction, error) {
	desc := strings.TrimSpace(text)
	lower := strings.ToLower(desc)
	confidence := 0.3
	for _, w := range actionWords {
		if strings.Contains(lower, w) {
			confidence += 0.15
		}
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	return &Extraction{
		Description: desc,
		Confidence:  confidence,
	}, nil
}

var assigneePattern = regexp.MustCompile(`(?i)^([A-Za-z]+)\s+(?:will|to|should|needs to)\s+`)

// Lead words that match the assignee pattern but are never names, so lines
// like "Need to review the docs" stay unassigned.
var assigneeStopwords = map[string]bool{
	"need": true, "needs": true, "want": true, "going": true,
	"have": true, "has": true, "remember": true, "plan": true,
	"i": true, "we": true, "you": true, "they": true, "it": true,
	"this": true, "that": true, "someone": true, "everyone": true,
	"team": true, "todo": true, "action": true, "still": true,
}

func (h *HeuristicExtractor) ExtractMeeting(ctx context.Context, title, transcript string) (*MeetingExtraction, error) {
	out := &MeetingExtraction{}
	var summaryLines []string
	for _, line := range strings.Split(transcript, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		isAction := false
		for _, w := range actionWords {
			if strings.Contains(lower, w) {
				isAction = true
				break
			}
		}
		if isAction {
			t := ExtractedTask{Description: line}
			if m := assigneePattern.FindStringSubmatch(line); m != nil {
				if name := strings.ToLower(m[1]); !assigneeStopwords[name] {
					t.Assignee = name
				}
			}
			out.Tasks = append(out.Tasks, t)
			continue
		}
		if len(summaryLines) < 6 {
			summaryLines = append(summaryLines, line)
		}
	}
	if len(summaryLines) == 0 {
		summaryLines = []string{title}
	}
	out.Summary = strings.Join(summaryLines, " ")
	return out, nil
}

// DetectBlockers scans a transcript for lines that sound like blockers.
func DetectBlockers(transcript string) []string {
	var blockers []string
	for _, line := range strings.Split(strings.ToLower(transcript), "\n") {
		for _, w := range blockerWords {
			if strings.Contains(line, w) {
				blockers = append(blockers, strings.TrimSpace(line))
				break
			}
		}
	}
	return blockers
}
