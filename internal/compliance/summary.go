package compliance

import "strings"

// Status is the outcome of one evaluation.
type Status string

const (
	StatusComplete  Status = "complete"
	StatusNeedsInfo Status = "needs_info"
	StatusInvalid   Status = "invalid"
)

// Finding is a blocker or warning. Blockers are data, not errors.
type Finding struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Question is a follow-up question the flow should ask next.
type Question struct {
	ID     string `json:"id"`
	Field  string `json:"field"`
	Prompt string `json:"prompt"`
}

// Terminal code suffixes. A blocker with one of these suffixes means the input
// is the wrong kind of artifact and no further questions can fix it.
const (
	suffixWrongDocType = "WRONG-DOC-TYPE"
	suffixUnreadable   = "UNREADABLE"
)

// IsTerminalCode reports whether a blocker code belongs to the terminal family.
func IsTerminalCode(code string) bool {
	return strings.HasSuffix(code, suffixWrongDocType) || strings.HasSuffix(code, suffixUnreadable)
}

// Summary is the result of validating a document or an answer set.
type Summary struct {
	Status          Status     `json:"status"`
	Blockers        []Finding  `json:"blockers"`
	Warnings        []Finding  `json:"warnings"`
	TerminalBlocker bool       `json:"terminal_blocker"`
	NextQuestions   []Question `json:"next_questions"`
	Recommendations []string   `json:"recommendations"`
	DetectedClass   DocClass   `json:"detected_class,omitempty"`
}

func (s *Summary) block(code, message string) {
	s.Blockers = append(s.Blockers, Finding{Code: code, Message: message})
}

func (s *Summary) warn(code, message string) {
	s.Warnings = append(s.Warnings, Finding{Code: code, Message: message})
}

func (s *Summary) ask(q Question) {
	for _, existing := range s.NextQuestions {
		if existing.Field == q.Field {
			return
		}
	}
	s.NextQuestions = append(s.NextQuestions, q)
}

func (s *Summary) recommend(text string) {
	s.Recommendations = append(s.Recommendations, text)
}

// Finalize derives Status and TerminalBlocker from the collected findings.
// A terminal blocker wins over everything else and clears questions and
// recommendations.
func (s *Summary) Finalize() {
	s.TerminalBlocker = s.TerminalCode() != ""

	switch {
	case s.TerminalBlocker:
		s.Status = StatusInvalid
		s.NextQuestions = []Question{}
		s.Recommendations = []string{}
	case len(s.Blockers) > 0:
		s.Status = StatusInvalid
	case len(s.NextQuestions) > 0:
		s.Status = StatusNeedsInfo
	default:
		s.Status = StatusComplete
	}

	if s.Blockers == nil {
		s.Blockers = []Finding{}
	}
	if s.Warnings == nil {
		s.Warnings = []Finding{}
	}
	if s.NextQuestions == nil {
		s.NextQuestions = []Question{}
	}
	if s.Recommendations == nil {
		s.Recommendations = []string{}
	}
}

// TerminalCode returns the first terminal blocker code, or "" when there is none.
func (s Summary) TerminalCode() string {
	for _, b := range s.Blockers {
		if IsTerminalCode(b.Code) {
			return b.Code
		}
	}
	return ""
}

// HasBlocker reports whether a blocker with code is present.
func (s Summary) HasBlocker(code string) bool {
	for _, b := range s.Blockers {
		if b.Code == code {
			return true
		}
	}
	return false
}
