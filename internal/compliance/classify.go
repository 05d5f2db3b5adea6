package compliance

import "strings"

// DocClass is the detected legal type of an uploaded notice.
type DocClass string

const (
	ClassUnknown       DocClass = "unknown"
	ClassSection21     DocClass = "section_21"
	ClassSection8      DocClass = "section_8"
	ClassNoticeToLeave DocClass = "notice_to_leave"
)

// ParseExpected validates the expected class named by a caller.
func ParseExpected(s string) (DocClass, bool) {
	switch DocClass(strings.ToLower(strings.TrimSpace(s))) {
	case ClassSection21, "s21", "form_6a":
		return ClassSection21, true
	case ClassSection8, "s8", "form_3":
		return ClassSection8, true
	case ClassNoticeToLeave, "ntl":
		return ClassNoticeToLeave, true
	}
	return "", false
}

// CodePrefix is the blocker code prefix for validations of this class.
func (c DocClass) CodePrefix() string {
	switch c {
	case ClassSection21:
		return "S21-"
	case ClassSection8:
		return "S8-"
	case ClassNoticeToLeave:
		return "NTL-"
	}
	return "DOC-"
}

type marker struct {
	text   string
	weight int
}

// Markers follow the prescribed form layouts: the form number carries most
// weight, then the statutory heading, then statute references.
var classMarkers = map[DocClass][]marker{
	ClassSection21: {
		{"form no. 6a", 5},
		{"form 6a", 4},
		{"notice requiring possession", 3},
		{"section 21(1) and (4)", 2},
		{"section 21", 1},
		{"assured shorthold tenancy", 1},
	},
	ClassSection8: {
		{"form no. 3", 5},
		{"form 3 ", 4},
		{"notice of intention to begin proceedings for possession", 3},
		{"housing act 1988 section 8", 2},
		{"section 8", 1},
		{"schedule 2 to the housing act 1988", 1},
	},
	ClassNoticeToLeave: {
		{"notice to leave", 5},
		{"private housing (tenancies) (scotland) act 2016", 3},
		{"first-tier tribunal", 1},
		{"private residential tenancy", 1},
	},
}

var classOrder = []DocClass{ClassSection21, ClassSection8, ClassNoticeToLeave}

// classify scores each class by the markers present in text. A tie for the
// top score is treated as unknown.
func classify(text string) DocClass {
	lower := strings.ToLower(text) + " "
	best, bestScore, tie := ClassUnknown, 0, false
	for _, class := range classOrder {
		score := 0
		for _, m := range classMarkers[class] {
			if strings.Contains(lower, m.text) {
				score += m.weight
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tie = class, score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}
	if tie || bestScore == 0 {
		return ClassUnknown
	}
	return best
}
