package compliance

import (
	"context"
	"strings"
	"testing"
)

// FuzzValidateDocument checks arbitrary uploads never panic and always come
// back as a finalized summary.
func FuzzValidateDocument(f *testing.F) {
	seedPDF := pdfWithLines(f, form6ALines)
	f.Add([]byte(strings.Join(form6ALines, "\n")), "text/plain", "section_21")
	f.Add([]byte(strings.Join(form3Lines, "\n")), "", "section_8")
	f.Add(seedPDF, "application/pdf", "section_8")
	f.Add(seedPDF[:len(seedPDF)/2], "application/pdf", "section_21")
	f.Add(htmlWithLines(form3Lines), "text/html", "notice_to_leave")
	f.Add([]byte("ȺȺȺȺ date: 1 JANUARY 2026\nFORM NO. 6A"), "text/plain", "section_21")
	f.Add([]byte("%PDF-1.4\n%%EOF\n"), "application/octet-stream", "s21")
	f.Add([]byte{0xff, 0xfe, 0x00}, "text/plain", "form_3")

	engine, err := NewEngine()
	if err != nil {
		f.Fatal(err)
	}
	classes := []DocClass{ClassSection21, ClassSection8, ClassNoticeToLeave}

	f.Fuzz(func(t *testing.T, data []byte, mimeType, expected string) {
		class, ok := ParseExpected(expected)
		if !ok {
			class = classes[len(expected)%len(classes)]
		}
		summary := engine.ValidateDocument(context.Background(), DocumentInput{
			Expected: class,
			FileName: "upload",
			MimeType: mimeType,
			Data:     data,
		}, section21Facts())

		if summary.TerminalCode() != "" {
			if !summary.TerminalBlocker || summary.Status != StatusInvalid {
				t.Errorf("terminal code %s without terminal summary: %+v", summary.TerminalCode(), summary)
			}
			if len(summary.NextQuestions) != 0 || len(summary.Recommendations) != 0 {
				t.Errorf("terminal summary kept questions or recommendations: %+v", summary)
			}
		} else if summary.TerminalBlocker {
			t.Errorf("terminal flag set without a terminal code: %+v", summary)
		}
		if summary.Blockers == nil || summary.NextQuestions == nil || summary.Recommendations == nil {
			t.Error("summary was not finalized")
		}
	})
}
