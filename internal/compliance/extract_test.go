package compliance

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextFromCompressedPDF(t *testing.T) {
	text, err := extractText("application/pdf", "6a.pdf", pdfWithLines(t, []string{"FORM NO. 6A", "Notice (requiring) possession"}))
	require.NoError(t, err)
	assert.Equal(t, "FORM NO. 6A\nNotice (requiring) possession", text)
}

func TestExtractTextFromBrokenPDFFallsBackToPrintableRuns(t *testing.T) {
	// No xref table, so the parser rejects it.
	pdf := "%PDF-1.3\n1 0 obj << /Length 44 >>\nstream\nBT (Housing Act 1988) Tj T* (section 8) Tj ET\nendstream\nendobj\n"
	text, err := extractText("", "upload.bin", []byte(pdf))
	require.NoError(t, err)
	assert.Contains(t, text, "Housing Act 1988")
	assert.Contains(t, text, "section 8")
}

func TestExtractTextFromTruncatedPDFDoesNotPanic(t *testing.T) {
	full := pdfWithLines(t, form6ALines)
	for _, cut := range []int{10, len(full) / 3, len(full) / 2, len(full) - 20} {
		assert.NotPanics(t, func() {
			_, _ = extractText("application/pdf", "6a.pdf", full[:cut])
		}, "cut at %d", cut)
	}
}

func TestExtractTextFromHTMLSkipsScripts(t *testing.T) {
	page := `<html><head><script>var form = "FORM NO. 3";</script></head>
<body><h1>Notice to Leave</h1><table><tr><td>Signed:</td><td>[Signed]</td></tr></table></body></html>`
	text, err := extractText("text/html; charset=utf-8", "", []byte(page))
	require.NoError(t, err)
	assert.NotContains(t, text, "FORM NO. 3")
	assert.Equal(t, "Notice to Leave\nSigned: [Signed]", text)
}

func TestExtractTextRejectsTooLittleText(t *testing.T) {
	_, err := extractText("text/plain", "", []byte("hello"))
	assert.ErrorIs(t, err, errUnreadable)
}

func TestDetectMIME(t *testing.T) {
	assert.Equal(t, mimePDF, detectMIME("application/octet-stream", "x", []byte("%PDF-1.7")))
	assert.Equal(t, mimeHTML, detectMIME("", "notice.HTM", []byte("<p>hi</p>")))
	assert.Equal(t, mimePlain, detectMIME("", "notes", []byte("plain words here")))
	assert.Equal(t, "image/png", detectMIME("image/png", "scan.pdf", []byte("%PDF-1.7")))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassSection21, classify(strings.Join(form6ALines, "\n")))
	assert.Equal(t, ClassSection8, classify(strings.Join(form3Lines, "\n")))
	assert.Equal(t, ClassNoticeToLeave, classify("NOTICE TO LEAVE under the Private Housing (Tenancies) (Scotland) Act 2016"))
	assert.Equal(t, ClassUnknown, classify("a letter about the boiler"))
	// Equal evidence for two classes is not a classification.
	assert.Equal(t, ClassUnknown, classify("section 21 or section 8"))
}

func TestParseExpected(t *testing.T) {
	c, ok := ParseExpected(" S21 ")
	assert.True(t, ok)
	assert.Equal(t, ClassSection21, c)
	c, ok = ParseExpected("form_3")
	assert.True(t, ok)
	assert.Equal(t, ClassSection8, c)
	_, ok = ParseExpected("unknown")
	assert.False(t, ok)
	assert.Equal(t, "S8-", ClassSection8.CodePrefix())
}

func TestTextScanning(t *testing.T) {
	lines := []string{
		"Date: 02/01/2026",
		"5. The court proceedings will not begin earlier than:",
		"",
		"3 February 2026",
		"This notice was served on: 1 JANUARY 2026",
	}
	served, ok := labelledDate(lines, "this notice was served on", "date:")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), served)

	earliest, ok := labelledDate(lines, "will not begin earlier than")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC), earliest)

	_, ok = labelledDate(lines, "leave the below address after")
	assert.False(t, ok)

	assert.Equal(t, []string{"8", "10", "11", "14A"}, groundsIn("Grounds 8, 10 and 11. Also ground 14a and Ground 8."))
	assert.Empty(t, groundsIn("background checks on ground(s): none"))

	assert.True(t, hasSignature([]string{"Signed: J Smith"}))
	assert.True(t, hasSignature([]string{"Signature", "[Signed]"}))
	assert.False(t, hasSignature([]string{"Signed: ____________"}))
	assert.False(t, hasSignature([]string{"Signed:", "Name: J Smith"}))

	assert.Equal(t, 14, daysBetween(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
}
