package compliance

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// errUnreadable marks input that yields no usable text. It is reported as a
// terminal blocker, never returned to callers.
var errUnreadable = errors.New("document text could not be extracted")

const (
	mimePlain = "text/plain"
	mimeHTML  = "text/html"
	mimePDF   = "application/pdf"

	// maxPDFPages bounds the pages read from one upload.
	maxPDFPages = 50
	minTextRun  = 4
)

// detectMIME trusts a specific declared type, otherwise sniffs the bytes and
// falls back to the file extension.
func detectMIME(declared, fileName string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return mimePDF
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return mimePDF
	case ".html", ".htm":
		return mimeHTML
	case ".txt":
		return mimePlain
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

// extractText returns normalised lines of text.
func extractText(mimeType, fileName string, data []byte) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", errUnreadable
	}
	var (
		text string
		err  error
	)
	switch detectMIME(mimeType, fileName, data) {
	case mimePDF:
		text, err = pdfText(data)
	case mimeHTML:
		text, err = htmlText(data)
	case mimePlain:
		if !utf8.Valid(data) {
			return "", errUnreadable
		}
		text = string(data)
	default:
		return "", errUnreadable
	}
	if err != nil {
		return "", err
	}
	text = normaliseLines(text)
	if len(strings.Fields(text)) < 3 {
		return "", errUnreadable
	}
	return text, nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true, "hr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "section": true,
}

func htmlText(data []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(data))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return b.String(), nil
			}
			return "", errUnreadable
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" || tag == "head" {
				skip++
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			} else if tag == "td" || tag == "th" {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style" || tag == "head") && skip > 0 {
				skip--
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// pdfText reads the text layer row by row, top of page first. Files the
// parser rejects, or whose text layer is empty, fall back to printable runs.
func pdfText(data []byte) (string, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return "", errUnreadable
	}
	text, err := pdfRows(data)
	if err != nil || strings.TrimSpace(text) == "" {
		text = printableRuns(data)
	}
	return text, nil
}

// pdfRows extracts each page's rows. The parser panics on some malformed
// files; that is reported as an error.
func pdfRows(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	pages := r.NumPage()
	if pages > maxPDFPages {
		pages = maxPDFPages
	}
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", err
		}
		sort.SliceStable(rows, func(a, c int) bool { return rows[a].Position > rows[c].Position })
		for _, row := range rows {
			for j, word := range row.Content {
				if j > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(word.S)
			}
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// printableRuns is the last resort: runs of printable ASCII outside PDF syntax.
func printableRuns(data []byte) string {
	var b strings.Builder
	run := make([]byte, 0, 64)
	flush := func() {
		if len(run) >= minTextRun && hasLetters(run) {
			b.Write(run)
			b.WriteByte('\n')
		}
		run = run[:0]
	}
	for _, c := range data {
		if c >= 0x20 && c < 0x7f {
			run = append(run, c)
			continue
		}
		flush()
	}
	flush()
	return b.String()
}

func hasLetters(run []byte) bool {
	letters := 0
	for _, c := range run {
		if unicode.IsLetter(rune(c)) {
			letters++
		}
	}
	return letters*2 >= len(run)
}

// normaliseLines collapses whitespace inside lines and drops blank lines.
func normaliseLines(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if f := strings.Fields(line); len(f) > 0 {
			lines = append(lines, strings.Join(f, " "))
		}
	}
	return strings.Join(lines, "\n")
}
