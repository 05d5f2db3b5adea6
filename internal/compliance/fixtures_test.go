package compliance

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"leasepack/internal/facts"
	"leasepack/internal/facts/casefacts"
	"leasepack/pkg/domain"
)

var form6ALines = []string{
	"FORM NO. 6A",
	"Housing Act 1988 section 21(1) and (4) (as amended)",
	"NOTICE REQUIRING POSSESSION",
	"To: Alice Jones and Bob Jones",
	"1. You are required to leave the property let on an Assured Shorthold Tenancy at:",
	"2 Low Rd, Leeds, LS2 2BB",
	"2. You are required to leave the below address after:",
	"14/07/2026",
	"3. This notice is valid for six months only from the date of issue unless you have a periodic tenancy.",
	"Signed: [Signed]",
	"Name: Jane Smith",
	"Date: 22/12/2025",
	"This notice was served on: 22/12/2025",
}

var form3Lines = []string{
	"FORM NO. 3",
	"Housing Act 1988 section 8 (as amended)",
	"NOTICE OF INTENTION TO BEGIN PROCEEDINGS FOR POSSESSION",
	"1. To: Alice Jones and Bob Jones",
	"2. Your landlord intends to apply to the court for an order requiring you to give up possession of:",
	"2 Low Rd, Leeds, LS2 2BB",
	"3. Your landlord intends to seek possession on ground(s):",
	"Grounds 8, 10 and 11 of Schedule 2 to the Housing Act 1988",
	"4. Give a full explanation of why each ground is being relied on:",
	"Rent arrears of 3,000 are outstanding against a monthly rent of 1,500.",
	"5. The court proceedings will not begin earlier than:",
	"15/01/2026",
	"Signed: [Signed]",
	"Date: 01/01/2026",
	"This notice was served on: 01/01/2026",
}

// pdfWithLines builds a single-page PDF with a Flate compressed content
// stream that places each line with its own text matrix.
func pdfWithLines(t testing.TB, lines []string) []byte {
	t.Helper()
	var content bytes.Buffer
	content.WriteString("BT /F1 11 Tf\n")
	for i, l := range lines {
		escaped := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(l)
		fmt.Fprintf(&content, "1 0 0 1 72 %d Tm (%s) Tj\n", 760-14*i, escaped)
	}
	content.WriteString("ET\n")

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, err := zw.Write(content.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d /Filter /FlateDecode >>\nstream\n%s\nendstream", compressed.Len(), compressed.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var pdf bytes.Buffer
	pdf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = pdf.Len()
		fmt.Fprintf(&pdf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := pdf.Len()
	fmt.Fprintf(&pdf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&pdf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&pdf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return pdf.Bytes()
}

func htmlWithLines(lines []string) []byte {
	var b strings.Builder
	b.WriteString("<html><head><title>notice</title><style>p{margin:0}</style></head><body>")
	for _, l := range lines {
		fmt.Fprintf(&b, "<p>%s</p>", l)
	}
	b.WriteString("</body></html>")
	return []byte(b.String())
}

func without(lines []string, prefix string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if !strings.HasPrefix(l, prefix) {
			out = append(out, l)
		}
	}
	return out
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// section21Facts is an England assured shorthold case with every landlord
// obligation met.
func section21Facts() casefacts.CaseFacts {
	return casefacts.CaseFacts{
		Jurisdiction: domain.JurisdictionEngland,
		Parties: casefacts.Parties{
			Landlord: casefacts.Party{FullName: "Jane Smith"},
			Tenants:  []casefacts.Party{{FullName: "Alice Jones"}},
		},
		Property: casefacts.Address{Line1: "2 Low Rd", Postcode: "LS2 2BB"},
		Tenancy: casefacts.Tenancy{
			StartDate:     day(2025, time.January, 1),
			RentAmount:    1500,
			RentFrequency: "monthly",
		},
		Deposit: casefacts.Deposit{Amount: 1500, Protected: casefacts.Yes},
		Notice: casefacts.Notice{
			Route:       casefacts.RouteSection21,
			ServiceDate: day(2025, time.December, 22),
			ExpiryDate:  day(2026, time.March, 1),
		},
		Compliance: casefacts.Compliance{
			GasSafetyProvided: casefacts.Yes,
			EPCProvided:       casefacts.Yes,
			HowToRentProvided: casefacts.Yes,
		},
		Evidence: map[facts.EvidenceKind]bool{
			facts.EvidenceGasSafety:         true,
			facts.EvidenceDepositProtection: true,
		},
	}
}

func section8Facts() casefacts.CaseFacts {
	cf := section21Facts()
	cf.Notice = casefacts.Notice{
		Route:       casefacts.RouteSection8,
		Grounds:     []string{"8", "10", "11"},
		ServiceDate: day(2026, time.January, 1),
	}
	cf.Financials.ArrearsTotal = 3000
	return cf
}
