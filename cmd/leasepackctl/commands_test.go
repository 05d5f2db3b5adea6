package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasepack/internal/compliance"
)

func runValidate(t *testing.T, args ...string) (compliance.Summary, string, error) {
	t.Helper()
	cmd := validateCmd()
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	var out, stderr bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()

	var summary compliance.Summary
	if out.Len() > 0 && out.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	}
	return summary, out.String(), err
}

func TestValidateFlagsWrongNotice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notice.txt")
	form6A := "FORM NO. 6A\nHousing Act 1988 section 21(1) and (4)\nNOTICE REQUIRING POSSESSION\nSigned: [Signed]"
	require.NoError(t, os.WriteFile(path, []byte(form6A), 0o600))

	summary, _, err := runValidate(t, path, "--expect", "section_8", "--jurisdiction", "england")

	assert.ErrorIs(t, err, errInvalidDocument)
	assert.True(t, summary.TerminalBlocker)
	require.Len(t, summary.Blockers, 1)
	assert.Equal(t, "S8-WRONG-DOC-TYPE", summary.Blockers[0].Code)
}

func TestValidateRejectsUnknownExpectation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notice.txt")
	require.NoError(t, os.WriteFile(path, []byte("anything"), 0o600))

	_, _, err := runValidate(t, path, "--expect", "form_99")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--expect must be one of")
}
