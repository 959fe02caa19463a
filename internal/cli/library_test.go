package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveCommand(t *testing.T) {
	opts := testOptions(t, "text")

	out, err := execute(t, NewSaveCommand(opts), "top_accounts", ".account | .name | limit(10)")
	require.NoError(t, err)
	assert.Equal(t, "✓ Saved top_accounts (revision 1)\n", out)

	out, err = execute(t, NewSaveCommand(opts), "top_accounts", ".account | .name | limit(20)")
	require.NoError(t, err)
	assert.Equal(t, "✓ Saved top_accounts (revision 2)\n", out)
}

func TestSaveCommand_RejectsInvalidQuery(t *testing.T) {
	opts := testOptions(t, "text")

	out, err := execute(t, NewSaveCommand(opts), "broken", ".account | x.name")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E202]")

	out, err = execute(t, NewListCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "No saved queries.")
}

func TestListCommand(t *testing.T) {
	opts := testOptions(t, "text")

	_, err := execute(t, NewSaveCommand(opts), "open_cases", ".incident | .title | .statecode == 0")
	require.NoError(t, err)
	_, err = execute(t, NewSaveCommand(opts), "contacts", ".contact | .fullname")
	require.NoError(t, err)

	out, err := execute(t, NewListCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "FINGERPRINT")
	assert.Contains(t, out, "open_cases")
	assert.Contains(t, out, ".contact | .fullname")
}

func TestListCommand_JSON(t *testing.T) {
	opts := testOptions(t, "json")

	_, err := execute(t, NewSaveCommand(opts), "contacts", ".contact | .fullname")
	require.NoError(t, err)

	out, err := execute(t, NewListCommand(opts))
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []QueryInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "contacts", resp.Data[0].Name)
	assert.Equal(t, ".contact | .fullname", resp.Data[0].FQL)
	assert.Equal(t, int64(1), resp.Data[0].Revision)
	assert.Len(t, resp.Data[0].Fingerprint, 64)
}

func TestShowCommand(t *testing.T) {
	opts := testOptions(t, "text")

	_, err := execute(t, NewSaveCommand(opts), "contacts", ".contact | .fullname")
	require.NoError(t, err)

	out, err := execute(t, NewShowCommand(opts), "contacts")
	require.NoError(t, err)
	assert.Equal(t, "# contacts (revision 1)\n.contact | .fullname\n", out)

	out, err = execute(t, NewShowCommand(opts), "--compile", "contacts")
	require.NoError(t, err)
	assert.Contains(t, out, `<entity name="contact"><attribute name="fullname"/></entity>`)
}

func TestShowCommand_CompileIndentJSON(t *testing.T) {
	opts := testOptions(t, "json")

	_, err := execute(t, NewSaveCommand(opts), "contacts", ".contact | .fullname")
	require.NoError(t, err)

	out, err := execute(t, NewShowCommand(opts), "--compile", "--indent", "contacts")
	require.NoError(t, err)

	var resp struct {
		Data QueryInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Contains(t, resp.Data.FetchXML, "\n  <entity name=\"contact\">\n")
}

func TestShowCommand_NotFound(t *testing.T) {
	opts := testOptions(t, "text")

	out, err := execute(t, NewShowCommand(opts), "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `Error [E005]: no saved query named "missing"`)
}

func TestDeleteCommand(t *testing.T) {
	opts := testOptions(t, "text")

	_, err := execute(t, NewSaveCommand(opts), "contacts", ".contact | .fullname")
	require.NoError(t, err)

	out, err := execute(t, NewDeleteCommand(opts), "contacts")
	require.NoError(t, err)
	assert.Equal(t, "✓ Deleted contacts\n", out)

	out, err = execute(t, NewDeleteCommand(opts), "contacts")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, ".account | .name", oneLine(".account\n  | .name\n", 60))
	assert.Equal(t, ".acc…", oneLine(".account | .name", 5))
	assert.Equal(t, "abc", shortFingerprint("abc"))
	assert.Equal(t, "0123456789ab", shortFingerprint("0123456789abcdef"))
}
