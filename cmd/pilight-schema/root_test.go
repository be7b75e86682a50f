package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/pilight-gateway/internal/auth"
	"github.com/nerrad567/pilight-gateway/internal/protocol"
)

const testCatalogYAML = `
protocols:
  - name: daycom
    devices: [daycom]
    options:
      - name: id
        vartype: number
      - name: label
        vartype: [string, number]
  - name: arctech_switch
    devices: [kaku_switch, dio_switch]
    options:
      - name: unit
        vartype: number
      - name: state
        vartype: string
`

// execute runs the CLI with args and returns stdout, stderr and the error.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd("test")
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeCatalog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestProtocols_Table(t *testing.T) {
	catalog := writeCatalog(t, "catalog.yaml", testCatalogYAML)

	out, _, err := execute(t, "", "protocols", "--catalog", catalog)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "PROTOCOL"))
	assert.Contains(t, lines[1], "arctech_switch")
	assert.Contains(t, lines[1], "kaku_switch,dio_switch")
	assert.Contains(t, lines[2], "daycom")
	assert.Contains(t, lines[2], "id,label")
}

func TestProtocols_Names(t *testing.T) {
	catalog := writeCatalog(t, "catalog.yaml", testCatalogYAML)

	out, _, err := execute(t, "", "protocols", "--names", "-c", catalog)
	require.NoError(t, err)
	assert.Equal(t, "arctech_switch\ndaycom\n", out)
}

func TestProtocols_EmbeddedCatalog(t *testing.T) {
	out, _, err := execute(t, "", "protocols", "--names")
	require.NoError(t, err)

	reg, err := protocol.NewRegistry(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(reg.Names(), "\n")+"\n", out)
}

func TestProtocols_BadCatalog(t *testing.T) {
	catalog := writeCatalog(t, "catalog.json", `{"protocols": [`)

	_, _, err := execute(t, "", "protocols", "--catalog", catalog)
	require.Error(t, err)
	assert.True(t, errors.Is(err, protocol.ErrLoad))
}

func TestProtocols_Strict(t *testing.T) {
	catalog := writeCatalog(t, "catalog.json",
		`{"protocols":[{"name":"x","devices":[],"options":[{"name":"v","vartype":"float"}]}]}`)

	_, _, err := execute(t, "", "protocols", "--catalog", catalog)
	require.NoError(t, err, "unknown tags are accepted by default")

	_, _, err = execute(t, "", "protocols", "--catalog", catalog, "--strict")
	require.ErrorIs(t, err, protocol.ErrLoad)
}

func TestShow_JSON(t *testing.T) {
	catalog := writeCatalog(t, "catalog.yaml", testCatalogYAML)

	out, _, err := execute(t, "", "show", "daycom", "--catalog", catalog)
	require.NoError(t, err)

	var def protocol.ProtocolDefinition
	require.NoError(t, json.Unmarshal([]byte(out), &def))
	assert.Equal(t, "daycom", def.Name)
	require.Len(t, def.Options, 2)
	assert.True(t, def.Options[1].Type.IsList())
}

func TestShow_YAML(t *testing.T) {
	catalog := writeCatalog(t, "catalog.yaml", testCatalogYAML)

	out, _, err := execute(t, "", "show", "arctech_switch", "-o", "yaml", "--catalog", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "name: arctech_switch")
	assert.Contains(t, out, "vartype: number")
}

func TestShow_Errors(t *testing.T) {
	catalog := writeCatalog(t, "catalog.yaml", testCatalogYAML)

	_, _, err := execute(t, "", "show", "nexa", "--catalog", catalog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown protocol "nexa"`)

	_, _, err = execute(t, "", "show", "daycom", "-o", "xml", "--catalog", catalog)
	require.Error(t, err)

	_, _, err = execute(t, "", "show")
	require.Error(t, err)
}

func TestValidate_Stdin(t *testing.T) {
	catalog := writeCatalog(t, "catalog.yaml", testCatalogYAML)
	input := `{"protocol":"daycom","id":1}
{"protocol":["arctech_switch"],"unit":3,"state":"on"}`

	out, errOut, err := execute(t, input, "validate", "--catalog", catalog)
	require.NoError(t, err)
	assert.Empty(t, errOut)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"protocol":["daycom"],"id":1}`, lines[0])
	assert.JSONEq(t, `{"protocol":["arctech_switch"],"unit":3,"state":"on"}`, lines[1])
}

func TestValidate_Scalar(t *testing.T) {
	catalog := writeCatalog(t, "catalog.yaml", testCatalogYAML)

	out, _, err := execute(t, `{"protocol":["daycom"],"label":7}`, "validate", "--scalar", "--catalog", catalog)
	require.NoError(t, err)
	assert.JSONEq(t, `{"protocol":"daycom","label":7}`, strings.TrimSpace(out))
}

func TestValidate_Rejections(t *testing.T) {
	catalog := writeCatalog(t, "catalog.yaml", testCatalogYAML)
	input := `{"protocol":"daycom","id":"one","colour":"red"}
{"id":1}
{"protocol":"nexa"}
[1,2]
{"protocol":"daycom"}`

	out, errOut, err := execute(t, input, "validate", "--catalog", catalog)
	require.ErrorIs(t, err, errRejected)
	assert.Contains(t, err.Error(), "4 of 5")

	assert.JSONEq(t, `{"protocol":["daycom"]}`, strings.TrimSpace(out))
	assert.Contains(t, errOut, "payload 1: daycom: 2 violation(s)")
	assert.Contains(t, errOut, "  - colour: ")
	assert.Contains(t, errOut, "  - id: ")
	assert.Contains(t, errOut, "payload 2: ")
	assert.Contains(t, errOut, "payload 3: ")
	assert.Contains(t, errOut, "payload 4: ")
}

func TestValidate_File(t *testing.T) {
	catalog := writeCatalog(t, "catalog.yaml", testCatalogYAML)
	payloads := writeCatalog(t, "payloads.json", `{"protocol":"daycom","id":2}`)

	out, _, err := execute(t, "", "validate", payloads, "--catalog", catalog)
	require.NoError(t, err)
	assert.JSONEq(t, `{"protocol":["daycom"],"id":2}`, strings.TrimSpace(out))

	_, _, err = execute(t, "", "validate", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestValidate_TruncatedStream(t *testing.T) {
	catalog := writeCatalog(t, "catalog.yaml", testCatalogYAML)

	out, _, err := execute(t, `{"protocol":"daycom"} {"protocol":`, "validate", "--catalog", catalog)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errRejected)
	assert.Contains(t, err.Error(), "reading payload 2")
	assert.JSONEq(t, `{"protocol":["daycom"]}`, strings.TrimSpace(out))
}

func TestToken(t *testing.T) {
	secret := "cli-test-secret-key-at-least-32-characters"
	t.Setenv(secretEnv, secret)

	out, _, err := execute(t, "", "token", "--subject", "ops", "--issuer", "pilightgw", "--ttl", "5m")
	require.NoError(t, err)

	claims, err := auth.ParseToken(strings.TrimSpace(out), secret, "pilightgw")
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.True(t, claims.HasScope(auth.ScopeCatalogWrite))
}

func TestToken_NoSecret(t *testing.T) {
	t.Setenv(secretEnv, "")

	_, _, err := execute(t, "", "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), secretEnv)
}
