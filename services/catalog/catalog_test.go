package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComponents(t *testing.T) {
	c := New()

	require.Equal(t, []string{"OFFICE21PP", "WIN11PRO"}, c.Components("OFFICE21PP-WIN11PRO"))
	require.Equal(t, []string{"WIN11PRO", "WIN11PRO"}, c.Components("WIN11PRO-WIN11PRO"))

	// Plain products expand to themselves.
	require.Equal(t, []string{"WIN11PRO"}, c.Components("WIN11PRO"))
	require.False(t, c.IsCombo("WIN11PRO"))
	require.True(t, c.IsCombo("OFFICE21PP-WIN11PRO"))
}

func TestComponentsReturnsCopy(t *testing.T) {
	c := New()

	first := c.Components("OFFICE21PP-WIN11PRO")
	first[0] = "mutated"

	require.Equal(t, []string{"OFFICE21PP", "WIN11PRO"}, c.Components("OFFICE21PP-WIN11PRO"))
}

func TestDisplayName(t *testing.T) {
	c := New()

	require.Equal(t, "Office 2021 Pro Plus + Windows 11 Pro", c.DisplayName("OFFICE21PP-WIN11PRO"))
	require.Equal(t, "WIN11PRO", c.DisplayName("WIN11PRO"))
}

func TestChannelBehavior(t *testing.T) {
	c := New()

	website := c.ChannelBehavior(ChannelWebsitePayment)
	require.True(t, website.AutoVerifyWarranty)
	require.False(t, website.RequiresProofs)

	fba := c.ChannelBehavior(ChannelAmazonFBA)
	require.False(t, fba.AutoVerifyWarranty)
	require.True(t, fba.RequiresProofs)

	// Unknown channels get the strict marketplace treatment.
	unknown := c.ChannelBehavior("ebay")
	require.False(t, unknown.AutoVerifyWarranty)
	require.True(t, unknown.RequiresProofs)
}

func TestIsPreactivated(t *testing.T) {
	c := New()

	require.True(t, c.IsPreactivated("OFFICE365-PREACT"))
	require.False(t, c.IsPreactivated("WIN11PRO"))
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
combos:
  VISIO21-PROJECT21:
    display_name: Visio 2021 + Project 2021
    components: [VISIO21, PROJECT21]
preactivated:
  - ADOBE-PREACT
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, []string{"VISIO21", "PROJECT21"}, c.Components("VISIO21-PROJECT21"))
	require.Equal(t, "Visio 2021 + Project 2021", c.DisplayName("VISIO21-PROJECT21"))
	require.True(t, c.IsPreactivated("ADOBE-PREACT"))

	// Defaults survive the merge.
	require.True(t, c.IsCombo("OFFICE21PP-WIN11PRO"))
	require.True(t, c.IsPreactivated("OFFICE365-PREACT"))
}

func TestLoadEmptyPath(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	require.True(t, c.IsCombo("OFFICE21PP-WIN11PRO"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
