package runconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParse(t *testing.T) {
	lines := []string{
		"# node settings",
		"blockchain_address=127.0.0.1:20200",
		"",
		"just some text",
		"org_id=test",
		"org_id=override",
		"amop_id=",
		"mysql_password=a=b",
		"#chain_id=101",
	}

	values := Parse(lines)

	assert.Equal(t, Values{
		"blockchain_address": "127.0.0.1:20200",
		"org_id":             "override",
		"amop_id":            "",
		"mysql_password":     "",
	}, values)
}

func TestParseEmpty(t *testing.T) {
	values := Parse(nil)
	require.NotNil(t, values)
	assert.Empty(t, values)
}

func TestKeyOf(t *testing.T) {
	key, ok := KeyOf("group_id=1")
	assert.True(t, ok)
	assert.Equal(t, "group_id", key)

	_, ok = KeyOf("# group_id=1")
	assert.False(t, ok)

	_, ok = KeyOf("group_id")
	assert.False(t, ok)
}

func TestRewriteMatchesExactKeys(t *testing.T) {
	lines := []string{
		"# comment with group_id=9",
		"group_id=1",
		"group_id_backup=1",
		"chain_id=101",
		"orphan line",
	}

	got := Rewrite(lines, map[string]string{KeyGroupID: "2"})

	assert.Equal(t, []string{
		"# comment with group_id=9",
		"group_id=2",
		"group_id_backup=1",
		"chain_id=101",
		"orphan line",
	}, got)
	assert.Equal(t, "group_id=1", lines[1], "input must not be modified")
}

func TestRewriteReplacesMalformedValue(t *testing.T) {
	got := Rewrite([]string{"mysql_password=a=b"}, map[string]string{KeyMySQLPassword: "secret"})
	assert.Equal(t, []string{"mysql_password=secret"}, got)
}

func lineGenerator() *rapid.Generator[string] {
	key := rapid.StringMatching(`[a-z_]{1,12}`)
	return rapid.OneOf(
		rapid.Map(rapid.StringMatching(`[ a-z=]{0,16}`), func(s string) string { return "#" + s }),
		rapid.StringMatching(`[ a-z0-9.]{0,16}`),
		rapid.Custom(func(t *rapid.T) string {
			return key.Draw(t, "key") + "=" + rapid.StringMatching(`[a-z0-9.:,]{0,16}`).Draw(t, "value")
		}),
	)
}

func TestRewriteProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := rapid.SliceOf(lineGenerator()).Draw(t, "lines")
		updates := rapid.MapOf(
			rapid.StringMatching(`[a-z_]{1,12}`),
			rapid.StringMatching(`[a-z0-9.:,]{0,16}`),
		).Draw(t, "updates")

		got := Rewrite(lines, updates)

		if len(got) != len(lines) {
			t.Fatalf("line count changed: %d -> %d", len(lines), len(got))
		}
		for i, line := range lines {
			key, ok := KeyOf(line)
			value, targeted := updates[key]
			if !ok || !targeted {
				if got[i] != line {
					t.Fatalf("untouched line %d changed: %q -> %q", i, line, got[i])
				}
				continue
			}
			if got[i] != key+"="+value {
				t.Fatalf("line %d: expected %q, got %q", i, key+"="+value, got[i])
			}
		}
	})
}

func TestParseProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pairs := rapid.MapOf(
			rapid.StringMatching(`[a-z_]{1,12}`),
			rapid.StringMatching(`[a-z0-9.:,]{1,16}`),
		).Draw(t, "pairs")
		comments := rapid.SliceOf(rapid.StringMatching(`#[a-z=]{0,8}`)).Draw(t, "comments")

		lines := append([]string{}, comments...)
		for k, v := range pairs {
			lines = append(lines, k+"="+v)
		}

		values := Parse(lines)
		if len(values) != len(pairs) {
			t.Fatalf("expected %d keys, got %d", len(pairs), len(values))
		}
		for k, v := range pairs {
			if values[k] != v {
				t.Fatalf("key %q: expected %q, got %q", k, v, values[k])
			}
		}
		for k := range values {
			if strings.HasPrefix(k, "#") {
				t.Fatalf("comment leaked into values: %q", k)
			}
		}
	})
}
