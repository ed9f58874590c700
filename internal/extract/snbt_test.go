package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zack-zzq/modpack-localizer/internal/lang"
)

func TestParseSNBTLangStrings(t *testing.T) {
	data := []byte(`{
	chapter.intro.title: "Welcome"
	quest.abc.title: "Say \"hi\""
}
`)

	entries, err := ParseSNBTLang(data)
	require.NoError(t, err)

	assert.Equal(t, lang.Entries{
		"chapter.intro.title": "Welcome",
		"quest.abc.title":     `Say "hi"`,
	}, entries)
}

func TestParseSNBTLangLists(t *testing.T) {
	data := []byte(`{
	quest.abc.description: [
		"First line"
		"Second line"
	]
	chapter.intro.title: "Welcome"
}
`)

	entries, err := ParseSNBTLang(data)
	require.NoError(t, err)

	assert.Equal(t, lang.Entries{
		"quest.abc.description.0": "First line",
		"quest.abc.description.1": "Second line",
		"chapter.intro.title":     "Welcome",
	}, entries)
}

func TestRenderSNBTLangRegroupsLists(t *testing.T) {
	entries := lang.Entries{
		"quest.abc.description.0": "第一行",
		"quest.abc.description.1": "第二行",
		"chapter.intro.title":     "欢迎",
	}

	out := string(RenderSNBTLang(entries))

	assert.Equal(t, "{\n\tchapter.intro.title: \"欢迎\"\n\tquest.abc.description: [\n\t\t\"第一行\"\n\t\t\"第二行\"\n\t]\n}\n", out)
}

func TestParseSNBTLangDecodesEscapes(t *testing.T) {
	data := []byte(`{
	quest.abc.desc: "line one\nline two"
	quest.abc.hint: "col a\tcol b"
}
`)

	entries, err := ParseSNBTLang(data)
	require.NoError(t, err)

	assert.Equal(t, lang.Entries{
		"quest.abc.desc": "line one\nline two",
		"quest.abc.hint": "col a\tcol b",
	}, entries)
}

func TestRenderSNBTLangEncodesEscapes(t *testing.T) {
	out := string(RenderSNBTLang(lang.Entries{
		"quest.abc.desc": "line one\nline two",
	}))

	assert.Contains(t, out, `"line one\nline two"`)
}

func TestSNBTRoundTrip(t *testing.T) {
	entries := lang.Entries{
		"a.title":  `He said "go"`,
		"b.desc.0": "line one",
		"b.desc.1": "line two",
		"c.note":   `back\slash`,
		"d.body":   "first line\nsecond line\tindented",
	}

	parsed, err := ParseSNBTLang(RenderSNBTLang(entries))
	require.NoError(t, err)
	assert.Equal(t, entries, parsed)
}

func TestRenderSNBTLangIsDeterministic(t *testing.T) {
	entries := lang.Entries{"b": "2", "a": "1", "c": "3"}

	assert.Equal(t, RenderSNBTLang(entries), RenderSNBTLang(entries))
}
