package extract

import (
	"bufio"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/zack-zzq/modpack-localizer/internal/lang"
)

// FTB Quests lang files are SNBT compounds of string and string-list
// values:
//
//	{
//		chapter.intro.title: "Welcome"
//		quest.abc.description: [
//			"First line"
//			"Second line"
//		]
//	}
//
// List items are flattened into numbered keys ("<key>.0", "<key>.1")
// for translation and regrouped when the file is rendered back.

var (
	snbtStringRe    = regexp.MustCompile(`^([A-Za-z0-9_.\-]+):\s*"(.*)"$`)
	snbtListOpenRe  = regexp.MustCompile(`^([A-Za-z0-9_.\-]+):\s*\[$`)
	snbtListItemRe  = regexp.MustCompile(`^"(.*)"$`)
	snbtListIndexRe = regexp.MustCompile(`^(.+)\.(\d+)$`)
)

// ParseSNBTLang extracts the string entries of an SNBT lang compound.
func ParseSNBTLang(data []byte) (lang.Entries, error) {
	entries := lang.Entries{}

	var listKey string
	listIndex := 0

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "{" || line == "}" {
			continue
		}

		if listKey != "" {
			if line == "]" {
				listKey = ""
				continue
			}
			if m := snbtListItemRe.FindStringSubmatch(line); m != nil {
				entries[fmt.Sprintf("%s.%d", listKey, listIndex)] = unescapeSNBT(m[1])
				listIndex++
			}
			continue
		}

		if m := snbtStringRe.FindStringSubmatch(line); m != nil {
			entries[m[1]] = unescapeSNBT(m[2])
			continue
		}
		if m := snbtListOpenRe.FindStringSubmatch(line); m != nil {
			listKey = m[1]
			listIndex = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan SNBT lang data: %w", err)
	}

	return entries, nil
}

// RenderSNBTLang writes entries back as an SNBT lang compound, with
// keys sorted and numbered list keys regrouped into lists.
func RenderSNBTLang(entries lang.Entries) []byte {
	type listGroup struct {
		base  string
		items map[int]string
	}

	scalars := lang.Entries{}
	lists := map[string]*listGroup{}

	for key, value := range entries {
		m := snbtListIndexRe.FindStringSubmatch(key)
		if m == nil {
			scalars[key] = value
			continue
		}
		base := m[1]
		idx, _ := strconv.Atoi(m[2])
		if lists[base] == nil {
			lists[base] = &listGroup{base: base, items: map[int]string{}}
		}
		lists[base].items[idx] = value
	}

	keys := make([]string, 0, len(scalars)+len(lists))
	for k := range scalars {
		keys = append(keys, k)
	}
	for k := range lists {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{\n")
	for _, key := range keys {
		if value, ok := scalars[key]; ok {
			fmt.Fprintf(&sb, "\t%s: \"%s\"\n", key, escapeSNBT(value))
			continue
		}
		group := lists[key]
		maxIdx := -1
		for idx := range group.items {
			if idx > maxIdx {
				maxIdx = idx
			}
		}
		fmt.Fprintf(&sb, "\t%s: [\n", key)
		for idx := 0; idx <= maxIdx; idx++ {
			fmt.Fprintf(&sb, "\t\t\"%s\"\n", escapeSNBT(group.items[idx]))
		}
		sb.WriteString("\t]\n")
	}
	sb.WriteString("}\n")
	return []byte(sb.String())
}

// escapeSNBT and unescapeSNBT must stay symmetric: any escape the
// parser decodes, the renderer re-encodes. Unknown escapes are kept
// verbatim so unrecognized SNBT survives a round trip unchanged.
var snbtEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)

func unescapeSNBT(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case '"', '\\':
			sb.WriteByte(s[i])
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func escapeSNBT(s string) string {
	return snbtEscaper.Replace(s)
}
