package translator

import (
	"fmt"
	"strings"
)

const dictContextLimit = 100

// systemPrompt builds the translation instructions for one batch,
// including relevant dictionary entries as reference terminology.
func (t *UnitTranslator) systemPrompt(batch map[string]string) string {
	texts := make([]string, 0, len(batch))
	for _, v := range batch {
		texts = append(texts, v)
	}

	var prompt strings.Builder
	prompt.WriteString("You are a professional Minecraft mod translation expert. ")
	prompt.WriteString(fmt.Sprintf("Translate the English text of a Minecraft modpack into the language identified by the Minecraft locale code %q.\n\n", t.cfg.TargetLang))

	prompt.WriteString("=== TRANSLATION RULES ===\n")
	prompt.WriteString("1. Preserve all formatting codes exactly: § color codes (§a, §l, §r), & color codes, and Minecraft format markers.\n")
	prompt.WriteString("2. Preserve all placeholders exactly: %s, %d, %1$s, %2$d, {0}, {1}.\n")
	prompt.WriteString("3. Preserve technical markers: JSON escapes and \\n line breaks.\n")
	prompt.WriteString("4. Use community-established names for Minecraft items, blocks and entities; keep the English original when unsure.\n")
	prompt.WriteString("5. Do not translate: bare numbers and punctuation, commands starting with /, variable names like player_name, resource paths like minecraft:stone, or text already in the target language.\n")
	prompt.WriteString("6. Keep translations concise and natural for the target-language Minecraft community.\n")

	if dictContext := t.dict.PromptContext(texts, dictContextLimit); dictContext != "" {
		prompt.WriteString("\n=== REFERENCE DICTIONARY ===\n")
		prompt.WriteString("Consult these known translations while translating:\n")
		prompt.WriteString(dictContext)
		prompt.WriteString("\n")
	}

	prompt.WriteString("\n=== INPUT FORMAT ===\n")
	prompt.WriteString("The input is a JSON object mapping translation keys to English text.\n")

	prompt.WriteString("\n=== OUTPUT FORMAT ===\n")
	prompt.WriteString("Return a JSON object with the same keys and translated values. Output nothing but the JSON object.\n")

	return prompt.String()
}
