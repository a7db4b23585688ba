package translation

// DefaultSystemPrompt is the instruction sent with every translation request
// unless SYSTEM_PROMPT_FILE points at a replacement.
const DefaultSystemPrompt = "Translate the text provided to the language requested by the user. " +
	"Maintain the text's professional tone, while prioritizing returning all the text given. " +
	"Do not translate any acronyms found in the original text. " +
	"Preserve all markdown formatting, image tags, code blocks, links, headings, and inline markup. " +
	"Preserve page structure; do not omit or translate the \"End of Page\" markers in the original text. " +
	"Only change natural language; do not modify tags, backticks, URLs, or markdown structure. " +
	"If a natural language sentence is incomplete, translate it as it is written " +
	"and do not attempt to fill in parts of the sentence."

// userMessage carries the target language and the encoded text.
func userMessage(language, text string) string {
	return "Translate the following text to " + LanguageName(language) + ": " + text
}
