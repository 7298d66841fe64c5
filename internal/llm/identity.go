package llm

import "strings"

// Canonical provider names produced by identity derivation.
const (
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
	ProviderMistral   = "mistral"
	ProviderOllama    = "ollama"
)

// Identity names a model as the combination of a canonical provider and the
// provider's model name.
type Identity struct {
	Provider string
	Name     string
}

// String renders the combined "provider/name" identity handed to engines.
func (id Identity) String() string {
	return id.Provider + "/" + id.Name
}

// providerAliases collapses vendor-family namespace variants onto canonical
// provider names. Unlisted segments pass through unchanged so unknown
// providers still form a stable identity string.
var providerAliases = map[string]string{
	"openai":        ProviderOpenAI,
	"azure":         ProviderOpenAI,
	"azure-openai":  ProviderOpenAI,
	"azure_openai":  ProviderOpenAI,
	"azureopenai":   ProviderOpenAI,
	"google":        ProviderGoogle,
	"google-genai":  ProviderGoogle,
	"google_genai":  ProviderGoogle,
	"googlegenai":   ProviderGoogle,
	"gemini":        ProviderGoogle,
	"vertex":        ProviderGoogle,
	"vertexai":      ProviderGoogle,
	"vertex-ai":     ProviderGoogle,
	"google-vertex": ProviderGoogle,
	"anthropic":     ProviderAnthropic,
	"claude":        ProviderAnthropic,
	"mistral":       ProviderMistral,
	"mistralai":     ProviderMistral,
	"mistral-ai":    ProviderMistral,
	"ollama":        ProviderOllama,
}

// providerFragments catches namespace segments that merely embed a family
// name, like lmChatOpenAi or ChatGoogleGenerativeAI. Checked in order after
// the exact alias table misses.
var providerFragments = []struct {
	fragment string
	provider string
}{
	{"gemini", ProviderGoogle},
	{"google", ProviderGoogle},
	{"vertex", ProviderGoogle},
	{"anthropic", ProviderAnthropic},
	{"claude", ProviderAnthropic},
	{"mistral", ProviderMistral},
	{"ollama", ProviderOllama},
	{"openai", ProviderOpenAI},
}

// geminiOverride routes any model whose name mentions gemini to Google no
// matter which namespace the upstream client reported. Hosted gateways
// regularly serve Gemini models behind other namespaces.
const geminiOverride = "gemini"

// Derive computes the model identity from the upstream language-model
// client's namespace path and model name. The namespace's last path segment
// is lowercased and collapsed through the alias table.
func Derive(namespace, model string) Identity {
	provider := canonicalProvider(namespace)
	if strings.Contains(strings.ToLower(model), geminiOverride) {
		provider = ProviderGoogle
	}
	return Identity{Provider: provider, Name: model}
}

func canonicalProvider(namespace string) string {
	segment := lastSegment(namespace)
	segment = strings.ToLower(strings.TrimPrefix(segment, "@"))
	if canonical, ok := providerAliases[segment]; ok {
		return canonical
	}
	for _, rule := range providerFragments {
		if strings.Contains(segment, rule.fragment) {
			return rule.provider
		}
	}
	return segment
}

// lastSegment takes the final non-empty component of a namespace path.
// Namespaces arrive in several spellings ("@ai-sdk/openai",
// "langchain.chat_models.azure_openai", "lm:anthropic"), all of which reduce
// to their last segment.
func lastSegment(namespace string) string {
	segments := strings.FieldsFunc(namespace, func(r rune) bool {
		return r == '/' || r == '.' || r == ':'
	})
	for i := len(segments) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(segments[i]); s != "" {
			return s
		}
	}
	return ""
}
