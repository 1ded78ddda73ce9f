package prompts

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Placeholders substituted by the render functions.
const (
	DocumentPlaceholder     = "{document}"
	MediaOutletsPlaceholder = "%media_outlets%"
)

// Template names accepted by Lookup.
const (
	NamePressReleaseAnalysis      = "press_release_analysis"
	NameClientBriefClarification  = "client_brief_clarification"
	NameContentStrategySuggestion = "content_strategy_suggestion"
)

// ErrUnknownPrompt is returned by Lookup for a name with no template.
var ErrUnknownPrompt = errors.New("unknown prompt")

var templates = map[string]string{
	NamePressReleaseAnalysis:      PressReleaseAnalysis,
	NameClientBriefClarification:  ClientBriefClarification,
	NameContentStrategySuggestion: ContentStrategySuggestion,
}

// Lookup returns the template registered under name.
func Lookup(name string) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %q (known: %s)", ErrUnknownPrompt, name, strings.Join(Names(), ", "))
	}
	return tmpl, nil
}

// Names returns the template names in sorted order.
func Names() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Render substitutes document for every {document} placeholder in tmpl.
func Render(tmpl, document string) string {
	return strings.ReplaceAll(tmpl, DocumentPlaceholder, document)
}

// RenderClientBrief renders ClientBriefClarification with the brief and the
// media outlets available for outreach.
func RenderClientBrief(document string, outlets []string) string {
	out := strings.ReplaceAll(ClientBriefClarification, MediaOutletsPlaceholder, strings.Join(outlets, ", "))
	return Render(out, document)
}
