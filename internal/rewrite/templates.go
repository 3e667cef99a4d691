package rewrite

import (
	"fmt"

	"github.com/draftroom/draftroom/internal/model"
)

// Template is a named system/instruction pair from the fixed catalog.
// OutputFormat, when non-empty, overwrites the draft's content format after
// the template is applied.
type Template struct {
	Name         string
	Label        string
	System       string
	Instruction  string
	OutputFormat string
}

// FixTemplate is the ad-hoc "fix" rewrite: cleanup without restructuring.
var FixTemplate = Template{
	Name:   "fix",
	Label:  "Fix text",
	System: "You are an editor that cleans up transcribed or extracted text.",
	Instruction: "Fix spelling, punctuation, broken line breaks, and OCR or transcription " +
		"artifacts in the following text. Keep the wording, structure, and meaning unchanged. " +
		"Return only the corrected text.",
}

// templates is the fixed catalog of named rewrite templates.
var templates = []Template{
	{
		Name:   "summarize",
		Label:  "Summarize",
		System: "You are an assistant that condenses long-form content.",
		Instruction: "Summarize the following text into its key points. " +
			"Use short markdown bullet points. Return only the summary.",
		OutputFormat: model.FormatMarkdown,
	},
	{
		Name:   "structure",
		Label:  "Add structure",
		System: "You are an editor that organizes unstructured text.",
		Instruction: "Reorganize the following text under markdown headings that reflect " +
			"its topics. Do not drop or invent information. Return only the restructured text.",
		OutputFormat: model.FormatMarkdown,
	},
	{
		Name:   "plain",
		Label:  "Plain text",
		System: "You are an editor that simplifies formatting.",
		Instruction: "Strip all markup from the following text and render it as clean plain " +
			"paragraphs. Return only the text.",
		OutputFormat: model.FormatPlain,
	},
}

// Templates returns the catalog in display order.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// Lookup returns the named template from the catalog.
func Lookup(name string) (Template, error) {
	if name == FixTemplate.Name {
		return FixTemplate, nil
	}
	for _, t := range templates {
		if t.Name == name {
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("unknown rewrite template %q", name)
}
