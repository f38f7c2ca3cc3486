package controllers

// ModuleKind names one single-shot tool module. The set is closed: adding a
// module means adding an entry to the table below, nothing else.
type ModuleKind string

const (
	ModuleCodeGen      ModuleKind = "codegen"
	ModuleDocIntel     ModuleKind = "docintel"
	ModuleVision       ModuleKind = "vision"
	ModuleDataViz      ModuleKind = "dataviz"
	ModulePromptStudio ModuleKind = "promptstudio"
	ModuleSecOps       ModuleKind = "secops"
)

// PostProcessor reshapes the accumulated text before every publish. It must
// be idempotent over a growing accumulator.
type PostProcessor func(accumulated string) (result, explanation string)

// ModuleSpec is one entry in the module dispatch table: a fixed system
// instruction plus the output post-processing rule.
type ModuleSpec struct {
	Kind              ModuleKind
	Title             string
	SystemInstruction string
	PostProcess       PostProcessor
	RequireAttachment bool
}

func identity(s string) (string, string) { return s, "" }

func stripFences(s string) (string, string) { return StripCodeFences(s), "" }

var moduleTable = map[ModuleKind]ModuleSpec{
	ModuleCodeGen: {
		Kind:  ModuleCodeGen,
		Title: "Code Generation",
		SystemInstruction: "You are an expert software engineer. Generate clean, working code for the user's request. " +
			"Respond with code only, no surrounding prose.",
		PostProcess: stripFences,
	},
	ModuleDocIntel: {
		Kind:  ModuleDocIntel,
		Title: "Document Analysis",
		SystemInstruction: "You are a document analyst. Read the attached document and answer the user's question about it. " +
			"Quote the document where it supports your answer.",
		PostProcess:       identity,
		RequireAttachment: true,
	},
	ModuleVision: {
		Kind:  ModuleVision,
		Title: "Vision Analysis",
		SystemInstruction: "You are an image analyst. Describe and analyze the attached image, answering the user's question " +
			"about its contents.",
		PostProcess:       identity,
		RequireAttachment: true,
	},
	ModuleDataViz: {
		Kind:  ModuleDataViz,
		Title: "Data Visualization",
		SystemInstruction: "You are a data visualization assistant. Produce chart configuration code for the user's data. " +
			"Respond with code only, no surrounding prose.",
		PostProcess: stripFences,
	},
	ModulePromptStudio: {
		Kind:  ModulePromptStudio,
		Title: "Prompt Studio",
		SystemInstruction: "You are a prompt engineering assistant. Rewrite the user's prompt to be clearer and more " +
			"effective. Output the improved prompt first, then the line " + promptStudioSeparator +
			", then a short explanation of what you changed.",
		PostProcess: SplitResult,
	},
	ModuleSecOps: {
		Kind:  ModuleSecOps,
		Title: "Security Assistant",
		SystemInstruction: "You are a defensive security assistant. Explain security concepts, analyze configurations and " +
			"logs the user pastes, and suggest hardening steps. Decline requests for working exploits.",
		PostProcess: identity,
	},
}

// Modules returns the full dispatch table.
func Modules() map[ModuleKind]ModuleSpec {
	out := make(map[ModuleKind]ModuleSpec, len(moduleTable))
	for k, v := range moduleTable {
		out[k] = v
	}
	return out
}

// ModuleByKind looks up one module spec.
func ModuleByKind(kind ModuleKind) (ModuleSpec, bool) {
	spec, ok := moduleTable[kind]
	return spec, ok
}
