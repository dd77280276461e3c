package agent

import "github.com/zen-systems/promptforge/pkg/models"

// Specialty describes what a Specialist looks at.
type Specialty struct {
	Name        string
	DisplayName string
	Description string
	FocusAreas  []string

	// AnalysisInstruction and ImprovementInstruction open the system
	// messages; the reply schema is appended to each.
	AnalysisInstruction    string
	ImprovementInstruction string
}

// SyntaxSpecialty covers clarity, role definition and explicit instructions.
var SyntaxSpecialty = Specialty{
	Name:        "syntax",
	DisplayName: "Syntax Agent",
	Description: "Analyzes clarity, role definition, and explicit instructions",
	FocusAreas:  []string{"role", "clarity", "precision", "terminology"},
	AnalysisInstruction: `You are a syntax and clarity expert for prompt engineering.
Focus ONLY on:
- Clear role definition ("You are a...")
- Explicit instructions and expectations
- Removal of ambiguity
- Precise language and terminology

Score the prompt on these criteria (0-10 scale).`,
	ImprovementInstruction: `You are a syntax and clarity expert for prompt engineering.
Improve this prompt by focusing ONLY on:
- Adding clear role definition
- Making instructions explicit
- Removing ambiguity
- Using precise language`,
}

// StructureSpecialty covers organisation, formatting and logical flow.
var StructureSpecialty = Specialty{
	Name:        "structure",
	DisplayName: "Structure Agent",
	Description: "Analyzes organization, formatting, and logical flow",
	FocusAreas:  []string{"organization", "formatting", "flow", "sections"},
	AnalysisInstruction: `You are a structure and formatting expert for prompt engineering.
Focus ONLY on:
- Logical organization (sections, bullets, headings)
- Step-by-step flow
- Clear deliverables and constraints sections
- Proper formatting (bullets, numbering, whitespace)

Score the prompt on these criteria (0-10 scale).`,
	ImprovementInstruction: `You are a structure and formatting expert for prompt engineering.
Improve this prompt by focusing ONLY on:
- Adding logical organization
- Creating clear sections
- Adding step-by-step flow
- Improving formatting`,
}

// DomainSpecialty covers domain context, terminology and examples.
var DomainSpecialty = Specialty{
	Name:        "domain",
	DisplayName: "Domain Agent",
	Description: "Analyzes domain context, terminology, and examples",
	FocusAreas:  []string{"domain", "context", "examples", "terminology"},
	AnalysisInstruction: `You are a domain context expert for prompt engineering.
Focus ONLY on:
- Domain detection (coding, marketing, creative, technical)
- Context enrichment (add domain-specific terminology)
- Examples and edge cases relevant to domain
- Domain-specific constraints and best practices

Score the prompt on these criteria (0-10 scale).`,
	ImprovementInstruction: `You are a domain context expert for prompt engineering.
Improve this prompt by focusing ONLY on:
- Adding domain-specific context
- Including relevant terminology
- Adding examples and edge cases
- Including domain best practices`,
}

// NewSyntaxAgent creates the syntax and clarity agent.
func NewSyntaxAgent(model models.ModelConfig, caller Completer, opts ...SpecialistOption) *Specialist {
	return NewSpecialist(SyntaxSpecialty, model, caller, opts...)
}

// NewStructureAgent creates the structure and formatting agent.
func NewStructureAgent(model models.ModelConfig, caller Completer, opts ...SpecialistOption) *Specialist {
	return NewSpecialist(StructureSpecialty, model, caller, opts...)
}

// NewDomainAgent creates the domain context agent.
func NewDomainAgent(model models.ModelConfig, caller Completer, opts ...SpecialistOption) *Specialist {
	return NewSpecialist(DomainSpecialty, model, caller, opts...)
}
