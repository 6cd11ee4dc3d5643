package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/palaverhq/palaver/domain"
)

// PromptOptions is the per-orchestrator prompt configuration. It is cloned at
// turn start so that assigning the resolved chat-session system description
// never leaks into other concurrent turns.
type PromptOptions struct {
	// SystemDescription is seeded from the chat session at turn start.
	SystemDescription string

	// SystemResponse is the fixed response instruction.
	SystemResponse string

	// SystemTemplate renders the final prompt. It must end with the bot
	// continuation marker line.
	SystemTemplate string
}

const defaultSystemResponse = `Provide a response to the last message. Do not provide a list of possible responses or completions, just a single response. If it appears the last message was intended for another user, send [silence] as the bot response.`

const defaultSystemTemplate = `{{.SystemDescription}}

{{.SystemResponse}}

The following is information about the audience of the chat:
{{.Audience}}

The following is the most recent intent expressed by the user:
{{.Intent}}

{{.ChatContext}}

[{{.DateTime}}] bot:`

// DefaultPromptOptions returns the stock prompt configuration. The system
// description is filled in per turn from the chat session.
func DefaultPromptOptions() PromptOptions {
	return PromptOptions{
		SystemResponse: defaultSystemResponse,
		SystemTemplate: defaultSystemTemplate,
	}
}

// Clone returns an independent working copy for one turn.
func (o PromptOptions) Clone() PromptOptions {
	return o
}

// FixedSystemText is the system contribution counted against the budget
// before anything else is allocated.
func (o PromptOptions) FixedSystemText() string {
	return o.SystemDescription + "\n" + o.SystemResponse
}

// AssembleInput gathers everything the assembler merges into one prompt.
type AssembleInput struct {
	Options       PromptOptions
	Audience      string
	Intent        string
	Semantic      string
	Document      string
	PlanResult    string
	History       []*domain.ChatMessage
	ContextBudget int
}

// markerPattern matches the bot continuation marker in rendered output. The
// marker is re-extracted from the rendered prompt rather than the template
// because it contains the render-time date.
var markerPattern = regexp.MustCompile(`\[[^\[\]\n]*\] bot:`)

// Assembler merges all context sources and renders the final prompt.
type Assembler struct {
	tokenizer domain.Tokenizer
	hasher    domain.Hasher
	now       func() time.Time
}

func NewAssembler(tokenizer domain.Tokenizer, hasher domain.Hasher) *Assembler {
	return &Assembler{tokenizer: tokenizer, hasher: hasher, now: time.Now}
}

// Assemble builds the chat-context text in fixed precedence order (memories,
// documents, history, plan result last) and renders the system template.
func (a *Assembler) Assemble(in AssembleInput) (*domain.BotResponsePrompt, error) {
	var blocks []string
	for _, block := range []string{in.Semantic, in.Document} {
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	contextText := strings.Join(blocks, "\n\n")

	// History only fits if budget remains after the context blocks and the
	// plan result are paid for.
	leftover := in.ContextBudget -
		a.tokenizer.CountTokens(contextText) -
		a.tokenizer.CountTokens(in.PlanResult)

	historyText := ""
	if leftover > 0 {
		historyText = historyWindow(in.History, leftover, a.tokenizer)
	}
	if historyText != "" {
		if contextText != "" {
			contextText += "\n\n"
		}
		contextText += historyText
	}

	// The plan result goes last to imply precedence.
	if in.PlanResult != "" {
		if contextText != "" {
			contextText += "\n"
		}
		contextText += in.PlanResult
	}

	tmpl, err := template.New("system").Parse(in.Options.SystemTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing system template: %w", err)
	}

	var rendered strings.Builder
	err = tmpl.Execute(&rendered, map[string]string{
		"SystemDescription": in.Options.SystemDescription,
		"SystemResponse":    in.Options.SystemResponse,
		"Audience":          in.Audience,
		"Intent":            in.Intent,
		"ChatContext":       contextText,
		"DateTime":          a.now().Format(historyTimeFormat),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering system template: %w", err)
	}

	prompt := &domain.BotResponsePrompt{
		Audience:         in.Audience,
		Intent:           in.Intent,
		SemanticMemories: in.Semantic,
		DocumentMemories: in.Document,
		History:          historyText,
		PlanResult:       in.PlanResult,
		SystemText:       in.Options.FixedSystemText(),
		Rendered:         rendered.String(),
	}

	markers := markerPattern.FindAllString(prompt.Rendered, -1)
	if len(markers) > 0 {
		prompt.Marker = markers[len(markers)-1]
	}
	if a.hasher != nil {
		prompt.Fingerprint = a.hasher.Hash([]byte(prompt.Rendered))
	}

	return prompt, nil
}
