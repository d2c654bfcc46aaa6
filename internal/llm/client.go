package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"

	"github.com/nikitkaralius/pollmate/internal/catalogue"
	"github.com/nikitkaralius/pollmate/internal/session"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// Client wraps Genkit with the OpenAI plugin. Catalogue operations are registered as Genkit
// tools and tool requests are handed back to the caller instead of being run by Genkit.
type Client struct {
	genkit    *genkit.Genkit
	model     ai.Model
	catalogue *catalogue.Catalogue
	tools     []ai.ToolRef
}

// NewClient creates a new LLM client with Genkit and OpenAI.
func NewClient(ctx context.Context, apiKey, modelName string, cat *catalogue.Catalogue) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is empty")
	}
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}
	oai := &openai.OpenAI{APIKey: apiKey}
	g := genkit.Init(ctx, genkit.WithPlugins(oai))

	return &Client{
		genkit:    g,
		model:     oai.Model(g, modelName),
		catalogue: cat,
		tools:     defineTools(g, cat),
	}, nil
}

// defineTools registers one tool per catalogue operation. The input schema is derived from the
// same argument struct the catalogue decodes into.
func defineTools(g *genkit.Genkit, cat *catalogue.Catalogue) []ai.ToolRef {
	var tools []ai.ToolRef
	for _, d := range cat.Descriptors() {
		switch d.Name {
		case catalogue.OpCreatePoll:
			tools = append(tools, defineTool[catalogue.CreatePollArgs](g, d))
		case catalogue.OpGetPollResult:
			tools = append(tools, defineTool[catalogue.GetPollResultArgs](g, d))
		case catalogue.OpGetSpecificPollResult:
			tools = append(tools, defineTool[catalogue.GetSpecificPollResultArgs](g, d))
		case catalogue.OpUpdatePoll:
			tools = append(tools, defineTool[catalogue.UpdatePollArgs](g, d))
		case catalogue.OpDeletePoll:
			tools = append(tools, defineTool[catalogue.DeletePollArgs](g, d))
		case catalogue.OpDeleteAllPolls:
			tools = append(tools, defineTool[catalogue.DeleteAllPollsArgs](g, d))
		case catalogue.OpVotePoll:
			tools = append(tools, defineTool[catalogue.VotePollArgs](g, d))
		default:
			panic(fmt.Sprintf("llm: no tool binding for operation %q", d.Name))
		}
	}
	return tools
}

func defineTool[In catalogue.Args](g *genkit.Genkit, d catalogue.Descriptor) ai.Tool {
	return genkit.DefineTool(g, d.Name, d.Purpose, func(ctx *ai.ToolContext, in In) (string, error) {
		return "", fmt.Errorf("tool %s is executed by the dispatcher", d.Name)
	})
}

func (c *Client) Generate(ctx context.Context, req Request) (*Reply, error) {
	if req.Catalogue != nil && req.Catalogue.Version() != c.catalogue.Version() {
		return nil, fmt.Errorf("catalogue version %s does not match client tools %s", req.Catalogue.Version(), c.catalogue.Version())
	}

	resp, err := genkit.Generate(ctx, c.genkit,
		ai.WithModel(c.model),
		ai.WithMessages(toMessages(req.Transcript)...),
		ai.WithTools(c.tools...),
		ai.WithReturnToolRequests(true),
	)
	if err != nil {
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}
	return replyFromGenkit(resp)
}

func toMessages(turns []session.Turn) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case session.RoleSystem:
			msgs = append(msgs, ai.NewSystemTextMessage(t.Content))
		case session.RoleAssistant:
			msgs = append(msgs, ai.NewModelTextMessage(t.Content))
		default:
			msgs = append(msgs, ai.NewUserTextMessage(t.Content))
		}
	}
	return msgs
}

func replyFromGenkit(resp *ai.ModelResponse) (*Reply, error) {
	if resp == nil || resp.Message == nil {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	reply := &Reply{Text: strings.TrimSpace(resp.Text())}
	for _, tr := range resp.ToolRequests() {
		args, err := normalizeArgs(tr.Input)
		if err != nil {
			return nil, err
		}
		reply.Actions = append(reply.Actions, catalogue.ActionRequest{Name: tr.Name, Args: args})
	}
	return reply, nil
}
