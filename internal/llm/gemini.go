package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/nikitkaralius/pollmate/internal/catalogue"
	"github.com/nikitkaralius/pollmate/internal/session"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient calls the Gemini API directly with function declarations built from the catalogue.
type GeminiClient struct {
	client    *genai.Client
	model     string
	catalogue *catalogue.Catalogue
	tools     []*genai.Tool
}

func NewGeminiClient(ctx context.Context, apiKey, modelName string, cat *catalogue.Catalogue) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{
		client:    client,
		model:     modelName,
		catalogue: cat,
		tools:     []*genai.Tool{{FunctionDeclarations: declarations(cat)}},
	}, nil
}

func declarations(cat *catalogue.Catalogue) []*genai.FunctionDeclaration {
	var out []*genai.FunctionDeclaration
	for _, d := range cat.Descriptors() {
		decl := &genai.FunctionDeclaration{Name: d.Name, Description: d.Purpose}
		if len(d.Params) > 0 {
			props := make(map[string]*genai.Schema, len(d.Params))
			for _, p := range d.Params {
				props[p.Name] = &genai.Schema{Type: schemaType(p.Type), Description: p.Description}
			}
			decl.Parameters = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   d.RequiredParams(),
			}
		}
		out = append(out, decl)
	}
	return out
}

func schemaType(t catalogue.ParamType) genai.Type {
	if t == catalogue.TypeBoolean {
		return genai.TypeBoolean
	}
	return genai.TypeString
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Reply, error) {
	cat := c.catalogue
	tools := c.tools
	if req.Catalogue != nil && req.Catalogue != cat {
		tools = []*genai.Tool{{FunctionDeclarations: declarations(req.Catalogue)}}
	}

	system, contents := toContents(req.Transcript)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Tools:             tools,
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}
	return replyFromGemini(resp)
}

// toContents splits the transcript into the system instruction and the conversation.
func toContents(turns []session.Turn) (*genai.Content, []*genai.Content) {
	var (
		system   []string
		contents []*genai.Content
	)
	for _, t := range turns {
		switch t.Role {
		case session.RoleSystem:
			system = append(system, t.Content)
		case session.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleUser))
		}
	}
	if len(system) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser), contents
}

func replyFromGemini(resp *genai.GenerateContentResponse) (*Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}

	var (
		text  []string
		reply = &Reply{}
	)
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.FunctionCall != nil {
			args, err := normalizeArgs(part.FunctionCall.Args)
			if err != nil {
				return nil, err
			}
			reply.Actions = append(reply.Actions, catalogue.ActionRequest{Name: part.FunctionCall.Name, Args: args})
			continue
		}
		if part.Text != "" {
			text = append(text, part.Text)
		}
	}
	reply.Text = strings.TrimSpace(strings.Join(text, ""))
	return reply, nil
}
