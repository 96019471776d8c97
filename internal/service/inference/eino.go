package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"docentgo/internal/config"
	"docentgo/internal/models"
)

// EinoEngine answers queries through an eino chat model, optionally wrapped
// in a react agent that carries the web-search tool. URLs the tool fetches
// during a call come back as the reply's sources.
type EinoEngine struct {
	chatModel model.ToolCallingChatModel
	agent     *react.Agent
}

// NewEinoEngine builds the engine for one configured provider.
func NewEinoEngine(ctx context.Context, provider string, cfg *config.Config) (*EinoEngine, error) {
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}

	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  provCfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}

	engine := &EinoEngine{chatModel: chatModel}
	if ws := newWebSearchTool(); ws != nil {
		agent, err := react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: chatModel,
			ToolsConfig: compose.ToolsNodeConfig{
				Tools: []tool.BaseTool{ws},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("init react agent: %w", err)
		}
		engine.agent = agent
	}
	return engine, nil
}

func (e *EinoEngine) Generate(ctx context.Context, req Request) (Response, error) {
	rec := newSourceRecorder()
	ctx = withRecorder(ctx, rec)

	messages := convertHistory(req)

	var (
		reply *schema.Message
		err   error
	)
	if e.agent != nil {
		reply, err = e.agent.Generate(ctx, messages)
	} else {
		reply, err = e.chatModel.Generate(ctx, messages)
	}
	if err != nil {
		return Response{}, fmt.Errorf("generate reply: %w", err)
	}

	answer := strings.TrimSpace(reply.Content)
	if answer == "" {
		answer = "I couldn't find an answer."
	}
	return Response{Answer: answer, Sources: rec.list()}, nil
}

// convertHistory maps the stored transcript plus the new query onto eino's
// message schema. File context rides in as a system message so it cannot
// be mistaken for something the user typed.
func convertHistory(req Request) []*schema.Message {
	messages := make([]*schema.Message, 0, len(req.History)+2)
	if strings.TrimSpace(req.FileContext) != "" {
		messages = append(messages, schema.SystemMessage(
			"The user attached a document. Its extracted text follows:\n\n"+req.FileContext))
	}
	for _, m := range req.History {
		switch m.Role {
		case models.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(m.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(m.Content))
		}
	}
	messages = append(messages, schema.UserMessage(req.Query))
	return messages
}
