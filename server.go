package chatbot

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const Version = "1.0.0"

// NewMCPServer exposes the engine as MCP tools: answer, greeting, reset and
// set-user-config.
func NewMCPServer(name string, e *Engine) *server.MCPServer {
	s := server.NewMCPServer(
		name,
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Chatbot que responde perguntas sobre um domínio de documentos, pesquisando a base de conhecimento de cada índice."),
	)

	s.AddTool(mcp.NewTool("answer",
		mcp.WithDescription("Answer a user message grounded on the documents of a domain index"),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Id of the user, used to keep the conversation memory")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The user message")),
		mcp.WithString("index", mcp.Required(), mcp.Description("Domain index to search")),
		mcp.WithString("chatbot_id", mcp.Description("Id of the chatbot instance")),
		mcp.WithBoolean("bm25_only", mcp.Description("Use lexical search only")),
		mcp.WithBoolean("return_debug", mcp.Description("Prefix the answer with the reasoning trace")),
		mcp.WithBoolean("disable_memory", mcp.Description("Ignore and do not store conversation memory")),
	), HandleAnswer(e))

	s.AddTool(mcp.NewTool("greeting",
		mcp.WithDescription("Return the intro and disclaimer messages not yet sent to the user for an index"),
		mcp.WithString("user_id", mcp.Required()),
		mcp.WithString("index", mcp.Required()),
		mcp.WithString("chatbot_id"),
	), HandleGreeting(e))

	s.AddTool(mcp.NewTool("reset",
		mcp.WithDescription("Forget the conversation memory and settings of a user"),
		mcp.WithString("user_id", mcp.Required()),
		mcp.WithString("chatbot_id"),
	), HandleReset(e))

	s.AddTool(mcp.NewTool("set-user-config",
		mcp.WithDescription("Store a per-user setting: verbose (true/false) or model"),
		mcp.WithString("user_id", mcp.Required()),
		mcp.WithString("key", mcp.Required(), mcp.Enum(ConfigVerbose, ConfigModel)),
		mcp.WithString("value", mcp.Required()),
		mcp.WithString("chatbot_id"),
	), HandleSetUserConfig(e))

	return s
}

func HandleAnswer(e *Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user, err := request.RequireString("user_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		message, err := request.RequireString("message")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		index, err := request.RequireString("index")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		reply, err := e.Answer(ctx, AnswerRequest{
			UserID:    user,
			ChatbotID: request.GetString("chatbot_id", ""),
			Index:     index,
			Message:   message,
			Options: Options{
				BM25Only:      request.GetBool("bm25_only", false),
				ReturnDebug:   request.GetBool("return_debug", false),
				DisableMemory: request.GetBool("disable_memory", false),
			},
		})
		if err != nil {
			return mcp.NewToolResultError(reply.Text), nil
		}
		return mcp.NewToolResultText(reply.Text), nil
	}
}

func HandleGreeting(e *Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user, err := request.RequireString("user_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		index, err := request.RequireString("index")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		msgs, err := e.Greeting(ctx, user, request.GetString("chatbot_id", ""), index)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("greeting failed", err), nil
		}
		return mcp.NewToolResultText(strings.Join(msgs, "\n\n")), nil
	}
}

func HandleReset(e *Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user, err := request.RequireString("user_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := e.Reset(ctx, user, request.GetString("chatbot_id", "")); err != nil {
			return mcp.NewToolResultErrorFromErr("reset failed", err), nil
		}
		return mcp.NewToolResultText("Memória apagada."), nil
	}
}

func HandleSetUserConfig(e *Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user, err := request.RequireString("user_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		key, err := request.RequireString("key")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		value, err := request.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := e.SetUserConfig(ctx, user, request.GetString("chatbot_id", ""), key, value); err != nil {
			return mcp.NewToolResultErrorFromErr("set user config failed", err), nil
		}
		return mcp.NewToolResultText("ok"), nil
	}
}
