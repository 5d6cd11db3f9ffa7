package chatbot

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/history"
	"github.com/neuralmind-ai/nsx-chatbot/memory"
)

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestMCPTools(t *testing.T) {
	f := newFixture(t, wordModerator{})
	ctx := context.Background()
	require.NotNil(t, NewMCPServer("nsxbot", f.engine))

	res, err := HandleAnswer(f.engine)(ctx, callTool("answer", map[string]any{
		"user_id": "5511", "chatbot_id": "bot", "index": "FUNDEP", "message": "Quando é a prova?", "bm25_only": true,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "A prova é dia 25/03.", resultText(t, res))
	assert.True(t, f.handler.inputs[0].BM25Only)

	res, err = HandleAnswer(f.engine)(ctx, callTool("answer", map[string]any{"user_id": "5511"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = HandleGreeting(f.engine)(ctx, callTool("greeting", map[string]any{"user_id": "5511", "chatbot_id": "bot", "index": "FUNDEP"}))
	require.NoError(t, err)
	assert.Equal(t, history.DefaultIntro+"\n\n"+history.DefaultDisclaimer, resultText(t, res))

	res, err = HandleSetUserConfig(f.engine)(ctx, callTool("set-user-config", map[string]any{"user_id": "5511", "chatbot_id": "bot", "key": ConfigModel, "value": "gpt-4"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	v, ok, err := f.store.UserConfig(ctx, "5511", "bot", ConfigModel)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gpt-4", v)

	res, err = HandleReset(f.engine)(ctx, callTool("reset", map[string]any{"user_id": "5511", "chatbot_id": "bot"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	conv, err := f.store.Get(ctx, memory.Key{User: "5511", Bot: "bot", Index: "FUNDEP"})
	require.NoError(t, err)
	assert.True(t, conv.Empty())
}

func TestMCPAnswer_FailureShowsApology(t *testing.T) {
	f := newFixture(t, wordModerator{})
	f.handler.err = errs.Ef(errs.KindSearch, "nsx search", "status 500")

	res, err := HandleAnswer(f.engine)(context.Background(), callTool("answer", map[string]any{
		"user_id": "u", "index": "i", "message": "m",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, errs.ApologyMessage, resultText(t, res))
}
