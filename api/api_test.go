package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatbot "github.com/neuralmind-ai/nsx-chatbot"
	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/metrics"
)

type fakeBot struct {
	last    chatbot.AnswerRequest
	err     error
	resets  []string
	configs map[string]string
}

func (f *fakeBot) Answer(_ context.Context, req chatbot.AnswerRequest) (*chatbot.Reply, error) {
	f.last = req
	if f.err != nil {
		return &chatbot.Reply{TurnID: "t", Text: errs.UserMessage(f.err), Outcome: "error"}, f.err
	}
	return &chatbot.Reply{TurnID: "t", Text: "resposta", Outcome: "finish"}, nil
}

func (f *fakeBot) Greeting(_ context.Context, user, bot, index string) ([]string, error) {
	return []string{"intro " + index}, nil
}

func (f *fakeBot) Reset(_ context.Context, user, bot string) error {
	f.resets = append(f.resets, user+"/"+bot)
	return nil
}

func (f *fakeBot) SetUserConfig(_ context.Context, user, bot, key, value string) error {
	if f.configs == nil {
		f.configs = map[string]string{}
	}
	f.configs[key] = value
	return nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChat(t *testing.T) {
	bot := &fakeBot{}
	r := NewRouter(bot, "")

	rec := do(t, r, http.MethodPost, "/api/chat", `{"user_id":"5511","chatbot_id":"bot","index":"FUNDEP","message":"oi","bm25_only":true,"return_debug":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "resposta", resp.Answer)
	assert.Equal(t, "finish", resp.Outcome)
	assert.Equal(t, "FUNDEP", bot.last.Index)
	assert.True(t, bot.last.Options.BM25Only)
	assert.True(t, bot.last.Options.ReturnDebug)

	rec = do(t, r, http.MethodPost, "/api/chat", `{"user_id":"5511"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bot.err = errs.Ef(errs.KindAuth, "nsx search", "invalid API key")
	rec = do(t, r, http.MethodPost, "/api/chat", `{"user_id":"5511","index":"FUNDEP","message":"oi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, errs.InvalidAPIKeyMessage, resp.Answer)
}

func TestUserRoutes(t *testing.T) {
	bot := &fakeBot{}
	r := NewRouter(bot, "/metrics")

	rec := do(t, r, http.MethodPost, "/api/greeting", `{"user_id":"5511","index":"FUNDEP"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":["intro FUNDEP"]}`, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/api/reset", `{"user_id":"5511","chatbot_id":"bot"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"5511/bot"}, bot.resets)

	rec = do(t, r, http.MethodPost, "/api/config", `{"user_id":"5511","key":"model","value":"gpt-4"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "gpt-4", bot.configs["model"])

	rec = do(t, r, http.MethodPost, "/api/config", `{"user_id":"5511","key":"color","value":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/reset", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r := NewRouter(&fakeBot{}, "/metrics")
	metrics.IncTurn("finish")

	rec := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nsxbot_turns_total")
}
