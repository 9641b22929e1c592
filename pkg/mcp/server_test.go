package mcp_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/exfang/pkg/frontend"
	"github.com/Sumatoshi-tech/exfang/pkg/mcp"
	"github.com/Sumatoshi-tech/exfang/pkg/store"
)

const hasPrefixTemplates = `package tmpl

import "strings"

//exfang:before HasPrefix
func before(s, prefix string) bool {
	return strings.Index(s, prefix) == 0
}

//exfang:after HasPrefix
func after(s, prefix string) bool {
	return strings.HasPrefix(s, prefix)
}
`

const goSource = `package demo

import "strings"

func isGo(name string) bool {
	return strings.Index(name, "go") == 0
}
`

func newStore(t *testing.T) *store.Store {
	t.Helper()

	fe, err := frontend.New("go")
	require.NoError(t, err)

	templates, err := fe.CompileExamples(context.Background(), "tmpl.go", []byte(hasPrefixTemplates))
	require.NoError(t, err)

	s, err := store.New(templates...)
	require.NoError(t, err)

	return s
}

// connect starts srv on an in-memory transport and returns a client session.
func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return session
}

func callTool(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	return result
}

func textOf(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)

	return text.Text
}

func TestNewServer_ToolsRegistered(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})
	require.NotNil(t, srv)

	assert.Equal(t, []string{mcp.ToolNameMatch, mcp.ToolNameRewrite}, srv.ListToolNames())
}

func TestServer_Run_CancelledContext(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := srv.Run(ctx)
	require.Error(t, err)
}

func TestMCPServer_InMemoryTransport_ToolsList(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Store: newStore(t)}))

	toolsResult, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	toolNames := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		toolNames = append(toolNames, tool.Name)
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}

	assert.ElementsMatch(t, []string{"exfang_match", "exfang_rewrite"}, toolNames)
}

func TestMCPServer_CallMatch(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Store: newStore(t)}))

	result := callTool(t, session, mcp.ToolNameMatch, map[string]any{
		"code":     goSource,
		"language": "go",
	})
	require.False(t, result.IsError, textOf(t, result))

	var payload struct {
		Findings []struct {
			Template string `json:"template"`
			Text     string `json:"text"`
			Edit     any    `json:"edit"`
			Reason   string `json:"reason"`
		} `json:"findings"`
	}

	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &payload))
	require.Len(t, payload.Findings, 1)
	assert.Equal(t, "HasPrefix", payload.Findings[0].Template)
	assert.Equal(t, `strings.Index(name, "go") == 0`, payload.Findings[0].Text)
	assert.Nil(t, payload.Findings[0].Edit)
}

func TestMCPServer_CallRewrite(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{Store: newStore(t)}))

	result := callTool(t, session, mcp.ToolNameRewrite, map[string]any{
		"code":      goSource,
		"language":  "go",
		"templates": []string{"HasPrefix"},
	})
	require.False(t, result.IsError, textOf(t, result))

	var payload mcp.RewriteResult

	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &payload))
	assert.True(t, payload.Changed)
	assert.Contains(t, payload.Code, `return strings.HasPrefix(name, "go")`)
	assert.Empty(t, payload.Imports)
}

func TestMCPServer_CallErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		deps mcp.ServerDeps
		args map[string]any
		want string
	}{
		{
			name: "empty code",
			args: map[string]any{"code": "", "language": "go"},
			want: mcp.ErrEmptyCode.Error(),
		},
		{
			name: "empty language",
			args: map[string]any{"code": goSource, "language": ""},
			want: mcp.ErrEmptyLanguage.Error(),
		},
		{
			name: "unknown language",
			args: map[string]any{"code": goSource, "language": "cobol"},
			want: "unknown language",
		},
		{
			name: "unknown template",
			args: map[string]any{"code": goSource, "language": "go", "templates": []string{"Nope"}},
			want: "unknown template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			session := connect(t, mcp.NewServer(mcp.ServerDeps{Store: newStore(t)}))

			result := callTool(t, session, mcp.ToolNameMatch, tt.args)
			assert.True(t, result.IsError)
			assert.Contains(t, textOf(t, result), tt.want)
		})
	}
}

func TestMCPServer_EmptyStore(t *testing.T) {
	t.Parallel()

	session := connect(t, mcp.NewServer(mcp.ServerDeps{}))

	result := callTool(t, session, mcp.ToolNameRewrite, map[string]any{"code": goSource, "language": "go"})
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), mcp.ErrNoTemplates.Error())
}
