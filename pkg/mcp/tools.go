package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/exfang/pkg/check"
	"github.com/Sumatoshi-tech/exfang/pkg/frontend"
	"github.com/Sumatoshi-tech/exfang/pkg/match"
	"github.com/Sumatoshi-tech/exfang/pkg/rewrite"
	"github.com/Sumatoshi-tech/exfang/pkg/store"
)

// Tool name constants.
const (
	ToolNameMatch   = "exfang_match"
	ToolNameRewrite = "exfang_rewrite"
)

// Input size limits.
const (
	// MaxCodeInputBytes is the maximum allowed size for inline code input (1 MB).
	MaxCodeInputBytes = 1 << 20
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyCode indicates the code parameter is empty.
	ErrEmptyCode = errors.New("code parameter is required and must not be empty")
	// ErrEmptyLanguage indicates the language parameter is empty.
	ErrEmptyLanguage = errors.New("language parameter is required and must not be empty")
	// ErrCodeTooLarge indicates the code input exceeds the size limit.
	ErrCodeTooLarge = errors.New("code input exceeds maximum size")
	// ErrNoTemplates indicates the store holds no templates to run.
	ErrNoTemplates = errors.New("no templates loaded")
)

// Input types (auto-generate JSON schemas via struct tags).

// CodeInput is the input schema shared by exfang_match and exfang_rewrite.
type CodeInput struct {
	Code      string   `json:"code"                jsonschema:"source code of one compilation unit"`
	Language  string   `json:"language"            jsonschema:"host language: go or java"`
	Templates []string `json:"templates,omitempty" jsonschema:"optional template names to run (default: all loaded)"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// MatchResult is the payload of exfang_match.
type MatchResult struct {
	Findings []check.Finding `json:"findings"`
}

// RewriteResult is the payload of exfang_rewrite.
type RewriteResult struct {
	Code     string          `json:"code"`
	Changed  bool            `json:"changed"`
	Imports  []string        `json:"imports,omitempty"`
	Findings []check.Finding `json:"findings"`
}

func (s *Server) handleMatch(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input CodeInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	report, _, err := s.run(ctx, input, true)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(MatchResult{Findings: report.Findings})
}

func (s *Server) handleRewrite(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input CodeInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	report, fe, err := s.run(ctx, input, false)
	if err != nil {
		return errorResult(err)
	}

	src := []byte(input.Code)

	out, err := report.Apply(src)
	if err != nil {
		return errorResult(fmt.Errorf("apply edits: %w", err))
	}

	imports := report.Imports()
	if len(imports) > 0 {
		out, err = fe.AddImports(ctx, syntheticFilename(fe), out, imports)
		if err != nil {
			return errorResult(fmt.Errorf("add imports: %w", err))
		}
	}

	return jsonResult(RewriteResult{
		Code:     string(out),
		Changed:  string(out) != input.Code,
		Imports:  imports,
		Findings: report.Findings,
	})
}

// run parses the inline code and checks it against the selected templates.
func (s *Server) run(ctx context.Context, input CodeInput, detectionOnly bool) (*check.Report, frontend.Frontend, error) {
	err := validateCodeInput(input.Code, input.Language)
	if err != nil {
		return nil, nil, err
	}

	selected, err := s.selectTemplates(input.Templates)
	if err != nil {
		return nil, nil, err
	}

	fe, err := frontend.New(input.Language)
	if err != nil {
		return nil, nil, err
	}

	unit, err := fe.ParseSource(ctx, syntheticFilename(fe), []byte(input.Code))
	if err != nil {
		return nil, nil, fmt.Errorf("parse code: %w", err)
	}

	matchOpts := []match.Option{match.WithHierarchy(fe.Hierarchy())}
	if s.lenient {
		matchOpts = append(matchOpts, match.WithLenientTypes())
	}

	opts := []check.Option{
		check.WithMatcher(match.New(matchOpts...)),
		check.WithRewriter(rewrite.New(rewrite.WithHierarchy(fe.Hierarchy()))),
		check.WithLogger(s.logger),
		check.WithMetrics(s.engine),
	}
	if s.tracer != nil {
		opts = append(opts, check.WithTracer(s.tracer))
	}

	if detectionOnly {
		opts = append(opts, check.WithDetectionOnly())
	}

	report, err := check.NewEngine(selected, opts...).CheckUnit(ctx, unit)
	if err != nil {
		return nil, nil, fmt.Errorf("check: %w", err)
	}

	return report, fe, nil
}

func (s *Server) selectTemplates(names []string) (*store.Store, error) {
	if s.store.Len() == 0 {
		return nil, ErrNoTemplates
	}

	if len(names) == 0 {
		return s.store, nil
	}

	selected, err := s.store.Select(names...)
	if err != nil {
		return nil, fmt.Errorf("select templates: %w", err)
	}

	return selected, nil
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// validateCodeInput checks common code input constraints.
func validateCodeInput(code, language string) error {
	if code == "" {
		return ErrEmptyCode
	}

	if language == "" {
		return ErrEmptyLanguage
	}

	if len(code) > MaxCodeInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(code), MaxCodeInputBytes)
	}

	return nil
}

// syntheticFilename creates a filename for the inline unit of fe.
func syntheticFilename(fe frontend.Frontend) string {
	return "code" + fe.Extensions()[0]
}
