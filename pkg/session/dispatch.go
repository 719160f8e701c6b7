package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/pulsedeck/voicepilot/pkg/live"
)

// ToolOutput is the successful product of one tool execution.
type ToolOutput struct {
	// Text is the result payload sent back to the remote model.
	Text string

	// Attachment, when set, is committed to the transcript as a remote entry
	// so the host surfaces the generated artifact.
	Attachment *ArtifactRef
}

// Tool is one operation the remote model may invoke during conversation.
type Tool struct {
	// Name is the unique identifier for the tool (e.g., "record_content_idea").
	Name string

	// Description explains what the tool does, helping the model decide when to use it.
	Description string

	// Parameters defines the JSON schema for the tool's arguments.
	// Keys listed under "required" are validated before the handler runs.
	Parameters map[string]any

	// Handler executes the operation. It may block for seconds (e.g., a
	// one-shot generative request); the dispatcher runs it concurrently with
	// the audio pipeline.
	Handler func(ctx context.Context, args map[string]any) (*ToolOutput, error)
}

// dispatcher executes remote-issued tool calls. Every request produces exactly
// one result, sent through the controller, even when the handler fails or the
// tool is unknown. Executions run concurrently and never stall the pipeline;
// results may return out of arrival order but always carry the request id.
type dispatcher struct {
	mu    sync.Mutex
	tools map[string]Tool

	send       func(live.ToolResult)
	transcript *Transcript
	logger     *slog.Logger

	wg sync.WaitGroup
}

func newDispatcher(send func(live.ToolResult), transcript *Transcript, logger *slog.Logger) *dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &dispatcher{
		tools:      make(map[string]Tool),
		send:       send,
		transcript: transcript,
		logger:     logger,
	}
}

// register adds a tool to the closed registry.
func (d *dispatcher) register(tool Tool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, tool.Name)
	}
	d.tools[tool.Name] = tool
	return nil
}

// declarations returns the registry as transport tool declarations,
// sorted by name for a stable setup message.
func (d *dispatcher) declarations() []live.ToolDeclaration {
	d.mu.Lock()
	defer d.mu.Unlock()

	decls := make([]live.ToolDeclaration, 0, len(d.tools))
	for _, tool := range d.tools {
		decls = append(decls, live.ToolDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].Name < decls[j].Name })
	return decls
}

// dispatch launches every call in the batch as an independent execution.
func (d *dispatcher) dispatch(ctx context.Context, calls []live.ToolCall) {
	for _, call := range calls {
		d.wg.Add(1)
		go func(call live.ToolCall) {
			defer d.wg.Done()
			d.send(d.execute(ctx, call))
		}(call)
	}
}

// execute runs one call to completion and always returns a result.
func (d *dispatcher) execute(ctx context.Context, call live.ToolCall) live.ToolResult {
	d.mu.Lock()
	tool, ok := d.tools[call.Name]
	d.mu.Unlock()

	if !ok {
		d.logger.Warn("unknown tool requested", "tool", call.Name, "call_id", call.ID)
		return live.ToolResult{
			ID:    call.ID,
			Name:  call.Name,
			Error: fmt.Sprintf("unknown tool %q", call.Name),
		}
	}

	if missing := missingRequired(tool.Parameters, call.Arguments); missing != "" {
		return live.ToolResult{
			ID:    call.ID,
			Name:  call.Name,
			Error: fmt.Sprintf("missing required argument %q", missing),
		}
	}

	out, err := d.invoke(ctx, tool, call)
	if err != nil {
		d.logger.Warn("tool execution failed", "tool", call.Name, "call_id", call.ID, "error", err)
		return live.ToolResult{
			ID:    call.ID,
			Name:  call.Name,
			Error: err.Error(),
		}
	}

	if out == nil {
		out = &ToolOutput{Text: "ok"}
	}

	if out.Attachment != nil {
		// Generated artifacts have no matching transcription fragment, so
		// they enter the transcript here rather than at the turn boundary.
		d.transcript.AppendRemote(out.Text, out.Attachment)
	}

	return live.ToolResult{
		ID:     call.ID,
		Name:   call.Name,
		Output: out.Text,
	}
}

// invoke runs the handler, converting a panic into an error so the call
// still produces a result. Handlers are host-registered code; a bad one must
// not take the session down.
func (d *dispatcher) invoke(ctx context.Context, tool Tool, call live.ToolCall) (out *ToolOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panicked", "tool", call.Name, "call_id", call.ID, "panic", r)
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.Handler(ctx, call.Arguments)
}

// wait blocks until every in-flight execution has sent its result.
func (d *dispatcher) wait() {
	d.wg.Wait()
}

// missingRequired returns the first argument named in the schema's "required"
// list that is absent from args, or "".
func missingRequired(schema, args map[string]any) string {
	required, ok := schema["required"]
	if !ok {
		return ""
	}

	switch names := required.(type) {
	case []string:
		for _, name := range names {
			if _, present := args[name]; !present {
				return name
			}
		}
	case []any:
		for _, raw := range names {
			name, ok := raw.(string)
			if !ok {
				continue
			}
			if _, present := args[name]; !present {
				return name
			}
		}
	}
	return ""
}
