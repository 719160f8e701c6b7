// Package session implements the real-time voice co-pilot session.
//
// A session is one bidirectional, low-latency audio conversation with a remote
// generative model: microphone frames stream out while interleaved audio,
// transcription, and tool-call events stream back. The Controller owns all
// mutable session state and binds four concurrent activities together: the
// capture loop, the inbound event loop, in-flight tool executions, and the
// playback device's completion callbacks.
//
// # Usage
//
//	transport, _ := live.NewGemini(apiKey)
//	ctrl, _ := session.NewController(session.DefaultConfig(), transport)
//
//	ctrl.RegisterTool(session.Tool{
//	    Name:        "record_content_idea",
//	    Description: "Save a content idea to the plan",
//	    Handler: func(ctx context.Context, args map[string]any) (*session.ToolOutput, error) {
//	        return &session.ToolOutput{Text: "saved"}, nil
//	    },
//	})
//
//	ctrl.OnTranscriptAppended(func(entries []session.Entry) {
//	    for _, e := range entries {
//	        fmt.Printf("%s: %s\n", e.Speaker, e.Text)
//	    }
//	})
//
//	if err := ctrl.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer ctrl.Stop()
//
// # Lifecycle
//
// The session moves through Idle, Connecting, Active, Errored, and Closed.
// Every resource (capture device, playback sink, live playback sources,
// pending transcript buffers) is created on the way to Active and released by
// one teardown path on any exit, so no device or playback source can outlive
// its session. Stop is idempotent and safe from any state.
package session
