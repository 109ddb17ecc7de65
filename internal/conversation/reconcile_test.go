package conversation

import (
	"errors"
	"testing"

	"modelrelay/internal/core"
)

func TestReconcile_ExplicitPromptWins(t *testing.T) {
	rc, err := Reconcile("explain X", []core.ChatMessage{
		{Role: "user", Content: "unused"},
	}, "")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if rc.NextPrompt != "explain X" {
		t.Errorf("NextPrompt = %q, want %q", rc.NextPrompt, "explain X")
	}
	// Explicit prompt does not consume history.
	if len(rc.History) != 1 || rc.History[0].Content != "unused" || rc.History[0].Role != core.TurnUser {
		t.Errorf("History = %+v, want single unpopped user turn", rc.History)
	}
}

func TestReconcile_PopsTrailingUserTurn(t *testing.T) {
	rc, err := Reconcile("", []core.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "how are you"},
	}, "")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if rc.NextPrompt != "how are you" {
		t.Errorf("NextPrompt = %q, want %q", rc.NextPrompt, "how are you")
	}
	want := []core.Turn{
		{Role: core.TurnUser, Content: "hi"},
		{Role: core.TurnModel, Content: "hello"},
	}
	if len(rc.History) != len(want) {
		t.Fatalf("len(History) = %d, want %d", len(rc.History), len(want))
	}
	for i, turn := range want {
		if rc.History[i] != turn {
			t.Errorf("History[%d] = %+v, want %+v", i, rc.History[i], turn)
		}
	}
}

func TestReconcile_NoUsablePrompt(t *testing.T) {
	tests := []struct {
		name     string
		prompt   string
		messages []core.ChatMessage
	}{
		{name: "empty everything"},
		{name: "whitespace prompt", prompt: "   "},
		{
			name: "only blank messages",
			messages: []core.ChatMessage{
				{Role: "user", Content: "  "},
				{Role: "assistant", Content: ""},
			},
		},
		{
			name: "trailing assistant turn",
			messages: []core.ChatMessage{
				{Role: "user", Content: "hi"},
				{Role: "assistant", Content: "hello"},
			},
		},
		{
			name: "only system messages",
			messages: []core.ChatMessage{
				{Role: "system", Content: "be nice"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reconcile(tt.prompt, tt.messages, "")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var gatewayErr *core.GatewayError
			if !errors.As(err, &gatewayErr) {
				t.Fatalf("error type = %T, want *core.GatewayError", err)
			}
			if gatewayErr.Type != core.ErrorTypeValidation {
				t.Errorf("error type = %q, want %q", gatewayErr.Type, core.ErrorTypeValidation)
			}
			if gatewayErr.Message != "prompt is required" {
				t.Errorf("message = %q, want %q", gatewayErr.Message, "prompt is required")
			}
		})
	}
}

func TestReconcile_TrailingBlankEntryDropped(t *testing.T) {
	rc, err := Reconcile("", []core.ChatMessage{
		{Role: "user", Content: "question"},
		{Role: "user", Content: "   "},
	}, "")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	// The blank entry disappears before prompt resolution, so the real
	// question becomes the next prompt.
	if rc.NextPrompt != "question" {
		t.Errorf("NextPrompt = %q, want %q", rc.NextPrompt, "question")
	}
	if len(rc.History) != 0 {
		t.Errorf("History = %+v, want empty", rc.History)
	}
}

func TestReconcile_SystemInstructionEquivalence(t *testing.T) {
	fromMessages, err := Reconcile("go", []core.ChatMessage{
		{Role: "system", Content: "be terse"},
	}, "")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	fromField, err := Reconcile("go", nil, "be terse")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if fromMessages.SystemInstruction != fromField.SystemInstruction {
		t.Errorf("SystemInstruction mismatch: %q vs %q",
			fromMessages.SystemInstruction, fromField.SystemInstruction)
	}
}

func TestReconcile_SystemMessagesFolded(t *testing.T) {
	rc, err := Reconcile("go", []core.ChatMessage{
		{Role: "system", Content: "rule one"},
		{Role: "user", Content: "hi"},
		{Role: "system", Content: "rule two"},
	}, "outer rule")
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	want := "outer rule\n\nrule one\n\nrule two"
	if rc.SystemInstruction != want {
		t.Errorf("SystemInstruction = %q, want %q", rc.SystemInstruction, want)
	}
	if len(rc.History) != 1 {
		t.Errorf("len(History) = %d, want 1 (system entries leave the history)", len(rc.History))
	}
}

func TestTranscript(t *testing.T) {
	tests := []struct {
		name string
		rc   *core.ReconciledConversation
		want string
	}{
		{
			name: "bare prompt passes through",
			rc:   &core.ReconciledConversation{NextPrompt: "hi"},
			want: "hi",
		},
		{
			name: "system and history labeled",
			rc: &core.ReconciledConversation{
				SystemInstruction: "be terse",
				History: []core.Turn{
					{Role: core.TurnUser, Content: "hi"},
					{Role: core.TurnModel, Content: "hello"},
				},
				NextPrompt: "how are you",
			},
			want: "System: be terse\nUser: hi\nAssistant: hello\nUser: how are you",
		},
		{
			name: "history without system",
			rc: &core.ReconciledConversation{
				History:    []core.Turn{{Role: core.TurnModel, Content: "earlier answer"}},
				NextPrompt: "next",
			},
			want: "Assistant: earlier answer\nUser: next",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transcript(tt.rc); got != tt.want {
				t.Errorf("Transcript() = %q, want %q", got, tt.want)
			}
		})
	}
}
