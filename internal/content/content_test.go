package content

import (
	"bytes"
	"strings"
	"testing"

	"modelrelay/internal/core"
)

func TestRenderPartsAsText(t *testing.T) {
	tests := []struct {
		name  string
		parts []core.ContentPart
		want  string
	}{
		{
			name:  "empty input returns sentinel",
			parts: nil,
			want:  "(no content)",
		},
		{
			name:  "all-blank text returns sentinel",
			parts: []core.ContentPart{core.TextPart("   "), core.TextPart("")},
			want:  "(no content)",
		},
		{
			name:  "text parts trimmed and blank-separated",
			parts: []core.ContentPart{core.TextPart("  first \n"), core.TextPart("second")},
			want:  "first\n\nsecond",
		},
		{
			name: "binary part becomes placeholder",
			parts: []core.ContentPart{
				core.TextPart("a"),
				core.BinaryPart("image/png", bytes.Repeat([]byte{0x1}, 100)),
			},
			want: "a\n\n[Attachment: image/png, 100 bytes; content omitted in local text-only mode]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderPartsAsText(tt.parts); got != tt.want {
				t.Errorf("RenderPartsAsText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderPartsAsText_TwoBlocks(t *testing.T) {
	got := RenderPartsAsText([]core.ContentPart{
		core.TextPart("a"),
		core.BinaryPart("image/png", make([]byte, 100)),
	})
	blocks := strings.Split(got, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("block count = %d, want 2", len(blocks))
	}
	if !strings.HasSuffix(got, "[Attachment: image/png, 100 bytes; content omitted in local text-only mode]") {
		t.Errorf("output does not end with attachment placeholder: %q", got)
	}
}
