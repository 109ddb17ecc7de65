// Package content converts heterogeneous content parts into
// provider-appropriate payload fragments.
package content

import (
	"fmt"
	"strings"

	"modelrelay/internal/core"
)

// NoContent is returned when a part sequence renders to nothing.
const NoContent = "(no content)"

// RenderPartsAsText renders mixed content parts as plain text for backends
// that cannot consume binary content natively. Text parts are trimmed and
// emitted verbatim as blank-separated blocks; binary parts become a
// deterministic placeholder naming the MIME type and byte length.
func RenderPartsAsText(parts []core.ContentPart) string {
	blocks := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part.Kind {
		case core.PartBinary:
			blocks = append(blocks, AttachmentPlaceholder(part.MIMEType, len(part.Data)))
		default:
			text := strings.TrimSpace(part.Text)
			if text != "" {
				blocks = append(blocks, text)
			}
		}
	}
	if len(blocks) == 0 {
		return NoContent
	}
	return strings.Join(blocks, "\n\n")
}

// AttachmentPlaceholder is the text stand-in for a binary part on a
// text-only backend.
func AttachmentPlaceholder(mimeType string, byteLen int) string {
	return fmt.Sprintf("[Attachment: %s, %d bytes; content omitted in local text-only mode]", mimeType, byteLen)
}
