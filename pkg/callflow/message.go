package callflow

import (
	"fmt"
	"strings"

	"github.com/code-100-precent/LingLine/pkg/recognizer"
	"github.com/code-100-precent/LingLine/pkg/utils"
)

// NoRecording marks the transcript of a call whose capture failed.
const NoRecording = "(no recording)"

func summaryMessage(s *Session) string {
	var b strings.Builder
	b.WriteString("*📞 Incoming call*\n")
	fmt.Fprintf(&b, "From: %s\n", utils.EscapeMarkdown(s.Caller))
	fmt.Fprintf(&b, "To: %s\n", utils.EscapeMarkdown(s.Callee))
	fmt.Fprintf(&b, "Time: %s\n", utils.EscapeMarkdown(s.Timestamp))
	fmt.Fprintf(&b, "Call ID: `%s`", s.ID)
	if s.Payload != "" {
		fmt.Fprintf(&b, "\n```\n%s\n```", strings.ReplaceAll(s.Payload, "```", "'''"))
	}
	return b.String()
}

func transcriptMessage(s *Session) string {
	var b strings.Builder
	title := "*📝 Call transcript*"
	if s.Stage == StageFailed {
		title = "*⚠️ Call processing failed*"
	}
	b.WriteString(title + "\n")
	fmt.Fprintf(&b, "From: %s\n", utils.EscapeMarkdown(s.Caller))
	fmt.Fprintf(&b, "Call ID: `%s`\n", s.ID)
	if s.Err != nil {
		fmt.Fprintf(&b, "Error: %s\n", utils.EscapeMarkdown(s.Err.Error()))
	}
	if s.ArchiveURL != "" {
		fmt.Fprintf(&b, "Recording: %s\n", utils.EscapeMarkdown(s.ArchiveURL))
	}
	transcript := s.Transcript
	switch {
	case transcript != "":
	case s.RecordingPath != "":
		transcript = recognizer.Placeholder
	default:
		transcript = NoRecording
	}
	b.WriteString("\n" + utils.EscapeMarkdown(transcript))
	return b.String()
}

func attachmentCaption(s *Session) string {
	return fmt.Sprintf("Recording %s from %s", s.ID, s.Caller)
}
