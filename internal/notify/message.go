package notify

import (
	"fmt"
	"strings"

	"github.com/nao1215/citawatch/internal/model"
)

// maxListedLabels caps the time labels spelled out in a hit message.
const maxListedLabels = 10

// TestMessage is sent by the notify-test command.
const TestMessage = "🚀 Test OK: el bot está listo y puede enviarte alertas por Telegram."

// HitMessage builds the alert for a target with free slots.
func HitMessage(t model.Target, r model.Result) string {
	var b strings.Builder
	b.WriteString("✅ ¡HAY HUECOS! ")
	b.WriteString(t.Name)
	if d := r.Diagnostics.DateLabel; d != "" {
		fmt.Fprintf(&b, " (%s)", d)
	}

	labels := r.Labels
	extra := 0
	if len(labels) > maxListedLabels {
		extra = len(labels) - maxListedLabels
		labels = labels[:maxListedLabels]
	}
	fmt.Fprintf(&b, "\nHoras: %s", strings.Join(labels, ", "))
	if extra > 0 {
		fmt.Fprintf(&b, " (+%d más)", extra)
	}
	fmt.Fprintf(&b, "\nEntra ya: %s", t.AccessURL())
	return b.String()
}

// BlockMessage builds the probable-block alert after count consecutive
// blocked checks.
func BlockMessage(t model.Target, count int, r model.Result) string {
	msg := fmt.Sprintf("⚠️ %s: página vacía tras %d comprobaciones seguidas (bloqueo probable).", t.Name, count)
	if reason := r.Diagnostics.Reason; reason != "" {
		msg += "\nÚltimo motivo: " + reason
	}
	return msg
}

// StartMessage announces the monitoring loop.
func StartMessage(targets []string) string {
	if len(targets) == 0 {
		return "🚀 citawatch iniciado"
	}
	return "🚀 citawatch iniciado\nVigilando: " + strings.Join(targets, ", ")
}

// EvidenceCaption is the caption of screenshot and markup attachments.
func EvidenceCaption(t model.Target, r model.Result) string {
	return fmt.Sprintf("%s: %s", t.Name, strings.Join(r.Labels, ", "))
}

// EvidenceFilename is the upload name of the markup attachment.
func EvidenceFilename(t model.Target) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, t.Name)
	return name + ".html"
}
