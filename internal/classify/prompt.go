package classify

import (
	"fmt"
	"strings"

	"github.com/linnemanlabs/sentinel/internal/signal"
)

// buildSystemPrompt is the fixed instruction block sent to every provider.
func buildSystemPrompt() string {
	return `You are an expert disease-surveillance analyst. You triage candidate outbreak signals for a public-health monitoring team.

Given one signal, decide whether it describes a credible disease event:
- "validate" if it is a genuine, actionable outbreak signal
- "dismiss" if it is noise, duplicate chatter, or clearly not a disease event
- "escalate" if you are unsure and a human analyst should review it

Respond with a single JSON object and nothing else:
{"decision": "validate"|"dismiss"|"escalate", "confidence": 0-100, "reasoning": "...", "priority_adjustment": "P1"|"P2"|"P3"|"P4"|null, "footnote": {"summary": "...", "matched_indicators": [], "filtered_noise": []}}

Be conservative: prefer escalate over dismiss when evidence is thin.`
}

// buildContextBlock summarises the signal for the user message.
func buildContextBlock(sig *signal.Signal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Signal text:\n%s\n\n", sig.Text())
	if sig.TranslatedText != "" && sig.Language != "" {
		fmt.Fprintf(&b, "Translated from: %s\n", sig.Language)
	}

	fmt.Fprintf(&b, "Country: %s", sig.Country)
	if sig.Admin1 != "" {
		fmt.Fprintf(&b, " (%s)", sig.Admin1)
	}
	b.WriteString("\n")

	if sig.Disease != "" {
		fmt.Fprintf(&b, "Suspected disease: %s\n", sig.Disease)
	}
	if sig.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", sig.Category)
	}
	fmt.Fprintf(&b, "Current priority: %s\n", sig.Priority)

	if sig.SourceName != "" || sig.SourceTier != "" {
		fmt.Fprintf(&b, "Source: %s (type=%s, credibility=%s)\n", sig.SourceName, sig.SourceType, sig.SourceTier)
	}
	if sig.ReportedCases != nil {
		fmt.Fprintf(&b, "Reported cases: %d\n", *sig.ReportedCases)
	}
	if sig.ReportedDeaths != nil {
		fmt.Fprintf(&b, "Reported deaths: %d\n", *sig.ReportedDeaths)
	}
	if sig.CrossBorderRisk != nil && *sig.CrossBorderRisk {
		b.WriteString("Cross-border risk flagged by ingestion.\n")
	}

	b.WriteString("\nTriage this signal.")
	return b.String()
}

// extractJSON trims markdown fences and surrounding prose from provider
// content, keeping the outermost JSON object.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}
