package synthesis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"fintel/internal/core"
	"fintel/internal/llm"
)

// Conflict records stages disagreeing about the sentiment of one
// topic. Evidence maps each sentiment to the stages that reported it.
type Conflict struct {
	Type     string              `json:"type"`
	Topic    string              `json:"topic"`
	Evidence map[string][]string `json:"evidence"`
}

// Resolution is the outcome of conflict handling for a run.
type Resolution struct {
	Resolved  bool       `json:"resolved"`
	Conflicts []Conflict `json:"conflicts"`
	Note      string     `json:"resolution"`
}

// DetectConflicts groups insights by topic (insights without a topic
// fall into "general") and flags any topic where more than one distinct
// sentiment was reported. Insights without a sentiment do not vote.
func DetectConflicts(insights []core.Insight) []Conflict {
	byTopic := map[string][]core.Insight{}
	for _, in := range insights {
		topic := in.Topic
		if strings.TrimSpace(topic) == "" {
			topic = "general"
		}
		byTopic[topic] = append(byTopic[topic], in)
	}

	topics := make([]string, 0, len(byTopic))
	for t := range byTopic {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	var conflicts []Conflict
	for _, topic := range topics {
		group := byTopic[topic]
		if len(group) < 2 {
			continue
		}
		evidence := map[string][]string{}
		for _, in := range group {
			if in.Sentiment == "" {
				continue
			}
			sentiment := string(in.Sentiment)
			stage := in.Stage
			if stage == "" {
				stage = "unknown"
			}
			if !contains(evidence[sentiment], stage) {
				evidence[sentiment] = append(evidence[sentiment], stage)
			}
		}
		if len(evidence) > 1 {
			conflicts = append(conflicts, Conflict{
				Type:     "sentiment_conflict",
				Topic:    topic,
				Evidence: evidence,
			})
		}
	}
	return conflicts
}

// Resolve arbitrates detected conflicts. With none there is nothing to
// do and no model call is made. Arbitration failure is not fatal: the
// conflicts are reported unresolved.
func (s *Synthesizer) Resolve(ctx context.Context, conflicts []Conflict) Resolution {
	if len(conflicts) == 0 {
		return Resolution{Resolved: true, Note: "No conflicts detected"}
	}
	prompt := arbitrationPrompt(conflicts)
	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return Resolution{Resolved: false, Conflicts: conflicts, Note: "Failed to resolve conflicts"}
	}
	var out arbitrationPayload
	if err := llm.DecodeJSON(raw, &out); err != nil {
		return Resolution{Resolved: false, Conflicts: conflicts, Note: "Failed to resolve conflicts"}
	}
	note := out.note()
	if note == "" {
		return Resolution{Resolved: false, Conflicts: conflicts, Note: "Failed to resolve conflicts"}
	}
	resolved := true
	if out.Resolved != nil {
		resolved = *out.Resolved
	}
	return Resolution{Resolved: resolved, Conflicts: conflicts, Note: note}
}

// arbitrationPayload accepts both the full arbitration schema and the
// bare {"resolution": ...} form older prompts produced.
type arbitrationPayload struct {
	Resolved    *bool `json:"resolved"`
	Resolutions []struct {
		Topic      string `json:"topic"`
		Resolution string `json:"resolution"`
	} `json:"resolutions"`
	FinalJudgment string `json:"final_judgment"`
	Resolution    string `json:"resolution"`
}

func (p arbitrationPayload) note() string {
	if s := strings.TrimSpace(p.FinalJudgment); s != "" {
		return s
	}
	if s := strings.TrimSpace(p.Resolution); s != "" {
		return s
	}
	var parts []string
	for _, r := range p.Resolutions {
		text := strings.TrimSpace(r.Resolution)
		if text == "" {
			continue
		}
		if r.Topic != "" {
			text = r.Topic + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

func arbitrationPrompt(conflicts []Conflict) string {
	var sb strings.Builder
	sb.WriteString("Analysis stages disagree on the sentiment of these topics:\n\n")
	for _, c := range conflicts {
		sb.WriteString(fmt.Sprintf("- topic %q: ", c.Topic))
		sentiments := make([]string, 0, len(c.Evidence))
		for sentiment := range c.Evidence {
			sentiments = append(sentiments, sentiment)
		}
		sort.Strings(sentiments)
		for i, sentiment := range sentiments {
			if i > 0 {
				sb.WriteString("; ")
			}
			sb.WriteString(fmt.Sprintf("%s per %s", sentiment, strings.Join(c.Evidence[sentiment], ", ")))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nWeigh the evidence and state which reading an investor should trust and why.\n")
	sb.WriteString("Respond with JSON:\n")
	sb.WriteString(`{
  "resolved": true,
  "resolutions": [{"topic": "", "resolution": "<per-topic ruling>"}],
  "final_judgment": "<overall arbitration in two sentences>"
}`)
	sb.WriteString("\nSet resolved to false only if the evidence is too thin to rule either way.")
	return sb.String()
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
