package heuristic

import "regexp"

// Keyword families, matched against the lower-cased message.
var (
	positivePattern   = regexp.MustCompile(`\b(great|good|yes|agree|promising|useful)\b`)
	negativePattern   = regexp.MustCompile(`\b(but|concern|concerned|expensive|not sure|problem|struggle|struggling|bottleneck|mess)\b`)
	objectionPattern  = regexp.MustCompile(`\b(expensive|cost|costs|budget|concern|concerned|issue|issues|struggle|struggling|bottleneck)\b`)
	commitmentPattern = regexp.MustCompile(`\b(schedule|demo|proposal|send link|next step|next steps|deep-dive)\b`)
	valuePattern      = regexp.MustCompile(`\b(roi|value|save|saves|saving|savings|return on investment|pays for itself)\b`)
	pitchPattern      = regexp.MustCompile(`\b(our|my) (solution|platform|product|software|tool|plan)\b`)
	painPattern       = regexp.MustCompile(`\b(problem|challenge|pain|struggle|issue|bottleneck|frustrat\w*)\b`)
	featurePattern    = regexp.MustCompile(`\b(feature|features|analytics|dashboard|dashboards|reporting|integration|integrations|automation)\b`)
	nextStepPattern   = regexp.MustCompile(`\b(demo|trial|proposal|pilot)\b`)
	growthPattern     = regexp.MustCompile(`\b(scale|scaling|grow|growing|growth|expand|expanding)\b`)
)

type topicRule struct {
	pattern *regexp.Regexp
	label   string
}

// topicRules is the controlled topic vocabulary, in reporting order.
var topicRules = []topicRule{
	{regexp.MustCompile(`crm`), "CRM"},
	{regexp.MustCompile(`automation`), "Automation"},
	{regexp.MustCompile(`price|pricing|budget|cost`), "Pricing/Budget"},
	{regexp.MustCompile(`integration|compatibility`), "Integration"},
	{regexp.MustCompile(`demo|trial|solution|software`), "Product/Solution"},
	{regexp.MustCompile(`storage|cloud|on-premise`), "Cloud Storage"},
	{regexp.MustCompile(`compliance|security|encryption|hipaa`), "Security/Compliance"},
	{regexp.MustCompile(`team|workflow|tasks|project`), "Team/Workflow Management"},
}

// Vocabulary returns every topic label the engine can emit.
func Vocabulary() []string {
	out := make([]string, len(topicRules))
	for i, r := range topicRules {
		out[i] = r.label
	}
	return out
}

// Topics returns the vocabulary labels matched by a lower-cased message.
func Topics(message string) []string {
	topics := make([]string, 0, len(topicRules))
	seen := make(map[string]bool, len(topicRules))
	for _, r := range topicRules {
		if seen[r.label] || !r.pattern.MatchString(message) {
			continue
		}
		seen[r.label] = true
		topics = append(topics, r.label)
	}
	return topics
}
