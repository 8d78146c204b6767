package classify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/normalize"
)

const defaultConfidence = 0.5

var (
	fenceOpenRe  = regexp.MustCompile("^```[a-zA-Z]*\\s*")
	fenceCloseRe = regexp.MustCompile("\\s*```\\s*$")
)

// stringList accepts either a JSON string or a list of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one = strings.TrimSpace(one); one != "" {
			*l = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	out := make(stringList, 0, len(many))
	for _, s := range many {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

type modelReply struct {
	Theme      *string    `json:"theme"`
	Abstract   string     `json:"abstract"`
	Summary    *string    `json:"summary"`
	Pour       stringList `json:"pour"`
	Contre     stringList `json:"contre"`
	Concerne   stringList `json:"concerne"`
	Confidence *float64   `json:"confidence"`
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = fenceOpenRe.ReplaceAllString(content, "")
	content = fenceCloseRe.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}

// parseReply decodes the model message. An unknown theme is replaced by the sentinel.
func parseReply(content string) (Result, error) {
	var reply modelReply
	if err := json.Unmarshal([]byte(stripFences(content)), &reply); err != nil {
		return Result{}, fmt.Errorf("failed to parse model JSON: %w", err)
	}
	if reply.Theme == nil || reply.Summary == nil || strings.TrimSpace(*reply.Summary) == "" {
		return Result{}, fmt.Errorf("model reply is missing theme or summary")
	}

	theme := strings.TrimSpace(*reply.Theme)
	if !bill.IsTheme(theme) {
		theme = bill.SentinelTheme
	}

	confidence := defaultConfidence
	if reply.Confidence != nil {
		confidence = min(max(*reply.Confidence, 0), 1)
	}

	return Result{
		Theme:      theme,
		Abstract:   normalize.Truncate(strings.TrimSpace(reply.Abstract), 280),
		Summary:    normalize.Truncate(strings.TrimSpace(*reply.Summary), normalize.SummaryMaxLen),
		Pros:       reply.Pour,
		Cons:       reply.Contre,
		Affected:   reply.Concerne,
		Confidence: confidence,
	}, nil
}
