package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/advisor/internal/domain"
)

type topicBucket struct {
	topic    string
	keywords []string
}

// topicBuckets are checked in order; every matching bucket contributes.
var topicBuckets = []topicBucket{
	{"power tools", []string{"drill", "tool"}},
	{"paint", []string{"paint", "primer"}},
	{"outdoor", []string{"deck", "outdoor"}},
	{"kitchen", []string{"kitchen", "faucet"}},
	{"bathroom", []string{"bathroom", "vanity"}},
	{"flooring", []string{"floor", "tile"}},
	{"lighting", []string{"light", "lamp"}},
	{"building materials", []string{"lumber", "drywall"}},
	{"ordering", []string{"quote", "order"}},
	{"plumbing", []string{"plumb", "pipe"}},
	{"electrical", []string{"electric", "wire"}},
}

const generalTopic = "general inquiry"

// Topics buckets the conversation text into coarse topics.
func Topics(messages []domain.AgentMessage) []string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(strings.ToLower(m.Content))
		b.WriteByte(' ')
	}
	text := b.String()

	var topics []string
	for _, tb := range topicBuckets {
		for _, kw := range tb.keywords {
			if strings.Contains(text, kw) {
				topics = append(topics, tb.topic)
				break
			}
		}
	}
	if len(topics) == 0 {
		return []string{generalTopic}
	}
	return topics
}

// Summarize digests a finished conversation.
func Summarize(messages []domain.AgentMessage, now time.Time) domain.ChatSummary {
	topics := Topics(messages)
	return domain.ChatSummary{
		SessionDate:     now.Format(time.DateOnly),
		Summary:         fmt.Sprintf("Customer discussed %s. %d messages exchanged.", strings.Join(topics, ", "), len(messages)),
		Sentiment:       "neutral",
		TopicsDiscussed: topics,
	}
}
