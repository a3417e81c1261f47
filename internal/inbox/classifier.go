// Package inbox ingests reply messages, classifies them, and routes contacts
// into the matching post-reply status. Opt-outs are suppressed immediately.
package inbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/metrics"
	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/pkg/circuitbreaker"
	"github.com/kwstx/email-agent/pkg/logger"
	"github.com/kwstx/email-agent/pkg/retry"
)

const classifierSystemPrompt = "You are an email classifier for B2B sales outreach. " +
	"Classify the reply into one of these exact categories: 'interest', 'deferral', 'irrelevance', 'referral', 'opt_out'. " +
	"If the email is asking for a meeting, demo, or more info, classify as 'interest'. " +
	"If the email says 'not interested' or 'no thanks', classify as 'irrelevance'. " +
	"Return ONLY the category name."

// Keyword shortcuts evaluated before the model call. Opt-out detection must
// never depend on an external service being up.
var (
	optOutPhrases   = []string{"unsubscribe", "remove me", "stop emailing", "opt out", "take me off"}
	deferralPhrases = []string{"out of office", "vacation", "auto-reply", "automatic reply", "on leave"}
	interestPhrases = []string{"interested", "call", "demo", "chat", "time for", "discuss", "pricing"}
	rejectPhrases   = []string{"not interested", "no thanks", "pass"}
)

var validClassifications = map[string]bool{
	models.ReplyInterest:    true,
	models.ReplyDeferral:    true,
	models.ReplyIrrelevance: true,
	models.ReplyReferral:    true,
	models.ReplyOptOut:      true,
}

// Classifier assigns a reply classification to inbound messages. The LLM is
// optional; without it classification degrades to keyword matching.
type Classifier struct {
	client      *openai.Client
	model       string
	retryConfig retry.Config
	breaker     *circuitbreaker.Breaker
}

func NewClassifier(apiKey, model string) *Classifier {
	c := &Classifier{
		model:       model,
		retryConfig: retry.DefaultConfig(),
		breaker: circuitbreaker.New("llm-classifier", circuitbreaker.Config{
			MaxRequests:      5,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Logger:           logger.Log,
		}),
	}
	c.retryConfig.Logger = logger.Log

	if apiKey != "" {
		c.client = openai.NewClient(apiKey)
		logger.Info("Reply classifier initialized", zap.String("model", model))
	} else {
		logger.Warn("No LLM API key configured, reply classification is keyword-only")
	}
	return c
}

// Classify returns one of the reply classification constants. It never
// returns an error; on model failure it falls back to keywords, and the
// default is irrelevance because that is the safest routing.
func (c *Classifier) Classify(ctx context.Context, subject, body string) string {
	content := strings.ToLower(subject + " " + body)

	if containsAny(content, optOutPhrases) {
		return models.ReplyOptOut
	}
	if containsAny(content, deferralPhrases) {
		return models.ReplyDeferral
	}

	if c.client != nil {
		if category, ok := c.classifyLLM(ctx, subject, body); ok {
			return category
		}
	}

	if containsAny(content, interestPhrases) {
		return models.ReplyInterest
	}
	if containsAny(content, rejectPhrases) {
		return models.ReplyIrrelevance
	}

	return models.ReplyIrrelevance
}

func (c *Classifier) classifyLLM(ctx context.Context, subject, body string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if len(body) > 1000 {
		body = body[:1000]
	}

	// The breaker sits outside the retry loop so that a model outage trips
	// it once per call, not once per attempt.
	var resp openai.ChatCompletionResponse
	err := c.breaker.Execute(ctx, func() error {
		var err error
		resp, err = retry.DoWithResult(ctx, c.retryConfig, func() (openai.ChatCompletionResponse, error) {
			return c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: c.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Subject: %s\n\nBody: %s", subject, body)},
				},
				MaxTokens: 10,
			})
		})
		return err
	})
	if err != nil {
		metrics.LLMClassifications.WithLabelValues("error").Inc()
		logger.Error("LLM classification failed, falling back to keywords", zap.Error(err))
		return "", false
	}
	if len(resp.Choices) == 0 {
		metrics.LLMClassifications.WithLabelValues("empty").Inc()
		return "", false
	}

	metrics.LLMClassifications.WithLabelValues("ok").Inc()
	category := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	if validClassifications[category] {
		return category, true
	}

	// The model occasionally wraps the label in prose.
	switch {
	case strings.Contains(category, "interest"):
		return models.ReplyInterest, true
	case strings.Contains(category, "remove"), strings.Contains(category, "stop"):
		return models.ReplyOptOut, true
	case strings.Contains(category, "no"):
		return models.ReplyIrrelevance, true
	}

	return "", false
}

func containsAny(content string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(content, p) {
			return true
		}
	}
	return false
}
