// Package llm is the analysis collaborator: it turns repository
// context into a research report or a grounded chat reply by
// calling an OpenAI-compatible chat-completion API. Providers
// (Claude, ChatGPT, or any compatible gateway) are configured with
// an API key, base URL and model, and tried in priority order.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/unrepo/unrepo-api/internal/github"
)

// ErrNoProvider is returned when every configured provider failed
// or none is configured. Handlers degrade instead of failing.
var ErrNoProvider = errors.New("no analysis provider available")

// Provider is one configured LLM backend.
type Provider struct {
	Name    string // e.g. "claude", "openai"
	APIKey  string
	BaseURL string // OpenAI-compatible chat-completions base URL
	Model   string
}

// Message is one turn of chat history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// RepoContext is the repository material grounding a request.
type RepoContext struct {
	Info  github.RepoInfo
	Tree  []string
	Files []github.FileContent
}

// Report is the product of a one-shot research analysis.
type Report struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Content  string `json:"content"`
}

// Analyzer is the interface handlers consume; the quota decision is
// always committed before any method here is invoked.
type Analyzer interface {
	Analyze(ctx context.Context, rc RepoContext) (Report, error)
	Converse(ctx context.Context, history []Message, message string, rc *RepoContext) (string, error)
}

// Client implements Analyzer over go-openai.
type Client struct {
	providers []Provider
}

// NewClient keeps only providers with an API key configured.
func NewClient(providers []Provider) *Client {
	usable := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.APIKey != "" {
			usable = append(usable, p)
		}
	}
	return &Client{providers: usable}
}

// Analyze produces a structured markdown research report for the
// repository context.
func (c *Client) Analyze(ctx context.Context, rc RepoContext) (Report, error) {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: researchSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: buildRepoPrompt(rc)},
	}
	provider, content, err := c.complete(ctx, msgs)
	if err != nil {
		return Report{}, err
	}
	return Report{Provider: provider.Name, Model: provider.Model, Content: content}, nil
}

// Converse answers one chat turn, optionally grounded in repository
// context. History is truncated to the most recent turns.
func (c *Client) Converse(ctx context.Context, history []Message, message string, rc *RepoContext) (string, error) {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt},
	}
	if rc != nil {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Repository context:\n" + buildRepoPrompt(*rc),
		})
	}
	const historyLimit = 10
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if strings.EqualFold(m.Role, "assistant") {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	_, content, err := c.complete(ctx, msgs)
	return content, err
}

// complete tries each provider in order until one succeeds.
func (c *Client) complete(ctx context.Context, msgs []openai.ChatCompletionMessage) (Provider, string, error) {
	if len(c.providers) == 0 {
		return Provider{}, "", ErrNoProvider
	}
	var lastErr error
	for _, p := range c.providers {
		cfg := openai.DefaultConfig(p.APIKey)
		if p.BaseURL != "" {
			cfg.BaseURL = p.BaseURL
		}
		client := openai.NewClientWithConfig(cfg)
		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    p.Model,
			Messages: msgs,
		})
		if err != nil {
			log.Printf("WARN: llm: provider %s failed: %v", p.Name, err)
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("llm: provider %s returned no choices", p.Name)
			continue
		}
		return p, resp.Choices[0].Message.Content, nil
	}
	return Provider{}, "", fmt.Errorf("%w: %v", ErrNoProvider, lastErr)
}

const researchSystemPrompt = `You are a senior software engineer producing a research report on a GitHub repository. Cover purpose, architecture, notable implementation details, code quality observations and potential risks. Answer in structured markdown.`

const chatSystemPrompt = `You are a helpful assistant answering questions about a GitHub repository. Ground your answers in the provided repository context; say so when the context does not contain the answer.`

// buildRepoPrompt flattens the repository context into prompt text.
// File contents dominate the token budget, so the tree is capped and
// each file is truncated.
func buildRepoPrompt(rc RepoContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s/%s\n", rc.Info.Owner, rc.Info.Name)
	if rc.Info.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", rc.Info.Description)
	}
	fmt.Fprintf(&b, "Primary language: %s | Stars: %d | Forks: %d\n", rc.Info.Language, rc.Info.Stars, rc.Info.Forks)

	if len(rc.Tree) > 0 {
		b.WriteString("\nFile tree:\n")
		const treeLimit = 200
		tree := rc.Tree
		if len(tree) > treeLimit {
			tree = tree[:treeLimit]
		}
		for _, p := range tree {
			b.WriteString("  " + p + "\n")
		}
		if len(rc.Tree) > treeLimit {
			fmt.Fprintf(&b, "  … and %d more files\n", len(rc.Tree)-treeLimit)
		}
	}

	const fileLimit = 8000 // bytes per file in the prompt
	for _, f := range rc.Files {
		content := f.Content
		if len(content) > fileLimit {
			content = content[:fileLimit] + "\n… (truncated)"
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", f.Path, content)
	}
	return b.String()
}
