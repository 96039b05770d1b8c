package ai

import (
	"context"

	"docwell/internal/app"
)

const systemPrompt = "You are a careful personal document assistant. Answer the " +
	"user's question based only on the provided context from their own documents. " +
	"If the context does not contain enough information, say so plainly and give " +
	"general guidance instead. Do not make up facts. For anything medical, remind " +
	"the user to consult a healthcare professional."

// GenerationClient adapts the OpenAI-compatible chat client to the generator
// contract the assistant service expects.
type GenerationClient struct {
	client *OpenAICompatibleClient
	cfg    ChatConfig
}

func NewGenerationClient(client *OpenAICompatibleClient, cfg ChatConfig) *GenerationClient {
	return &GenerationClient{client: client, cfg: cfg}
}

func (g *GenerationClient) Generate(ctx context.Context, req app.GenerationRequest) (string, error) {
	user := ""
	if req.Context != "" {
		user = "Context:\n---\n" + req.Context + "\n---\n\n"
	}
	user += "Question: " + req.Query
	if req.Language != "" {
		user += "\n\nRespond in " + req.Language + "."
	}
	user += "\n\nAnswer:"

	messages := []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}
	return g.client.Complete(ctx, g.cfg, messages)
}
