package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var errEmptyEmbedding = errors.New("empty embedding result")

type Embedder struct {
	client *Client
	model  string
}

func NewEmbedder(client *Client, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

func (e *Embedder) Model() string {
	return e.model
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": e.model,
		"input": []string{text},
	}

	var vector []float32
	err := e.client.execute(ctx, "embed", func(ctx context.Context) error {
		body, err := e.client.postJSON(ctx, embeddingsPath, request, "embed")
		if err != nil {
			return err
		}
		var response struct {
			Data []struct {
				Embedding []float32 `json:"embedding"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &response); err != nil {
			return fmt.Errorf("decode embed response: %w", err)
		}
		if len(response.Data) == 0 || len(response.Data[0].Embedding) == 0 {
			return errEmptyEmbedding
		}
		vector = response.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}
