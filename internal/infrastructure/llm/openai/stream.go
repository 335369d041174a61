package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
)

const maxSSELineBytes = 1 << 20

var (
	sseDataPrefix = []byte("data:")
	sseDone       = []byte("[DONE]")
)

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Stream opens a streaming completion and forwards each delta. Only opening
// the stream goes through the executor; a stream that fails midway is not
// replayed.
func (c *Chat) Stream(ctx context.Context, req ports.ChatRequest, onDelta func(domain.StreamDelta) error) error {
	payload := chatPayload(req, true)

	var resp *http.Response
	err := c.client.execute(ctx, "chat_stream", func(ctx context.Context) error {
		r, err := c.client.open(ctx, chatCompletionsPath, payload, "chat_stream")
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := readSSE(resp.Body, onDelta); err != nil {
		return wrapTemporaryIfNeeded("chat_stream", err)
	}
	return nil
}

// readSSE consumes "data:" lines until [DONE] or EOF. Events that do not
// decode are skipped.
func readSSE(r io.Reader, onDelta func(domain.StreamDelta) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if !bytes.HasPrefix(line, sseDataPrefix) {
			continue
		}
		data := bytes.TrimSpace(line[len(sseDataPrefix):])
		if bytes.Equal(data, sseDone) {
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal(data, &chunk); err != nil || len(chunk.Choices) == 0 {
			continue
		}
		delta := domain.StreamDelta{
			Reasoning: chunk.Choices[0].Delta.ReasoningContent,
			Content:   chunk.Choices[0].Delta.Content,
		}
		if delta.Reasoning == "" && delta.Content == "" {
			continue
		}
		if err := onDelta(delta); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read chat stream: %w", err)
	}
	return nil
}
