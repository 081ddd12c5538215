package llmgrpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/negentropy-ai/engine/pkg/provider"
)

// Client implements provider.LLMProvider and provider.EmbeddingProvider by
// calling the agent framework's sidecar LLM/embedding service. Plaintext
// transport: the sidecar is expected to run in the same pod or on localhost.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient dials addr (e.g. NE_LLM_GRPC_ADDR) eagerly validating the target
// but not blocking for a live connection (grpc.NewClient is lazy).
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("json")),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to llm grpc service %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

var (
	_ provider.LLMProvider       = (*Client)(nil)
	_ provider.EmbeddingProvider = (*Client)(nil)
)

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamChatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type streamChatResponse struct {
	Content          string `json:"content"`
	Done             bool   `json:"done"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// StreamChat opens a server-streaming RPC and relays chunks onto a channel.
func (c *Client) StreamChat(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatChunk, error) {
	stream, err := c.conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true}, "/negentropy.llm.v1.LLMService/StreamChat")
	if err != nil {
		return nil, fmt.Errorf("open llm stream: %w", err)
	}
	if err := stream.SendMsg(toWireRequest(req)); err != nil {
		return nil, fmt.Errorf("send llm request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("close llm request stream: %w", err)
	}

	ch := make(chan provider.ChatChunk, 32)
	go func() {
		defer close(ch)
		for {
			var resp streamChatResponse
			if err := stream.RecvMsg(&resp); err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				select {
				case ch <- provider.ChatChunk{Err: fmt.Errorf("receive llm chunk: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			chunk := provider.ChatChunk{Content: resp.Content, Done: resp.Done}
			if resp.Done {
				chunk.Usage = &provider.Usage{PromptTokens: resp.PromptTokens, CompletionTokens: resp.CompletionTokens}
			}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
			if resp.Done {
				return
			}
		}
	}()
	return ch, nil
}

func toWireRequest(req provider.ChatRequest) *streamChatRequest {
	msgs := make([]wireMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = wireMessage{Role: string(m.Role), Content: m.Content}
	}
	return &streamChatRequest{Model: req.Model, Messages: msgs, Temperature: req.Temperature, MaxTokens: req.MaxTokens}
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

// Embed calls the single-text embedding RPC.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := c.conn.Invoke(ctx, "/negentropy.llm.v1.EmbeddingService/Embed", &embedRequest{Text: text}, &resp); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return resp.Vector, nil
}

type embedBatchRequest struct {
	Texts []string `json:"texts"`
}

type embedBatchResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// EmbedBatch calls the batch embedding RPC. Per the embedding-provider
// contract, it never returns a partial result: a short response is an
// error, not a truncated slice.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embedBatchResponse
	if err := c.conn.Invoke(ctx, "/negentropy.llm.v1.EmbeddingService/EmbedBatch", &embedBatchRequest{Texts: texts}, &resp); err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(resp.Vectors) != len(texts) {
		return nil, fmt.Errorf("embed batch: expected %d vectors, got %d", len(texts), len(resp.Vectors))
	}
	return resp.Vectors, nil
}
