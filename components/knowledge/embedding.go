package knowledge

import (
	"context"
	"errors"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/philippgille/chromem-go"
	openai "github.com/sashabaranov/go-openai"
)

var errNoEmbedding = errors.New("no embedding returned")

// OpenAIEmbedding returns an embedding function backed by an OpenAI compatible embeddings endpoint
func OpenAIEmbedding(clt *openai.Client, model string) chromem.EmbeddingFunc {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := clt.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(model),
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, errNoEmbedding
		}
		return resp.Data[0].Embedding, nil
	}
}

// CohereEmbedding returns an embedding function backed by the Cohere embed endpoint
func CohereEmbedding(clt *cohereclient.Client, model string) chromem.EmbeddingFunc {
	if model == "" {
		model = "embed-multilingual-v3.0"
	}
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := clt.Embed(ctx, &cohere.EmbedRequest{
			Texts:     []string{text},
			Model:     &model,
			InputType: cohere.EmbedInputTypeSearchDocument.Ptr(),
		})
		if err != nil {
			return nil, err
		}
		floats := resp.GetEmbeddingsFloats()
		if floats == nil || len(floats.Embeddings) == 0 {
			return nil, errNoEmbedding
		}
		ret := make([]float32, len(floats.Embeddings[0]))
		for i, v := range floats.Embeddings[0] {
			ret[i] = float32(v)
		}
		return ret, nil
	}
}
