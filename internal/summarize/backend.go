package summarize

import (
	"context"
	"errors"
	"time"

	"github.com/nao1215/summarygate/internal/apperror"
	"github.com/nao1215/summarygate/pkg/httpclient"
)

// CompletionRequest はチャット補完リクエスト。
type CompletionRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
}

// Backend はテキスト補完を行う要約バックエンド。
type Backend interface {
	// Complete はリクエストを送信し、生成されたテキストを返す。
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// completionResponse はチャット補完APIのレスポンス。
type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// JSONPoster はJSONボディをPOSTしてレスポンスをデシリアライズする。
type JSONPoster interface {
	PostJSON(ctx context.Context, path string, body any, result any) error
}

// ChatClient はOpenAI互換のチャット補完API（Groq等）のクライアント。
type ChatClient struct {
	client JSONPoster
}

// NewChatClient は新しいChatClientを生成する。
// baseURLは "https://api.groq.com/openai/v1" のようなAPIのベースURL。
func NewChatClient(baseURL, apiKey string, timeout time.Duration) *ChatClient {
	return &ChatClient{
		client: httpclient.New(baseURL, httpclient.WithBearerToken(apiKey), httpclient.WithTimeout(timeout)),
	}
}

// Complete は /chat/completions にリクエストを送り、最初の選択肢の本文を返す。
// 選択肢がない場合は空文字列を返す。通信失敗・タイムアウト・2xx以外はKindUpstream。
func (c *ChatClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	const op = "summarize.ChatClient.Complete"

	var resp completionResponse
	if err := c.client.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return "", apperror.Upstream(op, statusErr.StatusCode, err)
		}
		return "", apperror.Upstream(op, 0, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
