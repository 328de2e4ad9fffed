package sdk

import (
	"context"
	"net/http"

	"github.com/krancour/queuebridge/sdk/internal/restmachinery"
)

// MessagesClient is the specialized client for handing Messages to the
// queuebridge API.
type MessagesClient interface {
	// Create asks the API server to enqueue a canned test Message.
	Create(ctx context.Context) error
	// Send asks the API server to enqueue the provided Message.
	Send(ctx context.Context, message Message) (MessageReceipt, error)
}

type messagesClient struct {
	*restmachinery.BaseClient
}

// NewMessagesClient returns a specialized client for handing Messages to the
// queuebridge API.
func NewMessagesClient(apiAddress string, allowInsecure bool) MessagesClient {
	return &messagesClient{
		BaseClient: restmachinery.NewBaseClient(apiAddress, allowInsecure),
	}
}

func (m *messagesClient) Create(ctx context.Context) error {
	return m.ExecuteRequest(
		ctx,
		restmachinery.OutboundRequest{
			Method:      http.MethodGet,
			Path:        "api/MassTransitActions/createMessage",
			SuccessCode: http.StatusNoContent,
		},
	)
}

func (m *messagesClient) Send(
	ctx context.Context,
	message Message,
) (MessageReceipt, error) {
	receipt := MessageReceipt{}
	return receipt, m.ExecuteRequest(
		ctx,
		restmachinery.OutboundRequest{
			Method:      http.MethodPost,
			Path:        "api/messages",
			ReqBodyObj:  message,
			SuccessCode: http.StatusAccepted,
			RespObj:     &receipt,
		},
	)
}
