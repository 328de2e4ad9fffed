package rest

import (
	_ "embed"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/krancour/queuebridge/apiserver/internal/core"
	"github.com/krancour/queuebridge/apiserver/internal/lib/restmachinery"
	"github.com/krancour/queuebridge/sdk"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/message.json
var messageSchema []byte

type messagesEndpoints struct {
	*restmachinery.BaseEndpoints
	messageSchemaLoader gojsonschema.JSONLoader
	service             core.MessagesService
}

// NewMessagesEndpoints returns the Endpoints through which Messages are handed
// to the queue.
func NewMessagesEndpoints(
	baseEndpoints *restmachinery.BaseEndpoints,
	service core.MessagesService,
) restmachinery.Endpoints {
	return &messagesEndpoints{
		BaseEndpoints:       baseEndpoints,
		messageSchemaLoader: gojsonschema.NewBytesLoader(messageSchema),
		service:             service,
	}
}

func (m *messagesEndpoints) Register(router *mux.Router) {
	// Create a test message
	router.HandleFunc(
		"/api/MassTransitActions/createMessage",
		m.create,
	).Methods(http.MethodGet)

	// Create a test message (queue flavored alias)
	router.HandleFunc(
		"/api/MassTransitActions/createQueueMessage",
		m.create,
	).Methods(http.MethodGet)

	// Send a message
	router.HandleFunc(
		"/api/messages",
		m.send,
	).Methods(http.MethodPost)
}

func (m *messagesEndpoints) create(w http.ResponseWriter, r *http.Request) {
	m.ServeHumanRequest(
		restmachinery.HumanRequest{
			W: w,
			EndpointLogic: func() (interface{}, error) {
				return nil, m.service.Create(r.Context())
			},
			SuccessCode: http.StatusNoContent,
		},
	)
}

func (m *messagesEndpoints) send(w http.ResponseWriter, r *http.Request) {
	message := sdk.Message{}
	m.ServeRequest(
		restmachinery.InboundRequest{
			W:                   w,
			R:                   r,
			ReqBodySchemaLoader: m.messageSchemaLoader,
			ReqBodyObj:          &message,
			EndpointLogic: func() (interface{}, error) {
				return m.service.Send(r.Context(), message)
			},
			SuccessCode: http.StatusAccepted,
		},
	)
}
