package main

// nolint: lll
import (
	"github.com/krancour/queuebridge/apiserver/internal/core"
	coreREST "github.com/krancour/queuebridge/apiserver/internal/core/rest"
	"github.com/krancour/queuebridge/apiserver/internal/lib/restmachinery"
	"github.com/krancour/queuebridge/apiserver/internal/system"
	systemREST "github.com/krancour/queuebridge/apiserver/internal/system/rest"
	"github.com/krancour/queuebridge/internal/messaging"
	"github.com/krancour/queuebridge/internal/queue/transport"
	"github.com/krancour/queuebridge/sdk"
	"go.uber.org/zap"
)

func getAPIServerFromEnvironment(
	logger *zap.Logger,
) (restmachinery.Server, messaging.SendEndpoint, error) {

	// API server config
	apiConfig, err := restmachinery.GetConfigFromEnvironment()
	if err != nil {
		return nil, nil, err
	}

	// Queue
	queueConfig, err := transport.GetConfigFromEnvironment()
	if err != nil {
		return nil, nil, err
	}
	writerFactory, err := transport.GetWriterFactoryFromEnvironment(
		queueConfig.Transport,
		logger,
	)
	if err != nil {
		return nil, nil, err
	}
	sendEndpoint := messaging.NewSendEndpoint(
		writerFactory,
		messaging.NewEndpointConventions().Map(sdk.Message{}, queueConfig.Name),
		logger,
	)

	// Messages
	messagesService := core.NewMessagesService(sendEndpoint, logger)

	// Docs
	docsConfig, err := system.GetDocsConfigFromEnvironment()
	if err != nil {
		return nil, nil, err
	}
	docsService, err := system.NewDocsService(docsConfig)
	if err != nil {
		return nil, nil, err
	}

	baseEndpoints := &restmachinery.BaseEndpoints{
		Logger: logger.Named("rest"),
	}

	return restmachinery.NewServer(
		apiConfig,
		baseEndpoints,
		[]restmachinery.Endpoints{
			coreREST.NewMessagesEndpoints(baseEndpoints, messagesService),
			systemREST.NewDocsEndpoints(baseEndpoints, docsService),
		},
	), sendEndpoint, nil
}
