package system

type openAPIDocument struct {
	OpenAPI    string              `json:"openapi"`
	Info       openAPIInfo         `json:"info"`
	Paths      map[string]pathItem `json:"paths"`
	Components components          `json:"components"`
}

type openAPIInfo struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Fields are declared in the order operations are listed within a path.
type pathItem struct {
	Get  *operation `json:"get,omitempty"`
	Post *operation `json:"post,omitempty"`
}

type operation struct {
	Tags        []string            `json:"tags"`
	Summary     string              `json:"summary"`
	OperationID string              `json:"operationId"`
	RequestBody *requestBody        `json:"requestBody,omitempty"`
	Responses   map[string]response `json:"responses"`
}

type requestBody struct {
	Required bool                 `json:"required"`
	Content  map[string]mediaType `json:"content"`
}

type response struct {
	Description string               `json:"description"`
	Content     map[string]mediaType `json:"content,omitempty"`
}

type mediaType struct {
	Schema schema `json:"schema"`
}

type schema struct {
	Ref                  string            `json:"$ref,omitempty"`
	Type                 string            `json:"type,omitempty"`
	Required             []string          `json:"required,omitempty"`
	Properties           map[string]schema `json:"properties,omitempty"`
	Items                *schema           `json:"items,omitempty"`
	AdditionalProperties *bool             `json:"additionalProperties,omitempty"`
}

type components struct {
	Schemas map[string]schema `json:"schemas"`
}

func ref(name string) schema {
	return schema{Ref: "#/components/schemas/" + name}
}

func jsonContent(s schema) map[string]mediaType {
	return map[string]mediaType{"application/json": {Schema: s}}
}

func newOpenAPIDocument(config DocsConfig) openAPIDocument {
	createResponses := map[string]response{
		"204": {Description: "The message was sent"},
		"500": {
			Description: "The message could not be sent",
			Content: map[string]mediaType{
				"text/plain": {Schema: schema{Type: "string"}},
			},
		},
	}
	noAdditionalProperties := false
	return openAPIDocument{
		OpenAPI: "3.0.1",
		Info: openAPIInfo{
			Title:       config.Title,
			Description: config.Description,
			Version:     config.Version,
		},
		Paths: map[string]pathItem{
			"/api/MassTransitActions/createMessage": {
				Get: &operation{
					Tags:        []string{"MassTransitActions"},
					Summary:     "Sends a test message",
					OperationID: "createMessage",
					Responses:   createResponses,
				},
			},
			"/api/MassTransitActions/createQueueMessage": {
				Get: &operation{
					Tags:        []string{"MassTransitActions"},
					Summary:     "Sends a test message",
					OperationID: "createQueueMessage",
					Responses:   createResponses,
				},
			},
			"/api/messages": {
				Post: &operation{
					Tags:        []string{"Messages"},
					Summary:     "Sends the provided message",
					OperationID: "sendMessage",
					RequestBody: &requestBody{
						Required: true,
						Content:  jsonContent(ref("Message")),
					},
					Responses: map[string]response{
						"202": {
							Description: "The message was sent",
							Content:     jsonContent(ref("MessageReceipt")),
						},
						"400": {
							Description: "The request body was invalid",
							Content:     jsonContent(ref("BadRequestError")),
						},
						"500": {
							Description: "The message could not be sent",
							Content:     jsonContent(ref("InternalServerError")),
						},
					},
				},
			},
		},
		Components: components{
			Schemas: map[string]schema{
				"Message": {
					Type:                 "object",
					Required:             []string{"value"},
					AdditionalProperties: &noAdditionalProperties,
					Properties: map[string]schema{
						"value": {Type: "string"},
					},
				},
				"MessageReceipt": {
					Type: "object",
					Properties: map[string]schema{
						"kind":       {Type: "string"},
						"apiVersion": {Type: "string"},
						"id":         {Type: "string"},
					},
				},
				"BadRequestError": {
					Type: "object",
					Properties: map[string]schema{
						"kind":       {Type: "string"},
						"apiVersion": {Type: "string"},
						"reason":     {Type: "string"},
						"details": {
							Type:  "array",
							Items: &schema{Type: "string"},
						},
					},
				},
				"InternalServerError": {
					Type: "object",
					Properties: map[string]schema{
						"kind":       {Type: "string"},
						"apiVersion": {Type: "string"},
					},
				},
			},
		},
	}
}

