package restjson_test

import (
	"strings"
	"testing"

	"github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/restjson"
)

const storeSchema = `
shapes:
  example#Store:
    type: service
    version: "2024-01-01"
    protocol: restjson
    operations:
      - example#PutItem
      - example#FetchDoc
  example#PutItem:
    type: operation
    http:
      method: PUT
      uri: /items/{Id}?kind=widget
      code: 201
    input: example#PutItemInput
    output: example#PutItemOutput
    errors:
      - example#TooBig
  example#PutItemInput:
    type: structure
    members:
      - name: Id
        target: wiregen#String
        required: true
        httpLabel: true
      - name: Region
        target: wiregen#String
        httpQuery: region
      - name: Trace
        target: wiregen#String
        httpHeader: X-Trace
      - name: Meta
        target: example#StringMap
        httpPrefixHeaders: X-Meta-
      - name: Title
        target: wiregen#String
      - name: Expires
        target: wiregen#Timestamp
        httpHeader: X-Expires
      - name: Created
        target: wiregen#Timestamp
        httpHeader: X-Created
        timestampFormat: date-time
  example#PutItemOutput:
    type: structure
    members:
      - name: Status
        target: wiregen#Integer
        httpResponseCode: true
      - name: ETag
        target: wiregen#String
        httpHeader: ETag
      - name: Version
        target: wiregen#Long
      - name: Modified
        target: wiregen#Timestamp
        httpHeader: X-Modified
        timestampFormat: epoch-seconds
  example#StringMap:
    type: map
    key:
      target: wiregen#String
    value:
      target: wiregen#String
  example#TooBig:
    type: structure
    fault: client
    members:
      - name: message
        target: wiregen#String
      - name: Limit
        target: wiregen#Long
        httpHeader: X-Limit
  example#FetchDoc:
    type: operation
    http:
      method: GET
      uri: /docs/{Name}
    input: example#FetchDocInput
    output: example#FetchDocOutput
  example#FetchDocInput:
    type: structure
    members:
      - name: Name
        target: wiregen#String
        required: true
        httpLabel: true
  example#FetchDocOutput:
    type: structure
    members:
      - name: Content
        target: wiregen#Blob
        streaming: true
        httpPayload: true
`

func generate(t *testing.T, schema string) (string, string) {
	t.Helper()
	m, err := model.Load([]byte(schema))
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	arts, err := wiregen.Generate(m, restjson.New())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	ser, err := arts.Render("serializers")
	if err != nil {
		t.Fatalf("render serializers: %v", err)
	}
	deser, err := arts.Render("deserializers")
	if err != nil {
		t.Fatalf("render deserializers: %v", err)
	}
	return string(ser), string(deser)
}

func wantContains(t *testing.T, src string, subs ...string) {
	t.Helper()
	for _, sub := range subs {
		if !strings.Contains(src, sub) {
			t.Errorf("generated source missing %q\n%s", sub, src)
		}
	}
}

func TestSerializerBindsURIQueryAndHeaders(t *testing.T) {
	ser, _ := generate(t, storeSchema)
	wantContains(t, ser,
		"func serializeRestJsonPutItemRequest(v *types.PutItemInput, base *url.URL) (*http.Request, error)",
		`pathBuf.WriteString("/items")`,
		`q.Set("kind", "widget")`,
		`q.Set("region", `,
		"u.RawQuery = q.Encode()",
		`req, reqErr := http.NewRequest("PUT", u.String(), buf)`,
		`req.Header.Set("Content-Type", "application/json")`,
		`req.Header.Set("X-Trace", `,
	)
	// Required labels fail fast rather than emit a broken path.
	wantContains(t, ser, "is required to build the request path")
	// Prefix headers fan out one header per map key.
	wantContains(t, ser, `req.Header.Set("X-Meta-"+`)
	// Header timestamps default to http-date.
	wantContains(t, ser, "wiretime.FormatHTTPDate")
}

func TestSerializerKeepsDocumentMembersOutOfHeaders(t *testing.T) {
	ser, _ := generate(t, storeSchema)
	if strings.Contains(ser, `req.Header.Set("Title"`) {
		t.Fatalf("document member Title leaked into headers:\n%s", ser)
	}
	// Title still travels in the JSON body.
	wantContains(t, ser, `"Title"`)
}

func TestParserBindsStatusHeadersAndBody(t *testing.T) {
	_, deser := generate(t, storeSchema)
	wantContains(t, deser,
		"func parseRestJsonPutItemResponse(resp *http.Response) (*types.PutItemOutput, error)",
		"b.SetStatus(int32(resp.StatusCode))",
		`if hv := resp.Header.Get("ETag"); hv != "" {`,
		"jsondec.Decode(data)",
		"return b.Build()",
	)
}

func TestTimestampFormatOverrideBeatsLocationDefault(t *testing.T) {
	ser, deser := generate(t, storeSchema)
	// X-Expires keeps the http-date header default; X-Created's explicit
	// date-time format wins over it.
	wantContains(t, ser, "wiretime.FormatHTTPDate(", "wiretime.FormatDateTime(")
	wantContains(t, deser, "wiretime.ParseEpochSeconds(hv)")
}

func TestParserTagsDecodeFailuresWithLocation(t *testing.T) {
	_, deser := generate(t, storeSchema)
	wantContains(t, deser,
		`return nil, &apierr.UnhandledError{Location: "response body", Cause: readErr}`,
		`return nil, &apierr.UnhandledError{Location: "response body", Cause: rawErr}`,
		`&apierr.UnhandledError{Location: "header X-Modified"`,
	)
	// Typed error parsers tag their header bindings the same way.
	wantContains(t, deser, `&apierr.UnhandledError{Location: "header X-Limit"`)
}

func TestParserStreamsPayloadWithoutBuffering(t *testing.T) {
	_, deser := generate(t, storeSchema)
	start := strings.Index(deser, "func parseRestJsonFetchDocResponse")
	if start < 0 {
		t.Fatalf("FetchDoc parser missing:\n%s", deser)
	}
	end := strings.Index(deser[start:], "\n}\n")
	if end < 0 {
		t.Fatalf("FetchDoc parser not terminated")
	}
	fn := deser[start : start+end]
	if !strings.Contains(fn, "b.SetContent(resp.Body)") {
		t.Fatalf("streaming payload must pass resp.Body through:\n%s", fn)
	}
	if strings.Contains(fn, "io.ReadAll") {
		t.Fatalf("streaming payload must not buffer the body:\n%s", fn)
	}
}

const chatSchema = `
shapes:
  example#Chat:
    type: service
    version: "2024-01-01"
    protocol: restjson
    operations:
      - example#Converse
  example#Converse:
    type: operation
    http:
      method: POST
      uri: /converse
    input: example#ConverseInput
    output: example#ConverseOutput
  example#ConverseInput:
    type: structure
    members:
      - name: Session
        target: wiregen#String
      - name: Events
        target: example#ChatEvents
        eventStream: true
        httpPayload: true
  example#ConverseOutput:
    type: structure
    members:
      - name: Accepted
        target: wiregen#Boolean
      - name: Events
        target: example#ChatEvents
        eventStream: true
        httpPayload: true
  example#ChatEvents:
    type: union
    members:
      - name: text
        target: example#TextChunk
      - name: ping
        target: example#Ping
      - name: fault
        target: example#ChatFault
  example#TextChunk:
    type: structure
    members:
      - name: Body
        target: wiregen#String
  example#Ping:
    type: structure
  example#ChatFault:
    type: structure
    fault: server
    members:
      - name: message
        target: wiregen#String
`

func TestEventStreamRequestPumpsFramesThroughPipe(t *testing.T) {
	ser, _ := generate(t, chatSchema)
	wantContains(t, ser,
		"func serializeRestJsonConverseRequest(v *types.ConverseInput, base *url.URL, sign eventstream.SignFunc) (*http.Request, error)",
		"pr, pw := io.Pipe()",
		"pw.CloseWithError(serializeRestJsonConverseEventStream(v, sign, pw))",
		`req.Header.Set("Content-Type", "application/vnd.amazon.eventstream")`,
		"func serializeRestJsonConverseEventStream(v *types.ConverseInput, sign eventstream.SignFunc, w io.Writer) error",
		`initial.AddHeader(eventstream.HeaderEventType, eventstream.StringValue("initial-request"))`,
		"for ev := range v.Events {",
	)
}

func TestEventSerializerTagsVariantsAndExceptions(t *testing.T) {
	ser, _ := generate(t, chatSchema)
	wantContains(t, ser,
		"func serializeRestJsonChatEventsEvent(v types.ChatEvents) (*eventstream.Message, error)",
		`msg.AddHeader(eventstream.HeaderEventType, eventstream.StringValue("text"))`,
		`msg.AddHeader(eventstream.HeaderExceptionType, eventstream.StringValue("fault"))`,
		"msg.AddHeader(eventstream.HeaderMessageType, eventstream.StringValue(eventstream.MessageTypeException))",
	)
}

func TestEventStreamResponseFoldsInitialFrame(t *testing.T) {
	_, deser := generate(t, chatSchema)
	wantContains(t, deser,
		"dec := eventstream.NewDecoder(resp.Body)",
		`if et != nil && et.Str == "initial-response" {`,
		"dec.Unread(first)",
		"b.SetEvents(dec)",
	)
}

func TestEventDeserializerDispatchesOnFrameHeaders(t *testing.T) {
	_, deser := generate(t, chatSchema)
	wantContains(t, deser,
		"func deserializeRestJsonChatEventsEvent(msg *eventstream.Message) (types.ChatEvents, error)",
		"case eventstream.MessageTypeEvent:",
		"case eventstream.MessageTypeException:",
		"return &types.ChatEventsMemberText{Value: pv}, nil",
		"&apierr.GenericAPIError{Code: xt.Str}",
	)
}

func TestUnionBindsValueForDatalessVariants(t *testing.T) {
	ser, _ := generate(t, chatSchema)
	start := strings.Index(ser, "func serializeRestJsonPing")
	if start < 0 {
		t.Fatalf("empty-structure serializer missing:\n%s", ser)
	}
	end := strings.Index(ser[start:], "\n}\n")
	fn := ser[start : start+end]
	if !strings.Contains(fn, "_ = v") {
		t.Fatalf("empty structure must still bind its parameter:\n%s", fn)
	}
	// Union variants always bind the payload value, data or not.
	wantContains(t, ser, "av := uv.Value", "_ = av")
}

func TestTypedErrorParserAppliesHeaderBindings(t *testing.T) {
	_, deser := generate(t, storeSchema)
	start := strings.Index(deser, "func parseRestJsonTooBig(resp *http.Response, body []byte, msg string) error")
	if start < 0 {
		t.Fatalf("typed error parser missing:\n%s", deser)
	}
	fn := deser[start:]
	wantContains(t, fn,
		`if hv := resp.Header.Get("X-Limit"); hv != "" {`,
		"b.SetMessage(msg)",
	)
}
