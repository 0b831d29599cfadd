package awsjson_test

import (
	"strings"
	"testing"

	"github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/awsjson"
)

const weatherSchema = `
shapes:
  example#Weather:
    type: service
    version: "2024-01-01"
    protocol: awsjson1.1
    operations:
      - example#GetForecast
      - example#Ping
  example#GetForecast:
    type: operation
    input: example#GetForecastInput
    output: example#GetForecastOutput
    errors:
      - example#NoSuchCity
  example#GetForecastInput:
    type: structure
    members:
      - name: CityId
        target: wiregen#String
        required: true
      - name: Since
        target: wiregen#Timestamp
  example#GetForecastOutput:
    type: structure
    members:
      - name: Chance
        target: wiregen#Float
  example#NoSuchCity:
    type: structure
    fault: client
    errorCode: NotFound
    members:
      - name: message
        target: wiregen#String
  example#Ping:
    type: operation
`

func generate(t *testing.T, schema string, p wiregen.Protocol) (string, string) {
	t.Helper()
	m, err := model.Load([]byte(schema))
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	arts, err := wiregen.Generate(m, p)
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

func TestSerializerTargetsServiceRoot(t *testing.T) {
	ser, _ := generate(t, weatherSchema, awsjson.New("1.1"))
	wantContains(t, ser,
		"func serializeAwsJsonGetForecastRequest(v *types.GetForecastInput, base *url.URL) (*http.Request, error)",
		`u.Path = strings.TrimSuffix(u.Path, "/") + "/"`,
		`req.Header.Set("Content-Type", "application/x-amz-json-1.1")`,
		`req.Header.Set("X-Amz-Target", "Weather.GetForecast")`,
	)
	// Timestamps ride the JSON body as epoch seconds by default.
	wantContains(t, ser, "wiretime.FormatEpochSeconds")
}

func TestSerializerEmitsEmptyDocumentBodies(t *testing.T) {
	ser, _ := generate(t, weatherSchema, awsjson.New("1.0"))
	// Ping has no input at all; GetForecast has one that may be nil.
	wantContains(t, ser,
		`bytes.NewReader([]byte("{}"))`,
		`buf.WriteString("{}")`,
		`req.Header.Set("Content-Type", "application/x-amz-json-1.0")`,
	)
}

func TestParserDispatchesDeclaredErrors(t *testing.T) {
	_, deser := generate(t, weatherSchema, awsjson.New("1.1"))
	wantContains(t, deser,
		"func parseAwsJsonGetForecastResponse(resp *http.Response) (*types.GetForecastOutput, error)",
		"func parseAwsJsonGetForecastError(resp *http.Response) error",
		"code, msg := parseAwsJsonErrorEnvelope(resp, body)",
		`case "NotFound":`,
		"&apierr.GenericAPIError{Code: code, Message: msg, Status: resp.StatusCode}",
	)
	// The typed parser presets the envelope message before decoding the body
	// so a modeled message field can override it.
	wantContains(t, deser, "b.SetMessage(msg)")
}

func TestParserTagsBodyDecodeFailures(t *testing.T) {
	_, deser := generate(t, weatherSchema, awsjson.New("1.1"))
	wantContains(t, deser,
		`return nil, &apierr.UnhandledError{Location: "response body", Cause: readErr}`,
		`return nil, &apierr.UnhandledError{Location: "response body", Cause: rawErr}`,
	)
}

func TestParserDrainsBodilessResponses(t *testing.T) {
	_, deser := generate(t, weatherSchema, awsjson.New("1.1"))
	wantContains(t, deser,
		"func parseAwsJsonPingResponse(resp *http.Response) error",
		"_, _ = io.Copy(io.Discard, resp.Body)",
	)
}

func TestStreamingBlobInputRejected(t *testing.T) {
	const schema = `
shapes:
  example#Files:
    type: service
    version: "1"
    protocol: awsjson1.1
    operations:
      - example#Upload
  example#Upload:
    type: operation
    input: example#UploadInput
  example#UploadInput:
    type: structure
    members:
      - name: Data
        target: wiregen#Blob
        streaming: true
`
	m, err := model.Load([]byte(schema))
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	_, err = wiregen.Generate(m, awsjson.New("1.1"))
	iss, ok := wiregen.AsIssues(err)
	if !ok {
		t.Fatalf("want issues, got %v", err)
	}
	found := false
	for _, it := range iss {
		if strings.Contains(it.Message, "streaming blob") {
			found = true
		}
		if inner, ok := wiregen.AsIssues(it.Cause); ok {
			for _, in := range inner {
				if strings.Contains(in.Message, "streaming blob") {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatalf("missing streaming-blob rejection: %v", iss)
	}
}
