package binding

import (
	"testing"

	"github.com/wiregen/wiregen/model"
)

func mustModel(t *testing.T, schema string) *model.Model {
	t.Helper()
	m, err := model.Load([]byte(schema))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return m
}

const restSchema = `
shapes:
  example#PutThing:
    type: operation
    http:
      method: PUT
      uri: /things/{Id}/parts/{Path+}?kind=widget
      code: 201
    input: example#PutThingInput
    output: example#PutThingOutput
  example#PutThingInput:
    type: structure
    members:
      - name: Id
        target: wiregen#String
        required: true
        httpLabel: true
      - name: Path
        target: wiregen#String
        required: true
        httpLabel: true
      - name: Revision
        target: wiregen#String
        httpQuery: revision
      - name: Trace
        target: wiregen#String
        httpHeader: X-Trace-Id
      - name: Meta
        target: example#StringMap
        httpPrefixHeaders: X-Meta-
      - name: Title
        target: wiregen#String
  example#PutThingOutput:
    type: structure
    members:
      - name: Status
        target: wiregen#Integer
        httpResponseCode: true
      - name: ETag
        target: wiregen#String
        httpHeader: ETag
      - name: Title
        target: wiregen#String
  example#StringMap:
    type: map
    value:
      name: value
      target: wiregen#String
`

func TestResolveLocations(t *testing.T) {
	m := mustModel(t, restSchema)
	op, err := Resolve(m, m.Expect("example#PutThing"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if op.Method != "PUT" || op.Status != 201 {
		t.Fatalf("method/status wrong: %s %d", op.Method, op.Status)
	}
	if len(op.Path) != 4 {
		t.Fatalf("want 4 path segments, got %v", op.Path)
	}
	if op.Path[1].Label != "Id" || op.Path[3].Label != "Path" || !op.Path[3].Greedy {
		t.Fatalf("labels wrong: %v", op.Path)
	}
	if len(op.Query) != 1 || op.Query[0] != [2]string{"kind", "widget"} {
		t.Fatalf("static query wrong: %v", op.Query)
	}

	want := map[string]Location{
		"Id":       LocationLabel,
		"Path":     LocationLabel,
		"Revision": LocationQuery,
		"Trace":    LocationHeader,
		"Meta":     LocationPrefixHeaders,
		"Title":    LocationDocument,
	}
	for _, d := range op.Input {
		if want[d.Member.Name] != d.Location {
			t.Fatalf("member %s bound to %v, want %v", d.Member.Name, d.Location, want[d.Member.Name])
		}
	}
	out := op.Output
	if PayloadDescriptor(out) != nil {
		t.Fatalf("output should have no payload binding")
	}
	docs := DocumentDescriptors(out)
	if len(docs) != 1 || docs[0].Member.Name != "Title" {
		t.Fatalf("output document members wrong: %v", docs)
	}
}

func TestResolveRejectsUnboundLabel(t *testing.T) {
	m := mustModel(t, `
shapes:
  example#Op:
    type: operation
    http:
      method: GET
      uri: /x/{Missing}
    input: example#In
  example#In:
    type: structure
    members:
      - name: Other
        target: wiregen#String
`)
	if _, err := Resolve(m, m.Expect("example#Op")); err == nil {
		t.Fatalf("want unbound-label error")
	}
}

func TestResolveRejectsPayloadDocumentMix(t *testing.T) {
	m := mustModel(t, `
shapes:
  example#Op:
    type: operation
    http:
      method: POST
      uri: /x
    input: example#In
  example#In:
    type: structure
    members:
      - name: Body
        target: wiregen#Blob
        httpPayload: true
      - name: Extra
        target: wiregen#String
`)
	if _, err := Resolve(m, m.Expect("example#Op")); err == nil {
		t.Fatalf("want payload/document mix error")
	}
}

func TestResolveAllowsDocumentsBesideEventStreamPayload(t *testing.T) {
	m := mustModel(t, `
shapes:
  example#Op:
    type: operation
    http:
      method: POST
      uri: /x
    input: example#In
  example#In:
    type: structure
    members:
      - name: Session
        target: wiregen#String
      - name: Events
        target: example#Events
        eventStream: true
        httpPayload: true
  example#Events:
    type: union
    members:
      - name: chunk
        target: wiregen#Blob
`)
	op, err := Resolve(m, m.Expect("example#Op"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	p := PayloadDescriptor(op.Input)
	if p == nil || p.Member.Name != "Events" {
		t.Fatalf("event stream member not payload-bound: %v", op.Input)
	}
	docs := DocumentDescriptors(op.Input)
	if len(docs) != 1 || docs[0].Member.Name != "Session" {
		t.Fatalf("initial-frame document members wrong: %v", docs)
	}
}

func TestResolveRejectsQueryOnOutput(t *testing.T) {
	m := mustModel(t, `
shapes:
  example#Op:
    type: operation
    http:
      method: GET
      uri: /x
    output: example#Out
  example#Out:
    type: structure
    members:
      - name: Q
        target: wiregen#String
        httpQuery: q
`)
	if _, err := Resolve(m, m.Expect("example#Op")); err == nil {
		t.Fatalf("want query-on-output error")
	}
}

func TestResolveRequiresHTTPTrait(t *testing.T) {
	m := mustModel(t, `
shapes:
  example#Op:
    type: operation
`)
	if _, err := Resolve(m, m.Expect("example#Op")); err == nil {
		t.Fatalf("want missing-http-trait error")
	}
}

func TestSynthesizeBindsEverythingToDocument(t *testing.T) {
	m := mustModel(t, `
shapes:
  example#Op:
    type: operation
    input: example#In
    errors:
      - example#Oops
  example#In:
    type: structure
    members:
      - name: A
        target: wiregen#String
        wireName: a_field
      - name: B
        target: wiregen#Integer
  example#Oops:
    type: structure
    fault: client
    members:
      - name: message
        target: wiregen#String
`)
	op, err := Synthesize(m, m.Expect("example#Op"))
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if op.Method != "POST" || op.Status != 200 {
		t.Fatalf("synthesized method/status wrong: %s %d", op.Method, op.Status)
	}
	if len(op.Input) != 2 || op.Input[0].Location != LocationDocument || op.Input[0].LocationName != "a_field" {
		t.Fatalf("synthesized input wrong: %v", op.Input)
	}
	if len(op.Errors["example#Oops"]) != 1 {
		t.Fatalf("synthesized errors wrong: %v", op.Errors)
	}
}

func TestContentTypeForPayloads(t *testing.T) {
	m := mustModel(t, `
shapes:
  example#Op:
    type: operation
    http:
      method: POST
      uri: /x
    input: example#In
    output: example#Out
  example#In:
    type: structure
    members:
      - name: Body
        target: wiregen#String
        httpPayload: true
  example#Out:
    type: structure
    members:
      - name: Data
        target: wiregen#Blob
        httpPayload: true
`)
	op, err := Resolve(m, m.Expect("example#Op"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ct := RequestContentType(m, op, "application/json"); ct != "text/plain" {
		t.Fatalf("string payload request content type: %q", ct)
	}
	// Buffered blob responses keep the protocol default; only streaming
	// blobs force octet-stream.
	if ct := ResponseContentType(m, op, "application/json"); ct != "application/json" {
		t.Fatalf("blob payload response content type: %q", ct)
	}
}
