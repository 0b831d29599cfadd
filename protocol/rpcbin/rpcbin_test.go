package rpcbin_test

import (
	"strings"
	"testing"

	"github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/rpcbin"
)

const ledgerSchema = `
shapes:
  example#Ledger:
    type: service
    version: "1"
    protocol: rpcbin
    operations:
      - example#PostEntry
  example#PostEntry:
    type: operation
    input: example#PostEntryInput
    output: example#PostEntryOutput
    errors:
      - example#Conflict
  example#PostEntryInput:
    type: structure
    members:
      - name: Account
        target: wiregen#String
        required: true
      - name: Amount
        target: wiregen#Long
      - name: At
        target: wiregen#Timestamp
      - name: Labels
        target: example#LabelMap
      - name: Lines
        target: example#LineList
      - name: Source
        target: example#Source
  example#PostEntryOutput:
    type: structure
    members:
      - name: EntryId
        target: wiregen#String
        required: true
  example#LabelMap:
    type: map
    key:
      target: wiregen#String
    value:
      target: wiregen#String
  example#LineList:
    type: list
    member:
      target: wiregen#Long
  example#Source:
    type: union
    members:
      - name: Manual
        target: wiregen#String
      - name: Import
        target: wiregen#String
  example#Conflict:
    type: structure
    fault: client
    members:
      - name: message
        target: wiregen#String
      - name: EntryId
        target: wiregen#String
`

func generate(t *testing.T) (string, string) {
	t.Helper()
	m, err := model.Load([]byte(ledgerSchema))
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	arts, err := wiregen.Generate(m, rpcbin.New())
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

func TestSerializerFramesRequest(t *testing.T) {
	ser, _ := generate(t)
	wantContains(t, ser,
		"func serializeRpcBinPostEntryRequest(v *types.PostEntryInput, base *url.URL) (*http.Request, error)",
		"bw := &bincodec.Writer{}",
		// A nil input still writes a structurally valid empty bitmap.
		"bw.ReserveFlags(6)",
		`req.Header.Set("Content-Type", "application/vnd.wiregen-rpcbin")`,
		`req.Header.Set("X-Wiregen-Target", "Ledger.PostEntry")`,
	)
}

func TestSerializerTracksPresenceBitmap(t *testing.T) {
	ser, _ := generate(t)
	wantContains(t, ser,
		"flags := bw.ReserveFlags(6)",
		"bw.SetFlag(flags, 0)",
		"bw.SetFlag(flags, 5)",
		"bw.WriteTime(",
	)
}

func TestSerializerFramesContainersAndUnions(t *testing.T) {
	ser, _ := generate(t)
	// Length-prefixed containers with sorted map keys.
	wantContains(t, ser,
		"bw.WriteUint32(uint32(len(",
		"sort.Strings(",
		"bw.WriteString(",
		"bw.WriteInt64(",
	)
	// Union variant tag is the member's declared index.
	wantContains(t, ser,
		"func serializeRpcBinSource(v types.Source, bw *bincodec.Writer) error",
		"case *types.SourceMemberManual:",
		"bw.WriteUint16(0)",
		"case *types.SourceMemberImport:",
		"bw.WriteUint16(1)",
	)
}

func TestParserReadsBitmapAndFields(t *testing.T) {
	_, deser := generate(t)
	wantContains(t, deser,
		"func parseRpcBinPostEntryResponse(resp *http.Response) (*types.PostEntryOutput, error)",
		"br := bincodec.NewReader(data)",
		"br.ReadFlags(1)",
		"flags.Has(0)",
		"b.SetEntryId(",
	)
}

func TestParserTagsBodyDecodeFailures(t *testing.T) {
	_, deser := generate(t)
	wantContains(t, deser,
		`return nil, &apierr.UnhandledError{Location: "response body", Cause: readErr}`,
		`return nil, &apierr.UnhandledError{Location: "response body", Cause: outErr}`,
	)
}

func TestTypedErrorParserSkipsEnvelope(t *testing.T) {
	_, deser := generate(t)
	start := strings.Index(deser, "func parseRpcBinConflict(resp *http.Response, body []byte, msg string) error")
	if start < 0 {
		t.Fatalf("typed error parser missing:\n%s", deser)
	}
	fn := deser[start:]
	wantContains(t, fn,
		"if _, err := br.ReadString(); err != nil {",
		"b.SetMessage(msg)",
		"if br.Remaining() > 0 {",
	)
}

func TestErrorEnvelopeDegradesGracefully(t *testing.T) {
	_, deser := generate(t)
	wantContains(t, deser,
		"func parseRpcBinErrorEnvelope(resp *http.Response, body []byte) (string, string)",
		`return "", ""`,
		`return apierr.SanitizeCode(code), ""`,
		"return apierr.SanitizeCode(code), msg",
	)
}
