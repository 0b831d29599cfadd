package xmlcodec

import (
	"testing"
)

func TestWriterEmitsInCallOrder(t *testing.T) {
	w := NewWriter()
	w.Start("PutBucketRequest", Attr{Name: "Id", Value: "a&b"})
	w.Element("Name", "logs")
	w.Start("Grants")
	w.Element("member", "alice")
	w.Element("member", "bob")
	w.End("Grants")
	w.End("PutBucketRequest")

	want := `<PutBucketRequest Id="a&amp;b"><Name>logs</Name><Grants><member>alice</member><member>bob</member></Grants></PutBucketRequest>`
	if got := string(w.Bytes()); got != want {
		t.Fatalf("got %s\nwant %s", got, want)
	}
}

func TestTextEscaping(t *testing.T) {
	w := NewWriter()
	w.Element("v", "<a> & \"b\"")
	if got := string(w.Bytes()); got != "<v>&lt;a&gt; &amp; &#34;b&#34;</v>" {
		t.Fatalf("got %s", got)
	}
}

func TestParseTree(t *testing.T) {
	root, err := Parse([]byte(`
<Response xmlns="http://example.com/doc">
  <Item kind="x">
    <Name>first</Name>
  </Item>
  <Item><Name>second</Name></Item>
  <Count>2</Count>
</Response>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if root.Name != "Response" {
		t.Fatalf("root = %q", root.Name)
	}
	items := root.ChildAll("Item")
	if len(items) != 2 {
		t.Fatalf("want 2 items, got %d", len(items))
	}
	if items[0].Attrs["kind"] != "x" {
		t.Fatalf("attrs = %v", items[0].Attrs)
	}
	if name, ok := items[1].ChildText("Name"); !ok || name != "second" {
		t.Fatalf("ChildText = %q, %v", name, ok)
	}
	if count, _ := root.ChildText("Count"); count != "2" {
		t.Fatalf("count = %q", count)
	}
	if root.Child("Missing") != nil {
		t.Fatalf("missing child must be nil")
	}
	if _, ok := root.ChildText("Missing"); ok {
		t.Fatalf("missing child text must report absent")
	}
}

func TestParseRejectsMalformedDocuments(t *testing.T) {
	for _, in := range []string{
		"",
		"<a><b></a>",
		"<a></a><b></b>",
		"<a>",
	} {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Parse(%q) should fail", in)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	w := NewWriter()
	w.Start("Error")
	w.Element("Code", "ns#Throttled")
	w.Element("Message", "slow <down>")
	w.End("Error")

	root, err := Parse(w.Bytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if code, _ := root.ChildText("Code"); code != "ns#Throttled" {
		t.Fatalf("code = %q", code)
	}
	if msg, _ := root.ChildText("Message"); msg != "slow <down>" {
		t.Fatalf("msg = %q", msg)
	}
}
