package wiregen_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/awsjson"
)

const driverSchema = `
shapes:
  example#Svc:
    type: service
    version: "2024-01-01"
    protocol: awsjson1.1
    operations:
      - example#GoodOp
      - example#BadOp
  example#GoodOp:
    type: operation
    input: example#GoodInput
    output: example#GoodOutput
  example#GoodInput:
    type: structure
    members:
      - name: Name
        target: wiregen#String
  example#GoodOutput:
    type: structure
    members:
      - name: Count
        target: wiregen#Integer
  example#BadOp:
    type: operation
    input: example#BadInput
  example#BadInput:
    type: structure
    members:
      - name: Amount
        target: example#Precise
  example#Precise:
    type: bigDecimal
`

func loadDriverModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.Load([]byte(driverSchema))
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	return m
}

func TestGenerateIsolatesFailedOperations(t *testing.T) {
	m := loadDriverModel(t)
	arts, err := wiregen.Generate(m, awsjson.New("1.1"))
	if err == nil {
		t.Fatalf("want issues from BadOp")
	}
	iss, ok := wiregen.AsIssues(err)
	if !ok {
		t.Fatalf("want Issues, got %T: %v", err, err)
	}
	foundBad := false
	for _, it := range iss {
		if it.Code == wiregen.CodeGeneratorFailure {
			if inner, ok := wiregen.AsIssues(it.Cause); ok && inner[0].Code == wiregen.CodeUnsupportedFeature {
				foundBad = true
			}
		}
		if it.Shape == "example#GoodOp" {
			t.Fatalf("GoodOp should not have issues: %+v", it)
		}
	}
	if !foundBad {
		t.Fatalf("missing unsupported_feature issue: %v", iss)
	}
	if arts == nil {
		t.Fatalf("artifacts must survive partial failure")
	}
	names := map[string]bool{}
	for _, fn := range arts.Modules["serializers"] {
		names[fn.Name] = true
	}
	if !names["serializeAwsJsonGoodOpRequest"] {
		t.Fatalf("GoodOp serializer missing from %v", names)
	}
	if names["serializeAwsJsonBadOpRequest"] {
		t.Fatalf("BadOp serializer should be dropped")
	}
}

func TestGenerateIsReproducible(t *testing.T) {
	m := loadDriverModel(t)
	render := func() string {
		arts, err := wiregen.Generate(m, awsjson.New("1.1"))
		if arts == nil {
			t.Fatalf("no artifacts: %v", err)
		}
		src, rerr := arts.Render("serializers")
		if rerr != nil {
			t.Fatalf("render: %v", rerr)
		}
		return string(src)
	}
	if a, b := render(), render(); a != b {
		t.Fatalf("two runs produced different output:\n--- a ---\n%s\n--- b ---\n%s", a, b)
	}
}

func TestGenerateOperationRejectsNonOperations(t *testing.T) {
	m := loadDriverModel(t)
	st := &wiregen.GenState{
		Model:    m,
		Registry: wiregen.NewRegistry(),
		Symbols:  wiregen.NewDefaultSymbols(m),
		Log:      zap.NewNop(),
	}
	p := awsjson.New("1.1")

	err := wiregen.GenerateOperation(st, p, model.ShapeID("example#GoodInput"))
	iss, ok := wiregen.AsIssues(err)
	if !ok || iss[0].Code != wiregen.CodeUnsupportedShape {
		t.Fatalf("want unsupported_shape, got %v", err)
	}

	err = wiregen.GenerateOperation(st, p, model.ShapeID("example#Missing"))
	iss, ok = wiregen.AsIssues(err)
	if !ok || iss[0].Code != wiregen.CodeUnknownShape {
		t.Fatalf("want unknown_shape, got %v", err)
	}
}
