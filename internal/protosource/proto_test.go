package protosource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"

	"github.com/funvibe/dispatch/internal/catalog"
)

const echoProto = `syntax = "proto3";
package echo.v1;

message EchoRequest {
  string text = 1;
  int32 repeat = 2;
}

message EchoResponse {
  string text = 1;
}

service EchoService {
  rpc Echo(EchoRequest) returns (EchoResponse);
  rpc Watch(EchoRequest) returns (stream EchoResponse);
}
`

func writeEchoProto(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "echo.proto"), []byte(echoProto), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func loadEcho(t *testing.T) (*catalog.Registry, *Loader) {
	t.Helper()
	reg := catalog.NewRegistry()
	l := &Loader{ImportPaths: []string{writeEchoProto(t)}}
	if err := l.LoadProto(reg, "echo.proto"); err != nil {
		t.Fatalf("LoadProto failed: %v", err)
	}
	return reg, l
}

func TestLoadProtoRegistersMessages(t *testing.T) {
	reg, _ := loadEcho(t)

	req, ok := reg.Lookup("echo.v1.EchoRequest")
	if !ok {
		t.Fatalf("EchoRequest not registered, have %v", reg.Names())
	}
	if req.Base != catalog.Object {
		t.Errorf("message base = %v", req.Base)
	}

	methods := reg.Methods(req)
	if len(methods) != 1 || !methods[0].IsConstructor {
		t.Fatalf("message methods = %+v", methods)
	}
	out, err := methods[0].Invoke(nil, nil, nil)
	if err != nil {
		t.Fatalf("constructor failed: %v", err)
	}
	if m, ok := out.(map[string]any); !ok || len(m) != 0 {
		t.Errorf("constructor result = %#v, want empty field map", out)
	}
}

func TestLoadProtoRegistersUnaryService(t *testing.T) {
	reg, _ := loadEcho(t)

	svc, ok := reg.Lookup("echo.v1.EchoService")
	if !ok {
		t.Fatalf("EchoService not registered, have %v", reg.Names())
	}
	methods := reg.Methods(svc)
	// The streaming Watch RPC has no single-request call shape.
	if len(methods) != 1 {
		t.Fatalf("service methods = %d, want 1 (streaming excluded)", len(methods))
	}
	echo := methods[0]
	if echo.Name != "Echo" || !echo.IsStatic || !echo.IsPublic {
		t.Errorf("Echo = %+v", echo)
	}
	if len(echo.Params) != 1 || echo.Params[0].Type.Name != "echo.v1.EchoRequest" {
		t.Errorf("Echo params = %+v", echo.Params)
	}
	if echo.Return == nil || echo.Return.Name != "echo.v1.EchoResponse" {
		t.Errorf("Echo return = %v", echo.Return)
	}
	if len(echo.Attributes) != 1 || echo.Attributes[0] != "proto.unary" {
		t.Errorf("Echo attributes = %v", echo.Attributes)
	}
}

func TestRPCWithoutConnectionFails(t *testing.T) {
	reg, _ := loadEcho(t)
	svc, _ := reg.Lookup("echo.v1.EchoService")
	echo := reg.Methods(svc)[0]

	_, err := echo.Invoke(nil, nil, []any{map[string]any{"text": "hi"}})
	if err == nil || !strings.Contains(err.Error(), "no client connection") {
		t.Errorf("invoking without a connection must fail with a clear error, got %v", err)
	}
}

func TestDescriptorsAreShared(t *testing.T) {
	reg, l := loadEcho(t)

	// The service parameter descriptor and the registered message descriptor
	// are the same object, so assignability checks line up.
	req, _ := reg.Lookup("echo.v1.EchoRequest")
	svc, _ := reg.Lookup("echo.v1.EchoService")
	if reg.Methods(svc)[0].Params[0].Type != req {
		t.Errorf("service input type must reuse the message descriptor")
	}
	if l.messages["echo.v1.EchoRequest"] != req {
		t.Errorf("loader cache out of sync with the registry")
	}
}

func TestSetFieldsCoercion(t *testing.T) {
	dir := writeEchoProto(t)
	parser := protoparse.Parser{ImportPaths: []string{dir}}
	fds, err := parser.ParseFiles("echo.proto")
	if err != nil {
		t.Fatalf("ParseFiles failed: %v", err)
	}
	md := fds[0].FindMessage("echo.v1.EchoRequest")
	if md == nil {
		t.Fatal("EchoRequest descriptor missing")
	}

	msg := dynamic.NewMessage(md)
	// JSON decoding yields float64 for numbers; the int32 field takes it
	// after coercion.
	if err := setFields(msg, md, map[string]any{"text": "hi", "repeat": float64(3)}); err != nil {
		t.Fatalf("setFields failed: %v", err)
	}
	if got := msg.GetFieldByName("repeat"); got != int32(3) {
		t.Errorf("repeat = %v (%T), want int32(3)", got, got)
	}
	if got := msg.GetFieldByName("text"); got != "hi" {
		t.Errorf("text = %v", got)
	}

	if err := setFields(msg, md, map[string]any{"nope": 1}); err == nil {
		t.Errorf("an unknown field must be rejected")
	}

	round := messageToMap(msg, md)
	if round["text"] != "hi" || round["repeat"] != int32(3) {
		t.Errorf("messageToMap = %#v", round)
	}
}
