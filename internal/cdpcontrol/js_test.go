package cdpcontrol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestJSStringAndJSONHelpers(t *testing.T) {
	if got := jsString("hello\nworld"); got != "\"hello\\nworld\"" {
		t.Fatalf("jsString = %q, want %q", got, "\"hello\\nworld\"")
	}
	if got := jsString(`</script><script>alert(1)</script>`); strings.Contains(got, "<script>") {
		t.Fatalf("jsString must escape markup, got %s", got)
	}

	got := jsJSON([]string{"color", "border-radius"})
	var props []string
	if err := json.Unmarshal([]byte(got), &props); err != nil {
		t.Fatalf("jsJSON returned invalid JSON: %v", err)
	}
	if len(props) != 2 {
		t.Fatalf("jsJSON decoded %d props, want 2", len(props))
	}
}

func TestJSEvalWrappers(t *testing.T) {
	syncExpr := wrapJSEval("return 1;")
	if !strings.HasPrefix(syncExpr, "(function(){\n") {
		t.Fatalf("unexpected sync wrapper: %s", syncExpr)
	}
	if !strings.Contains(syncExpr, "function __fpVisible") {
		t.Fatalf("wrapper lost prelude: %s", syncExpr)
	}
	if !strings.Contains(syncExpr, `error_code:"EVAL_FAILURE"`) {
		t.Fatalf("wrapper lost catch envelope: %s", syncExpr)
	}

	asyncExpr := wrapJSEvalAsync("await Promise.resolve(1);")
	if !strings.HasPrefix(asyncExpr, "(async function(){\n") {
		t.Fatalf("unexpected async wrapper: %s", asyncExpr)
	}
	if !strings.Contains(asyncExpr, "await Promise.resolve(1);") {
		t.Fatalf("async wrapper lost body: %s", asyncExpr)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	t.Run("ok_with_data", func(t *testing.T) {
		var info FieldInfo
		raw := `{"ok":true,"data":{"value":"a@b.co","native_valid":true,"validation_message":""}}`
		if err := decodeEnvelope(raw, &info); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if info.Value != "a@b.co" || !info.NativeValid {
			t.Fatalf("unexpected info %+v", info)
		}
	})

	t.Run("null_data_leaves_nil_pointer", func(t *testing.T) {
		box := &Box{X: 1}
		if err := decodeEnvelope(`{"ok":true,"data":null}`, &box); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if box != nil {
			t.Fatalf("expected nil box, got %+v", box)
		}
	})

	t.Run("error_code_propagates", func(t *testing.T) {
		err := decodeEnvelope(`{"ok":false,"error_code":"ELEMENT_NOT_FOUND","error_message":"no element matches #email"}`, nil)
		if CodeOf(err) != CodeElementNotFound {
			t.Fatalf("expected ELEMENT_NOT_FOUND, got %v", err)
		}
	})

	t.Run("missing_code_defaults", func(t *testing.T) {
		err := decodeEnvelope(`{"ok":false,"error_message":"x"}`, nil)
		if CodeOf(err) != CodeEvalFailure {
			t.Fatalf("expected EVAL_FAILURE, got %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if err := decodeEnvelope("undefined", nil); CodeOf(err) != CodeEvalFailure {
			t.Fatalf("expected EVAL_FAILURE, got %v", err)
		}
	})

	t.Run("wrong_data_shape", func(t *testing.T) {
		var n int
		if err := decodeEnvelope(`{"ok":true,"data":"seven"}`, &n); CodeOf(err) != CodeEvalFailure {
			t.Fatalf("expected EVAL_FAILURE, got %v", err)
		}
	})
}

func TestScriptsEmbedArguments(t *testing.T) {
	fill := jsFill("#email", `"quoted" value`)
	if !strings.Contains(fill, `"#email"`) || !strings.Contains(fill, `"\"quoted\" value"`) {
		t.Fatalf("fill script lost its arguments: %s", fill)
	}
	if !strings.Contains(fill, `dispatchEvent(new Event("input"`) {
		t.Fatal("fill must fire input events")
	}

	mark := jsMarkByRole(RoleQuery{Role: "Button", Name: "Надіслати", Scope: "form:has(#user_name)"}, "fp1")
	for _, want := range []string{`input[type=\"submit\"]`, `"Надіслати"`, `"form:has(#user_name)"`, Marker} {
		if !strings.Contains(mark, want) {
			t.Fatalf("mark script missing %s", want)
		}
	}
	if !strings.Contains(mark, `"fp1"`) {
		t.Fatal("mark script lost its prefix")
	}

	if s := jsMarkByRole(RoleQuery{Role: "region"}, "fp2"); !strings.Contains(s, `querySelectorAll("*")`) {
		t.Fatal("unknown roles must scan every element")
	}
}
