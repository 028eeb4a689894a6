package envelope

import (
	"encoding/json"
	"reflect"
	"testing"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("json.Unmarshal(%s) error = %v", s, err)
	}
	return v
}

func TestNormalize_PlainEnvelope(t *testing.T) {
	in := decode(t, `{"Data":{"id":1},"Message":"ok","Success":true,"StatusCode":200}`)
	got := Normalize(in)
	want := decode(t, `{"data":{"id":1},"message":"ok","success":true,"statusCode":200}`)
	if !equalJSON(t, got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

func TestNormalize_PagedEnvelope(t *testing.T) {
	in := decode(t, `{"Data":[{"id":1},{"id":2}],"MetaData":{"TotalItems":25,"CurrentPage":2,"PageSize":10,"TotalPages":3,"HasNext":true,"HasPrev":true},"Success":true,"StatusCode":200}`)
	got := Normalize(in)
	want := decode(t, `{"data":{"items":[{"id":1},{"id":2}],"pageIndex":2,"pageSize":10,"totalItems":25,"totalPages":3,"hasPreviousPage":true,"hasNextPage":true},"message":"","success":true,"statusCode":200}`)
	if !equalJSON(t, got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

func TestNormalize_CamelCaseMetaFallback(t *testing.T) {
	in := decode(t, `{"Data":[1,2,3],"MetaData":{"totalItems":3,"currentPage":1,"pageSize":3,"hasNext":false}}`)
	data := Normalize(in).(map[string]any)["data"].(map[string]any)
	if data["totalItems"] != 3 || data["pageIndex"] != 1 || data["pageSize"] != 3 {
		t.Errorf("paged fields = %v", data)
	}
	if data["totalPages"] != 1 {
		t.Errorf("totalPages = %v, want computed 1", data["totalPages"])
	}
}

func TestNormalize_MissingMetaDefaults(t *testing.T) {
	in := decode(t, `{"Data":[],"MetaData":{}}`)
	data := Normalize(in).(map[string]any)["data"].(map[string]any)
	if data["totalItems"] != 0 {
		t.Errorf("totalItems = %v, want 0", data["totalItems"])
	}
	if data["pageIndex"] != 1 {
		t.Errorf("pageIndex = %v, want 1", data["pageIndex"])
	}
	if data["pageSize"] != 1 {
		t.Errorf("pageSize = %v, want 1", data["pageSize"])
	}
	if data["totalPages"] != 0 {
		t.Errorf("totalPages = %v, want 0", data["totalPages"])
	}
	if data["hasNextPage"] != false || data["hasPreviousPage"] != false {
		t.Errorf("flags = %v/%v, want false/false", data["hasPreviousPage"], data["hasNextPage"])
	}
}

func TestNormalize_LowercaseDataFallback(t *testing.T) {
	in := decode(t, `{"data":{"x":1},"Success":true}`)
	out := Normalize(in).(map[string]any)
	if !reflect.DeepEqual(out["data"], map[string]any{"x": float64(1)}) {
		t.Errorf("data = %v, want fallback to lowercase data", out["data"])
	}
}

func TestNormalize_NonEnvelopeIsDeepCopy(t *testing.T) {
	in := decode(t, `{"foo":{"bar":[1]}}`)
	out := Normalize(in)
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("Normalize() = %v, want structural equality with input", out)
	}
	out.(map[string]any)["foo"].(map[string]any)["bar"] = "changed"
	if in.(map[string]any)["foo"].(map[string]any)["bar"] == "changed" {
		t.Error("Normalize() result shares memory with its input")
	}
}

func TestNormalize_ScalarsAndNil(t *testing.T) {
	for _, in := range []any{nil, "text", float64(3), true, []any{float64(1)}} {
		if got := Normalize(in); !reflect.DeepEqual(got, in) {
			t.Errorf("Normalize(%v) = %v, want unchanged", in, got)
		}
	}
}

func TestNormalize_ExtraKeysPreserved(t *testing.T) {
	in := decode(t, `{"Data":null,"Success":false,"Message":"boom","Errors":["a"],"traceId":"t-1"}`)
	out := Normalize(in).(map[string]any)
	if out["traceId"] != "t-1" {
		t.Errorf("traceId = %v, want t-1", out["traceId"])
	}
	if !reflect.DeepEqual(out["Errors"], []any{"a"}) {
		t.Errorf("Errors = %v, want [a]", out["Errors"])
	}
	for _, k := range []string{"Data", "Message", "Success"} {
		if _, ok := out[k]; ok {
			t.Errorf("consumed key %q leaked into output", k)
		}
	}
}

func TestNormalize_CamelCaseMetaDataIsCopied(t *testing.T) {
	in := decode(t, `{"Data":{"id":1},"Success":true,"metaData":{"source":"cache"}}`)
	out := Normalize(in).(map[string]any)
	if !reflect.DeepEqual(out["metaData"], map[string]any{"source": "cache"}) {
		t.Errorf("metaData = %v, want it copied through", out["metaData"])
	}
	if _, ok := out["MetaData"]; ok {
		t.Error("MetaData should not appear in the output")
	}
}

func TestNormalize_MetaDataNotObject(t *testing.T) {
	in := decode(t, `{"Data":[1,2],"MetaData":"oops","Success":true}`)
	out := Normalize(in).(map[string]any)
	if !reflect.DeepEqual(out["data"], []any{float64(1), float64(2)}) {
		t.Errorf("data = %v, want the array passed through", out["data"])
	}
}

func TestNormalize_NullDataWithMeta(t *testing.T) {
	in := decode(t, `{"Data":null,"MetaData":{"TotalItems":0,"CurrentPage":1,"PageSize":10},"Success":true}`)
	data, ok := Normalize(in).(map[string]any)["data"].(map[string]any)
	if !ok {
		t.Fatal("data should be a paged result")
	}
	if items := data["items"].([]any); len(items) != 0 {
		t.Errorf("items = %v, want empty", items)
	}
	if data["pageSize"] != 10 {
		t.Errorf("pageSize = %v, want 10", data["pageSize"])
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := decode(t, `{"Data":[{"id":1}],"MetaData":{"TotalItems":1},"Success":true}`)
	before := decode(t, `{"Data":[{"id":1}],"MetaData":{"TotalItems":1},"Success":true}`)
	out := Normalize(in).(map[string]any)
	out["data"].(map[string]any)["items"].([]any)[0].(map[string]any)["id"] = 99
	if !reflect.DeepEqual(in, before) {
		t.Errorf("input mutated: %v", in)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := decode(t, `{"Data":[{"id":1}],"MetaData":{"TotalItems":1},"Success":true,"StatusCode":200}`)
	once := Normalize(in)
	twice := Normalize(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Normalize(Normalize(x)) = %v, want %v", twice, once)
	}
}

func TestIsEnvelope(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{`{"Data":1}`, true},
		{`{"Message":"x"}`, true},
		{`{"Success":false}`, true},
		{`{"StatusCode":500}`, true},
		{`{"data":1}`, false},
		{`[1]`, false},
		{`null`, false},
	}
	for _, tt := range tests {
		if got := IsEnvelope(decode(t, tt.body)); got != tt.want {
			t.Errorf("IsEnvelope(%s) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

// equalJSON compares two values after a JSON round trip so that int and
// float64 numbers compare equal.
func equalJSON(t *testing.T, a, b any) bool {
	t.Helper()
	ab, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	bb, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var av, bv any
	_ = json.Unmarshal(ab, &av)
	_ = json.Unmarshal(bb, &bv)
	return reflect.DeepEqual(av, bv)
}
