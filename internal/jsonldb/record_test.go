package jsonldb

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecord(t *testing.T) {
	t.Run("ParseRecord", func(t *testing.T) {
		t.Run("valid", func(t *testing.T) {
			tests := []struct {
				name     string
				in       string
				wantKeys []string
				wantJSON string
			}{
				{"empty object", `{}`, []string{}, `{}`},
				{"key order kept", `{"z":1,"a":2,"m":3}`, []string{"z", "a", "m"}, `{"z":1,"a":2,"m":3}`},
				{"whitespace compacted", `{ "id" : "a", "tags" : [ 1, 2 ] }`, []string{"id", "tags"}, `{"id":"a","tags":[1,2]}`},
				{"nested kept verbatim", `{"n":{"b":1,"a":{"y":null,"x":true}}}`, []string{"n"}, `{"n":{"b":1,"a":{"y":null,"x":true}}}`},
				{"duplicate key keeps first position", `{"a":1,"b":2,"a":3}`, []string{"a", "b"}, `{"a":3,"b":2}`},
				{"escaped key", `{"a\"b":1,"é":2}`, []string{`a"b`, "é"}, `{"a\"b":1,"é":2}`},
				{"html not escaped", `{"d":"a <b> & c"}`, []string{"d"}, `{"d":"a <b> & c"}`},
				{"escapes in values preserved", `{"d":"<\n"}`, []string{"d"}, `{"d":"<\n"}`},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					r, err := ParseRecord([]byte(tt.in))
					if err != nil {
						t.Fatalf("ParseRecord(%q) failed: %v", tt.in, err)
					}
					if diff := cmp.Diff(tt.wantKeys, r.Keys()); diff != "" {
						t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
					}
					got, err := r.MarshalJSON()
					if err != nil {
						t.Fatalf("MarshalJSON failed: %v", err)
					}
					if string(got) != tt.wantJSON {
						t.Errorf("MarshalJSON() = %s, want %s", got, tt.wantJSON)
					}
				})
			}
		})

		t.Run("invalid", func(t *testing.T) {
			tests := []struct {
				name string
				in   string
			}{
				{"not json", `not-json`},
				{"empty", ``},
				{"truncated", `{"id":"a"`},
				{"array", `[1,2]`},
				{"string", `"id"`},
				{"number", `42`},
				{"null", `null`},
				{"two objects", `{"a":1} {"b":2}`},
				{"trailing garbage", `{"a":1}x`},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					if r, err := ParseRecord([]byte(tt.in)); err == nil {
						t.Errorf("ParseRecord(%q) = %v, want error", tt.in, r)
					}
				})
			}
		})
	})

	t.Run("String", func(t *testing.T) {
		r, err := ParseRecord([]byte(`{"id":"x\"1","n":5,"nil":null,"obj":{"id":"y"}}`))
		if err != nil {
			t.Fatal(err)
		}
		tests := []struct {
			key    string
			want   string
			wantOK bool
		}{
			{"id", `x"1`, true},
			{"n", "", false},
			{"nil", "", false},
			{"obj", "", false},
			{"missing", "", false},
		}
		for _, tt := range tests {
			t.Run(tt.key, func(t *testing.T) {
				got, ok := r.String(tt.key)
				if got != tt.want || ok != tt.wantOK {
					t.Errorf("String(%q) = (%q, %v), want (%q, %v)", tt.key, got, ok, tt.want, tt.wantOK)
				}
			})
		}
	})

	t.Run("Set", func(t *testing.T) {
		r, err := ParseRecord([]byte(`{"id":"a","x":1}`))
		if err != nil {
			t.Fatal(err)
		}
		if err := r.Set("x", 99); err != nil {
			t.Fatalf("Set(x) failed: %v", err)
		}
		if err := r.Set("y", map[string]any{"b": []int{1}, "a": "<&>"}); err != nil {
			t.Fatalf("Set(y) failed: %v", err)
		}
		if err := r.Set("bad", func() {}); err == nil {
			t.Error("Set(func) succeeded, want error")
		}
		got, err := r.MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}
		want := `{"id":"a","x":99,"y":{"a":"<&>","b":[1]}}`
		if string(got) != want {
			t.Errorf("MarshalJSON() = %s, want %s", got, want)
		}
	})

	t.Run("SetRaw", func(t *testing.T) {
		r := NewRecord()
		if err := r.SetRaw("a", json.RawMessage(`[ 1, 2 ]`)); err != nil {
			t.Fatalf("SetRaw failed: %v", err)
		}
		if err := r.SetRaw("b", json.RawMessage(`{`)); err == nil {
			t.Error("SetRaw with invalid JSON succeeded, want error")
		}
		raw, ok := r.Get("a")
		if !ok || string(raw) != `[1,2]` {
			t.Errorf("Get(a) = (%s, %v), want ([1,2], true)", raw, ok)
		}
		if r.Len() != 1 {
			t.Errorf("Len() = %d, want 1", r.Len())
		}
		tests := []struct {
			in      string
			want    string
			wantErr bool
		}{
			{`"\u003cb\u003e \u0026 c"`, `"<b> & c"`, false},
			{`{ "z" : [ 1.50, 12345678901234567890, -0, 1e5 ], "a" : "\u00e9" }`, `{"z":[1.50,12345678901234567890,-0,1e5],"a":"é"}`, false},
			{`{"k\u003e":{"y":null,"x":[true,false,{}],"w":[]}}`, `{"k>":{"y":null,"x":[true,false,{}],"w":[]}}`, false},
			{`"a\"b\\u003c"`, `"a\"b\\u003c"`, false},
			{`42`, `42`, false},
			{``, ``, true},
			{`1 2`, ``, true},
			{`[1,`, ``, true},
		}
		for _, tt := range tests {
			t.Run(tt.in, func(t *testing.T) {
				r := NewRecord()
				err := r.SetRaw("v", json.RawMessage(tt.in))
				if (err != nil) != tt.wantErr {
					t.Fatalf("SetRaw(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
				}
				if tt.wantErr {
					return
				}
				if raw, _ := r.Get("v"); string(raw) != tt.want {
					t.Errorf("Get(v) = %s, want %s", raw, tt.want)
				}
			})
		}
	})

	t.Run("Update", func(t *testing.T) {
		r, err := ParseRecord([]byte(`{"id":"a","x":1,"z":0}`))
		if err != nil {
			t.Fatal(err)
		}
		patch, err := ParseRecord([]byte(`{"y":"new","x":99}`))
		if err != nil {
			t.Fatal(err)
		}
		r.Update(patch)
		r.Update(nil)
		got, err := r.MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}
		if want := `{"id":"a","x":99,"z":0,"y":"new"}`; string(got) != want {
			t.Errorf("MarshalJSON() = %s, want %s", got, want)
		}
	})

	t.Run("zero value", func(t *testing.T) {
		var r Record
		got, err := r.MarshalJSON()
		if err != nil || string(got) != "{}" {
			t.Errorf("MarshalJSON() = (%s, %v), want ({}, nil)", got, err)
		}
		if _, ok := r.Get("a"); ok {
			t.Error("Get on zero Record = true, want false")
		}
		if err := r.Set("a", 1); err != nil {
			t.Fatalf("Set on zero Record failed: %v", err)
		}
		if r.Len() != 1 {
			t.Errorf("Len() = %d, want 1", r.Len())
		}
	})

	t.Run("json.Marshal roundtrip", func(t *testing.T) {
		r, err := ParseRecord([]byte(`{"b":1,"a":2}`))
		if err != nil {
			t.Fatal(err)
		}
		var got Record
		data, err := json.Marshal(r)
		if err != nil {
			t.Fatal(err)
		}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"b", "a"}, got.Keys()); diff != "" {
			t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
		}
	})
}
