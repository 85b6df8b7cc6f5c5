package runtime

import "testing"

type namedHandler struct{ name string }

func (h *namedHandler) Type() string       { return h.name }
func (h *namedHandler) Run(*Context) error { return nil }

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&namedHandler{name: "ingest_file"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := r.Get("ingest_file"); !ok {
		t.Fatalf("registered handler not found")
	}
	if _, ok := r.Get("unknown"); ok {
		t.Fatalf("unknown type should miss")
	}
}

func TestRegistryRejectsDuplicatesAndEmpty(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&namedHandler{name: "ingest_file"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(&namedHandler{name: "ingest_file"}); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
	if err := r.Register(&namedHandler{name: ""}); err == nil {
		t.Fatalf("empty type should fail")
	}
	if err := r.Register(nil); err == nil {
		t.Fatalf("nil handler should fail")
	}
}
