package progfile_test

import (
	"strings"
	"testing"

	"shade/internal/progfile"
	"shade/internal/shir"
)

func TestLoad_Blend(t *testing.T) {
	p, err := progfile.Load("testdata/blend.toml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "blend" {
		t.Errorf("name = %q", p.Name)
	}
	promoted := shir.InferValues(p)
	if len(promoted) != 1 || p.VarName(promoted[0]) != "t" {
		t.Errorf("promoted = %v, want [t]", promoted)
	}
	if err := shir.Validate(p); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if n := len(p.Stmts()); n != 6 {
		t.Errorf("%d statements, want 6", n)
	}

	halves := 0
	for i := range p.Vars {
		if p.Vars[i].Name == "$0.5" {
			halves++
		}
	}
	if halves != 1 {
		t.Errorf("literal 0.5 declared %d times", halves)
	}

	var sb strings.Builder
	if err := shir.Print(&sb, p, nil); err != nil {
		t.Fatal(err)
	}
	listing := sb.String()
	for _, want := range []string{"t = mul x.yx, $0.5", "; halve", "t = add t, -x", "t.y = asn x.x", "startsec tail"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing lacks %q:\n%s", want, listing)
		}
	}
	ramp, ok := p.LookupVar("ramp")
	if !ok || p.Var(ramp).Binding != shir.BindTexture || len(p.Var(ramp).Data) != 4 {
		t.Errorf("texture not declared: %+v", p.Var(ramp))
	}
}

func TestParse_ReportsEveryProblem(t *testing.T) {
	src := `
[[var]]
name = "x"
binding = "input"
size = 2

[[var]]
name = "x"
binding = "input"
size = 1

[[var]]
name = "bad name"
binding = "input"
size = 1

[[stmt]]
op = "frobnicate"
dest = "x"

[[stmt]]
op = "add"
dest = "y"
src = ["x", "x"]

[[stmt]]
op = "asn"
dest = "x.q"
src = ["x"]

[[stmt]]
kind = "loop"
`
	_, err := progfile.Parse([]byte(src), "bad")
	if err == nil {
		t.Fatal("expected errors")
	}
	msg := err.Error()
	for _, want := range []string{
		"x declared twice",
		`invalid name "bad name"`,
		`stmt[0]: unknown op "frobnicate"`,
		`stmt[1]: dest: unknown variable "y"`,
		"bad swizzle letter",
		`unknown kind "loop"`,
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q in:\n%s", want, msg)
		}
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := progfile.Parse([]byte("[[var]]\nname = \"x\"\nbinding = \"input\"\nsize = 1\ncolour = \"red\"\n"), "keys")
	if err == nil || !strings.Contains(err.Error(), "var.colour") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestParse_NormalizesNames(t *testing.T) {
	// "é" spelled as e + combining acute accent
	src := "name = \"cafe\u0301\"\n[[var]]\nname = \"e\u0301\"\nbinding = \"input\"\nsize = 1\n"
	p, err := progfile.Parse([]byte(src), "x")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "caf\u00e9" {
		t.Errorf("program name not NFC: %q", p.Name)
	}
	if _, ok := p.LookupVar("\u00e9"); !ok {
		t.Errorf("variable name not NFC")
	}
}
