// Package progfile reads programs written as TOML.
//
// A file declares variables in [[var]] tables and a structured body in
// [[stmt]] tables:
//
//	name = "blend"
//
//	[[var]]
//	name = "x"
//	binding = "input"
//	value = "affine"
//	size = 2
//
//	[[stmt]]
//	op = "mul"
//	dest = "out"
//	src = ["x.yx", "0.5"]
//
//	[[stmt]]
//	kind = "if"
//	cond = "c"
//	then = [{ op = "add", dest = "out", src = ["out", "-x"] }]
//
// Operands are [-]name, [-]name.xyzw or [-]name[i,j,...]. A numeric operand
// declares a scalar constant.
package progfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/unicode/norm"

	"shade/internal/shir"
)

type fileVar struct {
	Name    string    `toml:"name"`
	Binding string    `toml:"binding"`
	Value   string    `toml:"value"`
	Size    int       `toml:"size"`
	Data    []float64 `toml:"data"`
	Lo      []float64 `toml:"lo"`
	Hi      []float64 `toml:"hi"`
}

type fileStmt struct {
	Kind    string     `toml:"kind"`
	Op      string     `toml:"op"`
	Dest    string     `toml:"dest"`
	Src     []string   `toml:"src"`
	Comment string     `toml:"comment"`
	Cond    string     `toml:"cond"`
	Name    string     `toml:"name"`
	Then    []fileStmt `toml:"then"`
	Else    []fileStmt `toml:"else"`
	Body    []fileStmt `toml:"body"`
}

type file struct {
	Name  string     `toml:"name"`
	Vars  []fileVar  `toml:"var"`
	Stmts []fileStmt `toml:"stmt"`
}

var bindings = map[string]shir.Binding{
	"temp":    shir.BindTemp,
	"input":   shir.BindInput,
	"output":  shir.BindOutput,
	"inout":   shir.BindInOut,
	"const":   shir.BindConst,
	"texture": shir.BindTexture,
}

// Load reads and builds the program in path. The program is named after
// the file unless it names itself.
func Load(path string) (*shir.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p, err := Parse(data, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse builds a program from TOML source. Every problem in the file is
// reported, joined.
func Parse(data []byte, defaultName string) (*shir.Program, error) {
	var f file
	meta, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	name := defaultName
	if meta.IsDefined("name") {
		name = f.Name
	}
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		name = "program"
	}

	ld := &loader{b: shir.NewBuilder(name), consts: make(map[string]shir.Operand)}
	for i, v := range f.Vars {
		if err := ld.declare(v); err != nil {
			ld.errs = append(ld.errs, fmt.Errorf("var[%d]: %w", i, err))
		}
	}
	ld.body("stmt", f.Stmts)
	if err := errors.Join(ld.errs...); err != nil {
		return nil, err
	}
	return ld.b.Program(), nil
}

type loader struct {
	b      *shir.Builder
	consts map[string]shir.Operand
	errs   []error
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

func (ld *loader) declare(v fileVar) error {
	name := norm.NFC.String(strings.TrimSpace(v.Name))
	if !validName(name) {
		return fmt.Errorf("invalid name %q", v.Name)
	}
	if _, dup := ld.b.Lookup(name); dup {
		return fmt.Errorf("%s declared twice", name)
	}
	bind, ok := bindings[strings.ToLower(v.Binding)]
	if !ok {
		return fmt.Errorf("%s: unknown binding %q", name, v.Binding)
	}
	value := shir.ValueRegular
	switch strings.ToLower(v.Value) {
	case "", "regular":
	case "affine":
		value = shir.ValueAffine
	default:
		return fmt.Errorf("%s: unknown value kind %q", name, v.Value)
	}

	switch bind {
	case shir.BindConst:
		if len(v.Data) == 0 {
			return fmt.Errorf("%s: constants need data", name)
		}
		ld.b.NamedConst(name, v.Data...)
		return nil
	case shir.BindTexture:
		if v.Size <= 0 || len(v.Data) == 0 || len(v.Data)%v.Size != 0 {
			return fmt.Errorf("%s: texture data must hold whole texels of %d channels", name, v.Size)
		}
		ld.b.Texture(name, v.Size, v.Data, v.Lo, v.Hi)
		return nil
	}
	if v.Size <= 0 {
		return fmt.Errorf("%s: size %d", name, v.Size)
	}
	switch bind {
	case shir.BindInput:
		ld.b.Input(name, value, v.Size)
	case shir.BindOutput:
		ld.b.Output(name, value, v.Size)
	case shir.BindInOut:
		ld.b.InOut(name, value, v.Size)
	default:
		ld.b.Temp(name, value, v.Size)
	}
	return nil
}

func (ld *loader) body(path string, stmts []fileStmt) {
	for i, s := range stmts {
		ld.stmt(fmt.Sprintf("%s[%d]", path, i), s)
	}
}

func (ld *loader) fail(path string, format string, args ...any) {
	ld.errs = append(ld.errs, fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...)))
}

func (ld *loader) stmt(path string, s fileStmt) {
	switch strings.ToLower(s.Kind) {
	case "", "op":
		ld.op(path, s)
	case "if":
		cond, err := ld.operand(s.Cond)
		if err != nil {
			ld.fail(path, "cond: %v", err)
			return
		}
		var els func()
		if len(s.Else) > 0 {
			els = func() { ld.body(path+".else", s.Else) }
		}
		ld.b.If(cond, func() { ld.body(path+".then", s.Then) }, els)
	case "while":
		cond, err := ld.operand(s.Cond)
		if err != nil {
			ld.fail(path, "cond: %v", err)
			return
		}
		ld.b.While(cond, func() { ld.body(path+".body", s.Body) })
	case "section":
		name := strings.TrimSpace(s.Name)
		if name == "" {
			name = path
		}
		ld.b.Section(norm.NFC.String(name), func() { ld.body(path+".body", s.Body) })
	default:
		ld.fail(path, "unknown kind %q", s.Kind)
	}
}

func (ld *loader) op(path string, s fileStmt) {
	op, ok := shir.LookupOp(strings.ToLower(s.Op))
	if !ok {
		ld.fail(path, "unknown op %q", s.Op)
		return
	}
	if info, _ := shir.Info(op); info.Has(shir.FlagMarker) {
		ld.fail(path, "use kind = \"section\" instead of %s", s.Op)
		return
	}
	dest, err := ld.operand(s.Dest)
	if err != nil {
		ld.fail(path, "dest: %v", err)
		return
	}
	src := make([]shir.Operand, len(s.Src))
	for k, text := range s.Src {
		if src[k], err = ld.operand(text); err != nil {
			ld.fail(path, "src%d: %v", k, err)
			return
		}
	}
	st := ld.b.Emit(op, dest, src...)
	st.Comment = s.Comment
}

// operand parses [-]name[.xyzw | [i,...]] or a number.
func (ld *loader) operand(text string) (shir.Operand, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return shir.NoOperand, errors.New("missing operand")
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return ld.literal(v), nil
	}
	neg := strings.HasPrefix(text, "-")
	text = strings.TrimPrefix(text, "-")

	name, swiz := text, ""
	explicit := false
	switch {
	case strings.HasSuffix(text, "]"):
		open := strings.IndexByte(text, '[')
		if open < 0 {
			return shir.NoOperand, fmt.Errorf("unbalanced index list in %q", text)
		}
		name, swiz, explicit = text[:open], text[open+1:len(text)-1], true
	case strings.Contains(text, "."):
		dot := strings.LastIndexByte(text, '.')
		name, swiz = text[:dot], text[dot+1:]
	}
	name = norm.NFC.String(name)
	o, ok := ld.b.Lookup(name)
	if !ok {
		return shir.NoOperand, fmt.Errorf("unknown variable %q", name)
	}
	o.Neg = neg
	if explicit {
		for _, part := range strings.Split(swiz, ",") {
			k, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return shir.NoOperand, fmt.Errorf("bad index %q in %s", part, text)
			}
			o.Swiz = append(o.Swiz, k)
		}
		return o, nil
	}
	if swiz == "" && strings.Contains(text, ".") {
		return shir.NoOperand, fmt.Errorf("empty swizzle in %s", text)
	}
	for _, r := range swiz {
		k := strings.IndexRune("xyzw", r)
		if k < 0 {
			return shir.NoOperand, fmt.Errorf("bad swizzle letter %q in %s", r, text)
		}
		o.Swiz = append(o.Swiz, k)
	}
	return o, nil
}

func (ld *loader) literal(v float64) shir.Operand {
	key := strconv.FormatFloat(v, 'g', -1, 64)
	if o, ok := ld.consts[key]; ok {
		return o
	}
	o := ld.b.NamedConst("$"+key, v)
	ld.consts[key] = o
	return o
}
