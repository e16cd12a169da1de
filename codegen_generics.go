package btrc

import (
	"fmt"
	"strings"
)

// Monomorphization: every member of the generic instance set becomes a
// concrete C struct plus functions under a mangled name of the form
// btrc_<Base>_<mangled args>. Struct typedefs for all bases come
// first (class-typed members are pointers, so the class forward
// typedefs suffice);
// function bodies follow once every struct is complete, List family
// first so Map.keys()/values() and Set.toList() can call into them.

// typeToC renders a TypeExpr as C source.
func (g *CodeGen) typeToC(t *TypeExpr) string {
	if t == nil {
		return "void"
	}

	base := t.Base
	switch {
	case base == "string":
		base = "char*"
	case base == "List" && len(t.GenericArgs) > 0:
		base = "btrc_List_" + g.mangleType(t.GenericArgs[0])
	case base == "Array" && len(t.GenericArgs) > 0:
		base = "btrc_Array_" + g.mangleType(t.GenericArgs[0])
	case base == "Tuple" && len(t.GenericArgs) > 0:
		base = "btrc_Tuple_" + g.mangleTypes(t.GenericArgs)
	case base == "Map" && len(t.GenericArgs) == 2:
		base = fmt.Sprintf("btrc_Map_%s_%s",
			g.mangleType(t.GenericArgs[0]), g.mangleType(t.GenericArgs[1]))
	case base == "Set" && len(t.GenericArgs) > 0:
		base = "btrc_Set_" + g.mangleType(t.GenericArgs[0])
	default:
		if g.isClassName(base) && len(t.GenericArgs) > 0 {
			base = fmt.Sprintf("btrc_%s_%s", base, g.mangleTypes(t.GenericArgs))
		}
	}

	return base + strings.Repeat("*", t.PointerDepth)
}

// mangleType flattens a type into a C-safe identifier chunk: base,
// then generic args joined by '_', with pointer depth as trailing
// '_ptr' repetitions.
func (g *CodeGen) mangleType(t *TypeExpr) string {
	base := t.Base
	if len(t.GenericArgs) > 0 {
		return base + "_" + g.mangleTypes(t.GenericArgs)
	}
	return strings.ReplaceAll(base, " ", "_") + strings.Repeat("_ptr", t.PointerDepth)
}

func (g *CodeGen) mangleTypes(args []*TypeExpr) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, g.mangleType(a))
	}
	return strings.Join(parts, "_")
}

// genericBaseOrder fixes the emission order of the generic instance
// set: tuples and containers first (they never reference each other's
// bodies), user generics last.
var genericBaseOrder = []string{"Tuple", "List", "Array", "Map", "Set"}

func (g *CodeGen) orderedGenericBases() []string {
	bases := append([]string{}, genericBaseOrder...)
	for _, base := range g.analyzed.GenericOrder {
		switch base {
		case "Tuple", "List", "Array", "Map", "Set":
		default:
			bases = append(bases, base)
		}
	}
	return bases
}

// ---- Struct typedefs ----

func (g *CodeGen) emitGenericStructTypedefs() {
	emitted := map[string]bool{}
	for _, base := range g.orderedGenericBases() {
		for _, inst := range g.analyzed.GenericInstances[base] {
			switch base {
			case "Tuple":
				key := "Tuple_" + g.mangleTypes(inst.Args)
				if !emitted[key] {
					emitted[key] = true
					g.emitTupleDefinition(inst.Args)
				}
			case "List":
				key := "List_" + g.mangleType(inst.Args[0])
				if !emitted[key] {
					emitted[key] = true
					g.emitListStructTypedef(g.typeToC(inst.Args[0]), g.mangleType(inst.Args[0]))
				}
			case "Array":
				key := "Array_" + g.mangleType(inst.Args[0])
				if !emitted[key] {
					emitted[key] = true
					g.emitArrayStructTypedef(g.typeToC(inst.Args[0]), g.mangleType(inst.Args[0]))
				}
			case "Map":
				if len(inst.Args) != 2 {
					continue
				}
				key := fmt.Sprintf("Map_%s_%s", g.mangleType(inst.Args[0]), g.mangleType(inst.Args[1]))
				if !emitted[key] {
					emitted[key] = true
					g.emitMapStructTypedef(inst.Args[0], inst.Args[1])
				}
			case "Set":
				key := "Set_" + g.mangleType(inst.Args[0])
				if !emitted[key] {
					emitted[key] = true
					g.emitSetStructTypedef(g.typeToC(inst.Args[0]), g.mangleType(inst.Args[0]))
				}
			default:
				if cls, ok := g.classTable[base]; ok {
					key := base + "_" + g.mangleTypes(inst.Args)
					if !emitted[key] {
						emitted[key] = true
						g.emitMonomorphizedClass(cls, inst.Args)
					}
				}
			}
		}
	}
}

func (g *CodeGen) emitTupleDefinition(args []*TypeExpr) {
	name := "btrc_Tuple_" + g.mangleTypes(args)
	g.out.writel("typedef struct {")
	for i, arg := range args {
		g.out.writelf("    %s _%d;", g.typeToC(arg), i)
	}
	g.out.writelf("} %s;", name)
	g.out.blank()
}

func (g *CodeGen) emitListStructTypedef(cType, mangled string) {
	name := "btrc_List_" + mangled
	g.out.writel("typedef struct {")
	g.out.writelf("    %s* data;", cType)
	g.out.writel("    int len;")
	g.out.writel("    int cap;")
	g.out.writelf("} %s;", name)
	g.out.blank()
}

func (g *CodeGen) emitArrayStructTypedef(cType, mangled string) {
	name := "btrc_Array_" + mangled
	g.out.writel("typedef struct {")
	g.out.writelf("    %s* data;", cType)
	g.out.writel("    int len;")
	g.out.writelf("} %s;", name)
	g.out.blank()
}

func (g *CodeGen) emitMapStructTypedef(keyArg, valArg *TypeExpr) {
	name := fmt.Sprintf("btrc_Map_%s_%s", g.mangleType(keyArg), g.mangleType(valArg))
	entry := name + "_entry"
	g.out.writelf("typedef struct { %s key; %s value; bool occupied; } %s;",
		g.typeToC(keyArg), g.typeToC(valArg), entry)
	g.out.writel("typedef struct {")
	g.out.writelf("    %s* buckets;", entry)
	g.out.writel("    int cap;")
	g.out.writel("    int len;")
	g.out.writelf("} %s;", name)
	g.out.blank()
}

func (g *CodeGen) emitSetStructTypedef(cType, mangled string) {
	name := "btrc_Set_" + mangled
	entry := name + "_entry"
	g.out.writelf("typedef struct { %s key; bool occupied; } %s;", cType, entry)
	g.out.writel("typedef struct {")
	g.out.writelf("    %s* buckets;", entry)
	g.out.writel("    int cap;")
	g.out.writel("    int len;")
	g.out.writelf("} %s;", name)
	g.out.blank()
}

// emitMonomorphizedClass renders a generic class instance's struct
// with the type parameters substituted.
func (g *CodeGen) emitMonomorphizedClass(cls *ClassInfo, args []*TypeExpr) {
	subs := map[string]*TypeExpr{}
	for i, param := range cls.GenericParams {
		if i < len(args) {
			subs[param] = args[i]
		}
	}
	name := fmt.Sprintf("btrc_%s_%s", cls.Name, g.mangleTypes(args))

	g.out.writel("typedef struct {")
	if len(cls.FieldOrder) == 0 {
		g.out.writel("    char _dummy;")
	}
	for _, fld := range cls.OrderedFields() {
		ftype := substituteType(fld.Type, subs)
		g.out.writelf("    %s %s;", g.typeToC(ftype), fld.Name)
	}
	g.out.writelf("} %s;", name)
	g.out.blank()
}

// substituteType replaces generic parameter names with concrete types,
// adding pointer depths when both mention them.
func substituteType(t *TypeExpr, subs map[string]*TypeExpr) *TypeExpr {
	if t == nil {
		return nil
	}
	if concrete, ok := subs[t.Base]; ok {
		r := concrete.Clone()
		r.PointerDepth += t.PointerDepth
		return r
	}
	r := t.Clone()
	for i, arg := range r.GenericArgs {
		r.GenericArgs[i] = substituteType(arg, subs)
	}
	return r
}

// ---- Function bodies ----

func (g *CodeGen) emitGenericFunctionBodies() {
	emitted := map[string]bool{}

	// List first: Map.keys()/values() and Set.toList() return Lists.
	for _, inst := range g.analyzed.GenericInstances["List"] {
		mangled := g.mangleType(inst.Args[0])
		if key := "List_" + mangled; !emitted[key] {
			emitted[key] = true
			g.emitListFunctions(g.typeToC(inst.Args[0]), mangled, inst.Args[0])
		}
	}
	for _, inst := range g.analyzed.GenericInstances["Map"] {
		if len(inst.Args) != 2 {
			continue
		}
		kMangled, vMangled := g.mangleType(inst.Args[0]), g.mangleType(inst.Args[1])
		if key := "Map_" + kMangled + "_" + vMangled; !emitted[key] {
			emitted[key] = true
			g.emitMapFunctions(inst.Args[0], inst.Args[1])
		}
	}
	for _, inst := range g.analyzed.GenericInstances["Set"] {
		mangled := g.mangleType(inst.Args[0])
		if key := "Set_" + mangled; !emitted[key] {
			emitted[key] = true
			g.emitSetFunctions(g.typeToC(inst.Args[0]), mangled)
		}
	}
	// Array carries no function bodies; user generics had their
	// structs emitted with the typedefs.
}

// elemKind classifies a concrete element type for conditional method
// emission.
type elemKind struct {
	isPrimitive bool
	isNumeric   bool
	isString    bool
}

func (g *CodeGen) classifyElem(cType string) elemKind {
	isCollectionStruct := strings.HasPrefix(cType, "btrc_List_") ||
		strings.HasPrefix(cType, "btrc_Map_") || strings.HasPrefix(cType, "btrc_Set_") ||
		strings.HasPrefix(cType, "btrc_Tuple_")
	isClass := g.isClassName(strings.TrimRight(cType, "*"))
	switch cType {
	case "int", "float", "double", "long", "short", "unsigned int", "unsigned long":
		return elemKind{isPrimitive: true, isNumeric: true}
	case "char*":
		return elemKind{isPrimitive: true, isString: true}
	}
	return elemKind{isPrimitive: !isClass && !isCollectionStruct}
}

func (g *CodeGen) emitListFunctions(cType, mangled string, elem *TypeExpr) {
	name := "btrc_List_" + mangled
	kind := g.classifyElem(cType)
	eqExpr := "l->data[i] == val"
	if kind.isString {
		eqExpr = "strcmp(l->data[i], val) == 0"
	}

	w := g.out
	w.writelf("static inline %s %s_new(void) {", name, name)
	w.writelf("    return (%s){NULL, 0, 0};", name)
	w.writel("}")
	w.blank()
	w.writelf("static inline void %s_push(%s* l, %s val) {", name, name, cType)
	w.writel("    if (l->len >= l->cap) {")
	w.writel("        l->cap = l->cap ? l->cap * 2 : 4;")
	w.writelf("        l->data = (%s*)realloc(l->data, sizeof(%s) * l->cap);", cType, cType)
	w.writel("    }")
	w.writel("    l->data[l->len++] = val;")
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_get(%s* l, int i) {", cType, name, name)
	w.writel("    if (i < 0 || i >= l->len) { fprintf(stderr, \"List index out of bounds: %d (len=%d)\\n\", i, l->len); exit(1); }")
	w.writel("    return l->data[i];")
	w.writel("}")
	w.blank()
	w.writelf("static inline void %s_set(%s* l, int i, %s val) {", name, name, cType)
	w.writel("    if (i < 0 || i >= l->len) { fprintf(stderr, \"List index out of bounds: %d (len=%d)\\n\", i, l->len); exit(1); }")
	w.writel("    l->data[i] = val;")
	w.writel("}")
	w.blank()
	w.writelf("static inline void %s_free(%s* l) {", name, name)
	w.writel("    free(l->data);")
	w.writel("    l->data = NULL; l->len = 0; l->cap = 0;")
	w.writel("}")
	w.blank()

	if kind.isPrimitive {
		w.writelf("static inline bool %s_contains(%s* l, %s val) {", name, name, cType)
		w.writel("    for (int i = 0; i < l->len; i++) {")
		w.writelf("        if (%s) return true;", eqExpr)
		w.writel("    }")
		w.writel("    return false;")
		w.writel("}")
		w.blank()
		w.writelf("static inline int %s_indexOf(%s* l, %s val) {", name, name, cType)
		w.writel("    for (int i = 0; i < l->len; i++) {")
		w.writelf("        if (%s) return i;", eqExpr)
		w.writel("    }")
		w.writel("    return -1;")
		w.writel("}")
		w.blank()
		w.writelf("static inline int %s_lastIndexOf(%s* l, %s val) {", name, name, cType)
		w.writel("    for (int i = l->len - 1; i >= 0; i--) {")
		w.writelf("        if (%s) return i;", eqExpr)
		w.writel("    }")
		w.writel("    return -1;")
		w.writel("}")
		w.blank()
	}

	w.writelf("static inline void %s_remove(%s* l, int idx) {", name, name)
	w.writel("    if (idx < 0 || idx >= l->len) { fprintf(stderr, \"List remove index out of bounds: %d (len=%d)\\n\", idx, l->len); exit(1); }")
	w.writel("    for (int i = idx; i < l->len - 1; i++) {")
	w.writel("        l->data[i] = l->data[i + 1];")
	w.writel("    }")
	w.writel("    l->len--;")
	w.writel("}")
	w.blank()
	w.writelf("static inline void %s_reverse(%s* l) {", name, name)
	w.writel("    for (int i = 0; i < l->len / 2; i++) {")
	w.writelf("        %s tmp = l->data[i];", cType)
	w.writel("        l->data[i] = l->data[l->len - 1 - i];")
	w.writel("        l->data[l->len - 1 - i] = tmp;")
	w.writel("    }")
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_reversed(%s* l) {", name, name, name)
	w.writelf("    %s result = %s_new();", name, name)
	w.writelf("    for (int i = l->len - 1; i >= 0; i--) %s_push(&result, l->data[i]);", name)
	w.writel("    return result;")
	w.writel("}")
	w.blank()

	if kind.isPrimitive {
		w.writelf("static int __%s_cmp(const void* a, const void* b) {", name)
		if kind.isString {
			w.writel("    return strcmp(*(char**)a, *(char**)b);")
		} else {
			w.writelf("    %s va = *(%s*)a;", cType, cType)
			w.writelf("    %s vb = *(%s*)b;", cType, cType)
			w.writel("    return (va > vb) - (va < vb);")
		}
		w.writel("}")
		w.writelf("static inline void %s_sort(%s* l) {", name, name)
		w.writelf("    qsort(l->data, l->len, sizeof(%s), __%s_cmp);", cType, name)
		w.writel("}")
		w.blank()
		w.writelf("static inline %s %s_sorted(%s* l) {", name, name, name)
		w.writelf("    %s result = %s_new();", name, name)
		w.writelf("    for (int i = 0; i < l->len; i++) %s_push(&result, l->data[i]);", name)
		w.writelf("    qsort(result.data, result.len, sizeof(%s), __%s_cmp);", cType, name)
		w.writel("    return result;")
		w.writel("}")
		w.blank()
	}

	if kind.isNumeric {
		w.writelf("static inline %s %s_min(%s* l) {", cType, name, name)
		w.writel("    if (l->len <= 0) { fprintf(stderr, \"List min on empty list\\n\"); exit(1); }")
		w.writelf("    %s m = l->data[0];", cType)
		w.writel("    for (int i = 1; i < l->len; i++) if (l->data[i] < m) m = l->data[i];")
		w.writel("    return m;")
		w.writel("}")
		w.blank()
		w.writelf("static inline %s %s_max(%s* l) {", cType, name, name)
		w.writel("    if (l->len <= 0) { fprintf(stderr, \"List max on empty list\\n\"); exit(1); }")
		w.writelf("    %s m = l->data[0];", cType)
		w.writel("    for (int i = 1; i < l->len; i++) if (l->data[i] > m) m = l->data[i];")
		w.writel("    return m;")
		w.writel("}")
		w.blank()
		w.writelf("static inline %s %s_sum(%s* l) {", cType, name, name)
		w.writelf("    %s s = 0;", cType)
		w.writel("    for (int i = 0; i < l->len; i++) s += l->data[i];")
		w.writel("    return s;")
		w.writel("}")
		w.blank()
	}

	w.writelf("static inline void %s_swap(%s* l, int i, int j) {", name, name)
	w.writel("    if (i < 0 || i >= l->len || j < 0 || j >= l->len) { fprintf(stderr, \"List swap index out of bounds\\n\"); exit(1); }")
	w.writelf("    %s tmp = l->data[i]; l->data[i] = l->data[j]; l->data[j] = tmp;", cType)
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_pop(%s* l) {", cType, name, name)
	w.writel("    if (l->len <= 0) { fprintf(stderr, \"List pop from empty list\\n\"); exit(1); }")
	w.writel("    return l->data[--l->len];")
	w.writel("}")
	w.blank()
	w.writelf("static inline void %s_clear(%s* l) {", name, name)
	w.writel("    l->len = 0;")
	w.writel("}")
	w.blank()
	w.writelf("static inline void %s_fill(%s* l, %s val) {", name, name, cType)
	w.writel("    for (int i = 0; i < l->len; i++) l->data[i] = val;")
	w.writel("}")
	w.blank()

	if kind.isPrimitive {
		w.writelf("static inline int %s_count(%s* l, %s val) {", name, name, cType)
		w.writel("    int c = 0;")
		w.writelf("    for (int i = 0; i < l->len; i++) if (%s) c++;", eqExpr)
		w.writel("    return c;")
		w.writel("}")
		w.blank()
		w.writelf("static inline void %s_removeAll(%s* l, %s val) {", name, name, cType)
		w.writel("    int j = 0;")
		w.writel("    for (int i = 0; i < l->len; i++) {")
		w.writelf("        if (!(%s)) l->data[j++] = l->data[i];", eqExpr)
		w.writel("    }")
		w.writel("    l->len = j;")
		w.writel("}")
		w.blank()
		w.writelf("static inline %s %s_distinct(%s* l) {", name, name, name)
		w.writelf("    %s result = %s_new();", name, name)
		w.writel("    for (int i = 0; i < l->len; i++) {")
		w.writelf("        if (!%s_contains(&result, l->data[i])) {", name)
		w.writelf("            %s_push(&result, l->data[i]);", name)
		w.writel("        }")
		w.writel("    }")
		w.writel("    return result;")
		w.writel("}")
		w.blank()
	}

	w.writelf("static inline %s %s_slice(%s* l, int start, int end) {", name, name, name)
	w.writel("    if (start < 0) start = l->len + start;")
	w.writel("    if (end < 0) end = l->len + end;")
	w.writel("    if (start < 0) start = 0;")
	w.writel("    if (end > l->len) end = l->len;")
	w.writelf("    %s result = %s_new();", name, name)
	w.writel("    for (int i = start; i < end; i++) {")
	w.writelf("        %s_push(&result, l->data[i]);", name)
	w.writel("    }")
	w.writel("    return result;")
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_take(%s* l, int n) {", name, name, name)
	w.writel("    if (n > l->len) n = l->len;")
	w.writel("    if (n < 0) n = 0;")
	w.writelf("    return %s_slice(l, 0, n);", name)
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_drop(%s* l, int n) {", name, name, name)
	w.writel("    if (n > l->len) n = l->len;")
	w.writel("    if (n < 0) n = 0;")
	w.writelf("    return %s_slice(l, n, l->len);", name)
	w.writel("}")
	w.blank()

	if kind.isString {
		w.writelf("static inline char* %s_join(%s* l, const char* sep) {", name, name)
		w.writel("    int total = 0;")
		w.writel("    int sep_len = strlen(sep);")
		w.writel("    for (int i = 0; i < l->len; i++) {")
		w.writel("        total += strlen(l->data[i]);")
		w.writel("        if (i < l->len - 1) total += sep_len;")
		w.writel("    }")
		w.writel("    char* result = (char*)malloc(total + 1);")
		w.writel("    int pos = 0;")
		w.writel("    for (int i = 0; i < l->len; i++) {")
		w.writel("        int slen = strlen(l->data[i]);")
		w.writel("        memcpy(result + pos, l->data[i], slen); pos += slen;")
		w.writel("        if (i < l->len - 1) { memcpy(result + pos, sep, sep_len); pos += sep_len; }")
		w.writel("    }")
		w.writel("    result[pos] = '\\0';")
		w.writel("    return result;")
		w.writel("}")
		w.blank()
		w.writelf("static inline char* %s_joinToString(%s* l, const char* sep) {", name, name)
		w.writelf("    return %s_join(l, sep);", name)
		w.writel("}")
		w.blank()
	}

	// Higher-order methods take a plain function pointer; no context
	// argument is passed to it.
	w.writelf("static inline void %s_forEach(%s* l, void (*fn)(%s)) {", name, name, cType)
	w.writel("    for (int i = 0; i < l->len; i++) fn(l->data[i]);")
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_filter(%s* l, bool (*fn)(%s)) {", name, name, name, cType)
	w.writelf("    %s result = %s_new();", name, name)
	w.writel("    for (int i = 0; i < l->len; i++) {")
	w.writelf("        if (fn(l->data[i])) %s_push(&result, l->data[i]);", name)
	w.writel("    }")
	w.writel("    return result;")
	w.writel("}")
	w.blank()
	w.writelf("static inline bool %s_any(%s* l, bool (*fn)(%s)) {", name, name, cType)
	w.writel("    for (int i = 0; i < l->len; i++) { if (fn(l->data[i])) return true; }")
	w.writel("    return false;")
	w.writel("}")
	w.blank()
	w.writelf("static inline bool %s_all(%s* l, bool (*fn)(%s)) {", name, name, cType)
	w.writel("    for (int i = 0; i < l->len; i++) { if (!fn(l->data[i])) return false; }")
	w.writel("    return true;")
	w.writel("}")
	w.blank()
	w.writelf("static inline int %s_findIndex(%s* l, bool (*fn)(%s)) {", name, name, cType)
	w.writel("    for (int i = 0; i < l->len; i++) { if (fn(l->data[i])) return i; }")
	w.writel("    return -1;")
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_map(%s* l, %s (*fn)(%s)) {", name, name, name, cType, cType)
	w.writelf("    %s result = %s_new();", name, name)
	w.writelf("    for (int i = 0; i < l->len; i++) %s_push(&result, fn(l->data[i]));", name)
	w.writel("    return result;")
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_reduce(%s* l, %s init, %s (*fn)(%s, %s)) {", cType, name, name, cType, cType, cType, cType)
	w.writelf("    %s acc = init;", cType)
	w.writel("    for (int i = 0; i < l->len; i++) acc = fn(acc, l->data[i]);")
	w.writel("    return acc;")
	w.writel("}")
	w.blank()

	w.writelf("static inline int %s_size(%s* l) {", name, name)
	w.writel("    return l->len;")
	w.writel("}")
	w.blank()
	w.writelf("static inline bool %s_isEmpty(%s* l) {", name, name)
	w.writel("    return l->len == 0;")
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_first(%s* l) {", cType, name, name)
	w.writel("    if (l->len == 0) { fprintf(stderr, \"List.first() called on empty list\\n\"); exit(1); }")
	w.writel("    return l->data[0];")
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_last(%s* l) {", cType, name, name)
	w.writel("    if (l->len == 0) { fprintf(stderr, \"List.last() called on empty list\\n\"); exit(1); }")
	w.writel("    return l->data[l->len - 1];")
	w.writel("}")
	w.blank()
	w.writelf("static inline void %s_extend(%s* l, %s* other) {", name, name, name)
	w.writelf("    for (int i = 0; i < other->len; i++) %s_push(l, other->data[i]);", name)
	w.writel("}")
	w.blank()
	w.writelf("static inline void %s_insert(%s* l, int idx, %s val) {", name, name, cType)
	w.writel("    if (idx < 0 || idx > l->len) { fprintf(stderr, \"List insert index out of bounds: %d (size %d)\\n\", idx, l->len); exit(1); }")
	w.writelf("    if (l->len >= l->cap) { l->cap = l->cap == 0 ? 4 : l->cap * 2; l->data = (%s*)realloc(l->data, sizeof(%s) * l->cap); }", cType, cType)
	w.writel("    for (int i = l->len; i > idx; i--) l->data[i] = l->data[i-1];")
	w.writel("    l->data[idx] = val;")
	w.writel("    l->len++;")
	w.writel("}")
	w.blank()
}

func (g *CodeGen) emitMapFunctions(keyArg, valArg *TypeExpr) {
	kType, vType := g.typeToC(keyArg), g.typeToC(valArg)
	kMangled, vMangled := g.mangleType(keyArg), g.mangleType(valArg)
	name := fmt.Sprintf("btrc_Map_%s_%s", kMangled, vMangled)
	entry := name + "_entry"

	hashExpr := "(unsigned int)key"
	eqExpr := "m->buckets[idx].key == key"
	if kType == "char*" {
		hashExpr = "__btrc_hash_str(key)"
		eqExpr = "strcmp(m->buckets[idx].key, key) == 0"
		g.emitHelper("__btrc_hash_str")
	}

	w := g.out
	w.writelf("static inline %s %s_new(void) {", name, name)
	w.writelf("    %s m;", name)
	w.writel("    m.cap = 16;")
	w.writel("    m.len = 0;")
	w.writelf("    m.buckets = (%s*)calloc(m.cap, sizeof(%s));", entry, entry)
	w.writel("    return m;")
	w.writel("}")
	w.blank()

	// put is forward declared so resize can call it.
	w.writelf("static inline void %s_put(%s* m, %s key, %s value);", name, name, kType, vType)
	w.blank()

	w.writelf("static inline void %s_resize(%s* m) {", name, name)
	w.writel("    int old_cap = m->cap;")
	w.writelf("    %s* old_buckets = m->buckets;", entry)
	w.writel("    m->cap *= 2;")
	w.writel("    m->len = 0;")
	w.writelf("    m->buckets = (%s*)calloc(m->cap, sizeof(%s));", entry, entry)
	w.writel("    for (int i = 0; i < old_cap; i++) {")
	w.writel("        if (old_buckets[i].occupied) {")
	w.writelf("            %s_put(m, old_buckets[i].key, old_buckets[i].value);", name)
	w.writel("        }")
	w.writel("    }")
	w.writel("    free(old_buckets);")
	w.writel("}")
	w.blank()

	// 75% load factor triggers doubling-and-rehash.
	w.writelf("static inline void %s_put(%s* m, %s key, %s value) {", name, name, kType, vType)
	w.writelf("    if (m->len * 4 >= m->cap * 3) { %s_resize(m); }", name)
	w.writelf("    unsigned int idx = %s %% m->cap;", hashExpr)
	w.writel("    while (m->buckets[idx].occupied) {")
	w.writelf("        if (%s) { m->buckets[idx].value = value; return; }", eqExpr)
	w.writel("        idx = (idx + 1) % m->cap;")
	w.writel("    }")
	w.writel("    m->buckets[idx].key = key;")
	w.writel("    m->buckets[idx].value = value;")
	w.writel("    m->buckets[idx].occupied = true;")
	w.writel("    m->len++;")
	w.writel("}")
	w.blank()

	w.writelf("static inline %s %s_get(%s* m, %s key) {", vType, name, name, kType)
	w.writelf("    unsigned int idx = %s %% m->cap;", hashExpr)
	w.writel("    while (m->buckets[idx].occupied) {")
	w.writelf("        if (%s) return m->buckets[idx].value;", eqExpr)
	w.writel("        idx = (idx + 1) % m->cap;")
	w.writel("    }")
	w.writel("    fprintf(stderr, \"Map key not found\\n\"); exit(1);")
	if strings.HasSuffix(vType, "*") {
		w.writel("    return NULL;")
	} else {
		w.writelf("    return (%s){0};", vType)
	}
	w.writel("}")
	w.blank()

	w.writelf("static inline %s %s_getOrDefault(%s* m, %s key, %s fallback) {", vType, name, name, kType, vType)
	w.writelf("    unsigned int idx = %s %% m->cap;", hashExpr)
	w.writel("    while (m->buckets[idx].occupied) {")
	w.writelf("        if (%s) return m->buckets[idx].value;", eqExpr)
	w.writel("        idx = (idx + 1) % m->cap;")
	w.writel("    }")
	w.writel("    return fallback;")
	w.writel("}")
	w.blank()

	w.writelf("static inline bool %s_has(%s* m, %s key) {", name, name, kType)
	w.writelf("    unsigned int idx = %s %% m->cap;", hashExpr)
	w.writel("    while (m->buckets[idx].occupied) {")
	w.writelf("        if (%s) return true;", eqExpr)
	w.writel("        idx = (idx + 1) % m->cap;")
	w.writel("    }")
	w.writel("    return false;")
	w.writel("}")
	w.blank()

	w.writelf("static inline bool %s_contains(%s* m, %s key) {", name, name, kType)
	w.writelf("    return %s_has(m, key);", name)
	w.writel("}")
	w.blank()

	w.writelf("static inline void %s_putIfAbsent(%s* m, %s key, %s value) {", name, name, kType, vType)
	w.writelf("    if (!%s_has(m, key)) %s_put(m, key, value);", name, name)
	w.writel("}")
	w.blank()

	w.writelf("static inline void %s_free(%s* m) {", name, name)
	w.writel("    free(m->buckets);")
	w.writel("    m->buckets = NULL; m->cap = 0; m->len = 0;")
	w.writel("}")
	w.blank()

	// Removal rehashes the rest of the cluster so open-addressing
	// probe chains stay intact.
	w.writelf("static inline void %s_remove(%s* m, %s key) {", name, name, kType)
	w.writelf("    unsigned int idx = %s %% m->cap;", hashExpr)
	w.writel("    while (m->buckets[idx].occupied) {")
	w.writelf("        if (%s) {", eqExpr)
	w.writel("            m->buckets[idx].occupied = false;")
	w.writel("            m->len--;")
	w.writel("            unsigned int j = (idx + 1) % m->cap;")
	w.writel("            while (m->buckets[j].occupied) {")
	w.writelf("                %s rk = m->buckets[j].key;", kType)
	w.writelf("                %s rv = m->buckets[j].value;", vType)
	w.writel("                m->buckets[j].occupied = false;")
	w.writel("                m->len--;")
	w.writelf("                %s_put(m, rk, rv);", name)
	w.writel("                j = (j + 1) % m->cap;")
	w.writel("            }")
	w.writel("            return;")
	w.writel("        }")
	w.writel("        idx = (idx + 1) % m->cap;")
	w.writel("    }")
	w.writel("}")
	w.blank()

	kList := "btrc_List_" + kMangled
	w.writelf("static inline %s %s_keys(%s* m) {", kList, name, name)
	w.writelf("    %s result = %s_new();", kList, kList)
	w.writel("    for (int i = 0; i < m->cap; i++) {")
	w.writel("        if (m->buckets[i].occupied) {")
	w.writelf("            %s_push(&result, m->buckets[i].key);", kList)
	w.writel("        }")
	w.writel("    }")
	w.writel("    return result;")
	w.writel("}")
	w.blank()

	vList := "btrc_List_" + vMangled
	w.writelf("static inline %s %s_values(%s* m) {", vList, name, name)
	w.writelf("    %s result = %s_new();", vList, vList)
	w.writel("    for (int i = 0; i < m->cap; i++) {")
	w.writel("        if (m->buckets[i].occupied) {")
	w.writelf("            %s_push(&result, m->buckets[i].value);", vList)
	w.writel("        }")
	w.writel("    }")
	w.writel("    return result;")
	w.writel("}")
	w.blank()

	w.writelf("static inline void %s_clear(%s* m) {", name, name)
	w.writel("    for (int i = 0; i < m->cap; i++) m->buckets[i].occupied = false;")
	w.writel("    m->len = 0;")
	w.writel("}")
	w.blank()

	w.writelf("static inline void %s_forEach(%s* m, void (*fn)(%s, %s)) {", name, name, kType, vType)
	w.writel("    for (int i = 0; i < m->cap; i++) {")
	w.writel("        if (m->buckets[i].occupied) fn(m->buckets[i].key, m->buckets[i].value);")
	w.writel("    }")
	w.writel("}")
	w.blank()
	w.writelf("static inline int %s_size(%s* m) {", name, name)
	w.writel("    return m->len;")
	w.writel("}")
	w.blank()
	w.writelf("static inline bool %s_isEmpty(%s* m) {", name, name)
	w.writel("    return m->len == 0;")
	w.writel("}")
	w.blank()

	if vKind := g.classifyElem(vType); vKind.isPrimitive {
		valEq := "m->buckets[i].value == value"
		if vKind.isString {
			valEq = "strcmp(m->buckets[i].value, value) == 0"
		}
		w.writelf("static inline bool %s_containsValue(%s* m, %s value) {", name, name, vType)
		w.writel("    for (int i = 0; i < m->cap; i++) {")
		w.writelf("        if (m->buckets[i].occupied && %s) return true;", valEq)
		w.writel("    }")
		w.writel("    return false;")
		w.writel("}")
		w.blank()
	}

	w.writelf("static inline void %s_merge(%s* m, %s* other) {", name, name, name)
	w.writel("    for (int i = 0; i < other->cap; i++) {")
	w.writelf("        if (other->buckets[i].occupied) %s_put(m, other->buckets[i].key, other->buckets[i].value);", name)
	w.writel("    }")
	w.writel("}")
	w.blank()
}

func (g *CodeGen) emitSetFunctions(cType, mangled string) {
	name := "btrc_Set_" + mangled
	entry := name + "_entry"

	hashExpr := "(unsigned int)key"
	eqExpr := "s->buckets[idx].key == key"
	if cType == "char*" {
		hashExpr = "__btrc_hash_str(key)"
		eqExpr = "strcmp(s->buckets[idx].key, key) == 0"
		g.emitHelper("__btrc_hash_str")
	}

	w := g.out
	w.writelf("static inline %s %s_new(void) {", name, name)
	w.writelf("    %s s;", name)
	w.writel("    s.cap = 16;")
	w.writel("    s.len = 0;")
	w.writelf("    s.buckets = (%s*)calloc(s.cap, sizeof(%s));", entry, entry)
	w.writel("    return s;")
	w.writel("}")
	w.blank()

	w.writelf("static inline void %s_add(%s* s, %s key);", name, name, cType)
	w.blank()

	w.writelf("static inline void %s_resize(%s* s) {", name, name)
	w.writel("    int old_cap = s->cap;")
	w.writelf("    %s* old_buckets = s->buckets;", entry)
	w.writel("    s->cap *= 2;")
	w.writel("    s->len = 0;")
	w.writelf("    s->buckets = (%s*)calloc(s->cap, sizeof(%s));", entry, entry)
	w.writel("    for (int i = 0; i < old_cap; i++) {")
	w.writel("        if (old_buckets[i].occupied) {")
	w.writelf("            %s_add(s, old_buckets[i].key);", name)
	w.writel("        }")
	w.writel("    }")
	w.writel("    free(old_buckets);")
	w.writel("}")
	w.blank()

	w.writelf("static inline void %s_add(%s* s, %s key) {", name, name, cType)
	w.writelf("    if (s->len * 4 >= s->cap * 3) { %s_resize(s); }", name)
	w.writelf("    unsigned int idx = %s %% s->cap;", hashExpr)
	w.writel("    while (s->buckets[idx].occupied) {")
	w.writelf("        if (%s) return;", eqExpr)
	w.writel("        idx = (idx + 1) % s->cap;")
	w.writel("    }")
	w.writel("    s->buckets[idx].key = key;")
	w.writel("    s->buckets[idx].occupied = true;")
	w.writel("    s->len++;")
	w.writel("}")
	w.blank()

	w.writelf("static inline bool %s_contains(%s* s, %s key) {", name, name, cType)
	w.writelf("    unsigned int idx = %s %% s->cap;", hashExpr)
	w.writel("    while (s->buckets[idx].occupied) {")
	w.writelf("        if (%s) return true;", eqExpr)
	w.writel("        idx = (idx + 1) % s->cap;")
	w.writel("    }")
	w.writel("    return false;")
	w.writel("}")
	w.blank()

	w.writelf("static inline bool %s_has(%s* s, %s key) {", name, name, cType)
	w.writelf("    return %s_contains(s, key);", name)
	w.writel("}")
	w.blank()

	w.writelf("static inline void %s_free(%s* s) {", name, name)
	w.writel("    free(s->buckets);")
	w.writel("    s->buckets = NULL; s->cap = 0; s->len = 0;")
	w.writel("}")
	w.blank()

	w.writelf("static inline void %s_remove(%s* s, %s key) {", name, name, cType)
	w.writelf("    unsigned int idx = %s %% s->cap;", hashExpr)
	w.writel("    while (s->buckets[idx].occupied) {")
	w.writelf("        if (%s) {", eqExpr)
	w.writel("            s->buckets[idx].occupied = false;")
	w.writel("            s->len--;")
	w.writel("            unsigned int j = (idx + 1) % s->cap;")
	w.writel("            while (s->buckets[j].occupied) {")
	w.writelf("                %s rk = s->buckets[j].key;", cType)
	w.writel("                s->buckets[j].occupied = false;")
	w.writel("                s->len--;")
	w.writelf("                %s_add(s, rk);", name)
	w.writel("                j = (j + 1) % s->cap;")
	w.writel("            }")
	w.writel("            return;")
	w.writel("        }")
	w.writel("        idx = (idx + 1) % s->cap;")
	w.writel("    }")
	w.writel("}")
	w.blank()

	list := "btrc_List_" + mangled
	w.writelf("static inline %s %s_toList(%s* s) {", list, name, name)
	w.writelf("    %s result = %s_new();", list, list)
	w.writel("    for (int i = 0; i < s->cap; i++) {")
	w.writel("        if (s->buckets[i].occupied) {")
	w.writelf("            %s_push(&result, s->buckets[i].key);", list)
	w.writel("        }")
	w.writel("    }")
	w.writel("    return result;")
	w.writel("}")
	w.blank()

	w.writelf("static inline void %s_clear(%s* s) {", name, name)
	w.writel("    for (int i = 0; i < s->cap; i++) s->buckets[i].occupied = false;")
	w.writel("    s->len = 0;")
	w.writel("}")
	w.blank()
	w.writelf("static inline int %s_size(%s* s) {", name, name)
	w.writel("    return s->len;")
	w.writel("}")
	w.blank()
	w.writelf("static inline bool %s_isEmpty(%s* s) {", name, name)
	w.writel("    return s->len == 0;")
	w.writel("}")
	w.blank()
	w.writelf("static inline void %s_forEach(%s* s, void (*fn)(%s)) {", name, name, cType)
	w.writel("    for (int i = 0; i < s->cap; i++) {")
	w.writel("        if (s->buckets[i].occupied) fn(s->buckets[i].key);")
	w.writel("    }")
	w.writel("}")
	w.blank()

	w.writelf("static inline %s %s_copy(%s* s) {", name, name, name)
	w.writelf("    %s result = %s_new();", name, name)
	w.writel("    for (int i = 0; i < s->cap; i++) {")
	w.writelf("        if (s->buckets[i].occupied) %s_add(&result, s->buckets[i].key);", name)
	w.writel("    }")
	w.writel("    return result;")
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_unite(%s* s, %s* other) {", name, name, name, name)
	w.writelf("    %s result = %s_copy(s);", name, name)
	w.writel("    for (int i = 0; i < other->cap; i++) {")
	w.writelf("        if (other->buckets[i].occupied) %s_add(&result, other->buckets[i].key);", name)
	w.writel("    }")
	w.writel("    return result;")
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_intersect(%s* s, %s* other) {", name, name, name, name)
	w.writelf("    %s result = %s_new();", name, name)
	w.writel("    for (int i = 0; i < s->cap; i++) {")
	w.writelf("        if (s->buckets[i].occupied && %s_contains(other, s->buckets[i].key)) %s_add(&result, s->buckets[i].key);", name, name)
	w.writel("    }")
	w.writel("    return result;")
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_subtract(%s* s, %s* other) {", name, name, name, name)
	w.writelf("    %s result = %s_new();", name, name)
	w.writel("    for (int i = 0; i < s->cap; i++) {")
	w.writelf("        if (s->buckets[i].occupied && !%s_contains(other, s->buckets[i].key)) %s_add(&result, s->buckets[i].key);", name, name)
	w.writel("    }")
	w.writel("    return result;")
	w.writel("}")
	w.blank()
	w.writelf("static inline %s %s_symmetricDifference(%s* s, %s* other) {", name, name, name, name)
	w.writelf("    %s result = %s_subtract(s, other);", name, name)
	w.writel("    for (int i = 0; i < other->cap; i++) {")
	w.writelf("        if (other->buckets[i].occupied && !%s_contains(s, other->buckets[i].key)) %s_add(&result, other->buckets[i].key);", name, name)
	w.writel("    }")
	w.writel("    return result;")
	w.writel("}")
	w.blank()
	w.writelf("static inline bool %s_isSubsetOf(%s* s, %s* other) {", name, name, name)
	w.writel("    for (int i = 0; i < s->cap; i++) {")
	w.writelf("        if (s->buckets[i].occupied && !%s_contains(other, s->buckets[i].key)) return false;", name)
	w.writel("    }")
	w.writel("    return true;")
	w.writel("}")
	w.blank()
	w.writelf("static inline bool %s_isSupersetOf(%s* s, %s* other) {", name, name, name)
	w.writelf("    return %s_isSubsetOf(other, s);", name)
	w.writel("}")
	w.blank()

	// filter/any/all over occupied buckets.
	w.writelf("static inline %s %s_filter(%s* s, bool (*fn)(%s)) {", name, name, name, cType)
	w.writelf("    %s result = %s_new();", name, name)
	w.writel("    for (int i = 0; i < s->cap; i++) {")
	w.writelf("        if (s->buckets[i].occupied && fn(s->buckets[i].key)) %s_add(&result, s->buckets[i].key);", name)
	w.writel("    }")
	w.writel("    return result;")
	w.writel("}")
	w.blank()
	w.writelf("static inline bool %s_any(%s* s, bool (*fn)(%s)) {", name, name, cType)
	w.writel("    for (int i = 0; i < s->cap; i++) {")
	w.writel("        if (s->buckets[i].occupied && fn(s->buckets[i].key)) return true;")
	w.writel("    }")
	w.writel("    return false;")
	w.writel("}")
	w.blank()
	w.writelf("static inline bool %s_all(%s* s, bool (*fn)(%s)) {", name, name, cType)
	w.writel("    for (int i = 0; i < s->cap; i++) {")
	w.writel("        if (s->buckets[i].occupied && !fn(s->buckets[i].key)) return false;")
	w.writel("    }")
	w.writel("    return true;")
	w.writel("}")
	w.blank()
}
