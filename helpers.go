package btrc

// The runtime helper catalogue: every C support routine the generated
// code can lean on, as source text plus explicit dependencies. Codegen
// selects helpers on use; each one lands in the output exactly once,
// dependencies first.

type helperDef struct {
	source string
	deps   []string
}

// helperGroups lists the members of each emission group in a stable
// order.
var helperGroups = map[string][]string{
	"divmod": {"__btrc_div_int", "__btrc_div_double", "__btrc_mod_int"},
	"alloc":  {"__btrc_safe_realloc", "__btrc_safe_calloc"},
	"strings": {
		"__btrc_strcat", "__btrc_charAt", "__btrc_indexOf", "__btrc_lastIndexOf",
		"__btrc_isEmpty", "__btrc_startsWith", "__btrc_endsWith", "__btrc_strContains",
		"__btrc_count", "__btrc_find", "__btrc_isDigitStr", "__btrc_isAlphaStr",
		"__btrc_isBlank", "__btrc_isUpper", "__btrc_isLower", "__btrc_isAlnumStr",
		"__btrc_utf8_charlen", "__btrc_substring", "__btrc_trim", "__btrc_lstrip",
		"__btrc_rstrip", "__btrc_toUpper", "__btrc_toLower", "__btrc_replace",
		"__btrc_repeat", "__btrc_capitalize", "__btrc_title", "__btrc_swapCase",
		"__btrc_padLeft", "__btrc_padRight", "__btrc_center", "__btrc_zfill",
		"__btrc_reverse", "__btrc_removePrefix", "__btrc_removeSuffix",
		"__btrc_split", "__btrc_join",
		"__btrc_intToString", "__btrc_longToString", "__btrc_floatToString",
		"__btrc_doubleToString", "__btrc_charToString",
		"__btrc_fromInt", "__btrc_fromFloat",
	},
	"stringpool": {"__btrc_str_pool_globals", "__btrc_str_track", "__btrc_str_flush"},
	"math": {
		"__btrc_math_factorial", "__btrc_math_gcd", "__btrc_math_lcm",
		"__btrc_math_fibonacci", "__btrc_math_isPrime",
		"__btrc_math_sum_int", "__btrc_math_fsum",
	},
	"trycatch": {
		"__btrc_trycatch_globals", "__btrc_cleanup_types",
		"__btrc_register_cleanup", "__btrc_run_cleanups",
		"__btrc_discard_cleanups", "__btrc_throw",
	},
	"threads": {
		"__btrc_thread_spawn", "__btrc_thread_join", "__btrc_thread_free",
		"__btrc_mutex_val_create", "__btrc_mutex_val_get", "__btrc_mutex_val_set",
	},
	// The cycle collector is available but never selected by default
	// output; destructors produced by the trial-deletion collector are
	// its only callers.
	"cycles": {"__btrc_suspect_buf", "__btrc_collect_cycles"},
}

var runtimeHelpers = map[string]helperDef{
	// ---- division / modulo safety (always emitted) ----
	"__btrc_div_int": {source: `static inline int __btrc_div_int(int a, int b) {
    if (b == 0) { fprintf(stderr, "Division by zero\n"); exit(1); }
    return a / b;
}`},
	"__btrc_div_double": {source: `static inline double __btrc_div_double(double a, double b) {
    if (b == 0.0) { fprintf(stderr, "Division by zero\n"); exit(1); }
    return a / b;
}`},
	"__btrc_mod_int": {source: `static inline int __btrc_mod_int(int a, int b) {
    if (b == 0) { fprintf(stderr, "Modulo by zero\n"); exit(1); }
    return a % b;
}`},

	// ---- allocation safety ----
	"__btrc_safe_realloc": {source: `static inline void* __btrc_safe_realloc(void* ptr, size_t size) {
    void* result = realloc(ptr, size);
    if (!result && size > 0) { fprintf(stderr, "btrc: out of memory (realloc %zu bytes)\n", size); exit(1); }
    return result;
}`},
	"__btrc_safe_calloc": {source: `static inline void* __btrc_safe_calloc(size_t count, size_t size) {
    void* result = calloc(count, size);
    if (!result && count > 0) { fprintf(stderr, "btrc: out of memory (calloc %zu bytes)\n", count * size); exit(1); }
    return result;
}`},

	// ---- hashing ----
	"__btrc_hash_str": {source: `static inline unsigned int __btrc_hash_str(const char* s) {
    unsigned int h = 5381;
    while (*s) h = h * 33 + (unsigned char)*s++;
    return h;
}`},

	// ---- string queries ----
	"__btrc_charAt": {source: `static inline char __btrc_charAt(const char* s, int idx) {
    if (!s) { fprintf(stderr, "String index on NULL\n"); exit(1); }
    int len = (int)strlen(s);
    if (idx < 0 || idx >= len) { fprintf(stderr, "String index out of bounds: %d (length %d)\n", idx, len); exit(1); }
    return s[idx];
}`},
	"__btrc_indexOf": {source: `static inline int __btrc_indexOf(const char* s, const char* sub) {
    if (!s || !sub) return -1;
    char* p = strstr(s, sub);
    return p ? (int)(p - s) : -1;
}`},
	"__btrc_lastIndexOf": {source: `static inline int __btrc_lastIndexOf(const char* s, const char* sub) {
    if (!s || !sub) return -1;
    int slen = (int)strlen(s);
    int sublen = (int)strlen(sub);
    if (sublen == 0) return slen;
    for (int i = slen - sublen; i >= 0; i--) {
        if (strncmp(s + i, sub, sublen) == 0) return i;
    }
    return -1;
}`},
	"__btrc_isEmpty": {source: `static inline bool __btrc_isEmpty(const char* s) {
    if (!s) return true;
    return s[0] == '\0';
}`},
	"__btrc_startsWith": {source: `static inline bool __btrc_startsWith(const char* s, const char* prefix) {
    if (!s || !prefix) return false;
    return strncmp(s, prefix, strlen(prefix)) == 0;
}`},
	"__btrc_endsWith": {source: `static inline bool __btrc_endsWith(const char* s, const char* suffix) {
    if (!s || !suffix) return false;
    int slen = (int)strlen(s);
    int suflen = (int)strlen(suffix);
    if (suflen > slen) return false;
    return strcmp(s + slen - suflen, suffix) == 0;
}`},
	"__btrc_strContains": {source: `static inline bool __btrc_strContains(const char* s, const char* sub) {
    if (!s || !sub) return false;
    return strstr(s, sub) != NULL;
}`},
	"__btrc_count": {source: `static inline int __btrc_count(const char* s, const char* sub) {
    if (!s || !sub) return 0;
    int count = 0;
    int sublen = (int)strlen(sub);
    if (sublen == 0) return 0;
    const char* p = s;
    while ((p = strstr(p, sub)) != NULL) { count++; p += sublen; }
    return count;
}`},
	"__btrc_find": {source: `static inline int __btrc_find(const char* s, const char* sub, int start) {
    if (!s || !sub) return -1;
    int len = (int)strlen(s);
    if (start < 0 || start >= len) return -1;
    const char* found = strstr(s + start, sub);
    if (!found) return -1;
    return (int)(found - s);
}`},
	"__btrc_isDigitStr": {source: `static inline bool __btrc_isDigitStr(const char* s) {
    if (!*s) return false;
    for (; *s; s++) if (!isdigit((unsigned char)*s)) return false;
    return true;
}`},
	"__btrc_isAlphaStr": {source: `static inline bool __btrc_isAlphaStr(const char* s) {
    if (!*s) return false;
    for (; *s; s++) if (!isalpha((unsigned char)*s)) return false;
    return true;
}`},
	"__btrc_isBlank": {source: `static inline bool __btrc_isBlank(const char* s) {
    for (; *s; s++) if (!isspace((unsigned char)*s)) return false;
    return true;
}`},
	"__btrc_isUpper": {source: `static inline bool __btrc_isUpper(const char* s) {
    if (*s == '\0') return false;
    for (; *s; s++) if (!isupper((unsigned char)*s) && !isspace((unsigned char)*s)) return false;
    return true;
}`},
	"__btrc_isLower": {source: `static inline bool __btrc_isLower(const char* s) {
    if (*s == '\0') return false;
    for (; *s; s++) if (!islower((unsigned char)*s) && !isspace((unsigned char)*s)) return false;
    return true;
}`},
	"__btrc_isAlnumStr": {source: `static inline bool __btrc_isAlnumStr(const char* s) {
    if (*s == '\0') return false;
    for (; *s; s++) if (!isalnum((unsigned char)*s)) return false;
    return true;
}`},
	"__btrc_utf8_charlen": {source: `static inline int __btrc_utf8_charlen(const char* s) {
    int count = 0;
    while (*s) {
        if ((*s & 0xC0) != 0x80) count++;
        s++;
    }
    return count;
}`},

	// ---- string transforms (all allocate fresh heap strings) ----
	"__btrc_strcat": {source: `static inline char* __btrc_strcat(const char* a, const char* b) {
    int alen = (int)strlen(a);
    int blen = (int)strlen(b);
    char* r = (char*)malloc(alen + blen + 1);
    memcpy(r, a, alen);
    memcpy(r + alen, b, blen + 1);
    return r;
}`},
	"__btrc_substring": {source: `static inline char* __btrc_substring(const char* s, int start, int len) {
    int slen = (int)strlen(s);
    if (start < 0) start = 0;
    if (start > slen) start = slen;
    if (len < 0 || start + len > slen) len = slen - start;
    char* r = (char*)malloc(len + 1);
    memcpy(r, s + start, len);
    r[len] = '\0';
    return r;
}`},
	"__btrc_trim": {source: `static inline char* __btrc_trim(const char* s) {
    while (isspace((unsigned char)*s)) s++;
    int len = (int)strlen(s);
    while (len > 0 && isspace((unsigned char)s[len - 1])) len--;
    char* r = (char*)malloc(len + 1);
    memcpy(r, s, len);
    r[len] = '\0';
    return r;
}`},
	"__btrc_lstrip": {source: `static inline char* __btrc_lstrip(const char* s) {
    while (isspace((unsigned char)*s)) s++;
    int len = (int)strlen(s);
    char* r = (char*)malloc(len + 1);
    memcpy(r, s, len + 1);
    return r;
}`},
	"__btrc_rstrip": {source: `static inline char* __btrc_rstrip(const char* s) {
    int len = (int)strlen(s);
    while (len > 0 && isspace((unsigned char)s[len - 1])) len--;
    char* r = (char*)malloc(len + 1);
    memcpy(r, s, len);
    r[len] = '\0';
    return r;
}`},
	"__btrc_toUpper": {source: `static inline char* __btrc_toUpper(const char* s) {
    int len = (int)strlen(s);
    char* r = (char*)malloc(len + 1);
    for (int i = 0; i <= len; i++) r[i] = (char)toupper((unsigned char)s[i]);
    return r;
}`},
	"__btrc_toLower": {source: `static inline char* __btrc_toLower(const char* s) {
    int len = (int)strlen(s);
    char* r = (char*)malloc(len + 1);
    for (int i = 0; i <= len; i++) r[i] = (char)tolower((unsigned char)s[i]);
    return r;
}`},
	"__btrc_replace": {source: `static inline char* __btrc_replace(const char* s, const char* old, const char* rep) {
    int oldlen = (int)strlen(old);
    if (oldlen == 0) { char* r = (char*)malloc(strlen(s) + 1); strcpy(r, s); return r; }
    int replen = (int)strlen(rep);
    int count = 0;
    for (const char* p = s; (p = strstr(p, old)) != NULL; p += oldlen) count++;
    char* r = (char*)malloc(strlen(s) + count * (replen - oldlen) + 1);
    char* out = r;
    while (*s) {
        if (strncmp(s, old, oldlen) == 0) {
            memcpy(out, rep, replen);
            out += replen;
            s += oldlen;
        } else {
            *out++ = *s++;
        }
    }
    *out = '\0';
    return r;
}`},
	"__btrc_repeat": {source: `static inline char* __btrc_repeat(const char* s, int count) {
    if (count < 0) count = 0;
    int len = (int)strlen(s);
    char* r = (char*)malloc(len * count + 1);
    for (int i = 0; i < count; i++) memcpy(r + i * len, s, len);
    r[len * count] = '\0';
    return r;
}`},
	"__btrc_capitalize": {source: `static inline char* __btrc_capitalize(const char* s) {
    int len = (int)strlen(s);
    char* r = (char*)malloc(len + 1);
    for (int i = 0; i <= len; i++) r[i] = (char)tolower((unsigned char)s[i]);
    if (len > 0) r[0] = (char)toupper((unsigned char)r[0]);
    return r;
}`},
	"__btrc_title": {source: `static inline char* __btrc_title(const char* s) {
    int len = (int)strlen(s);
    char* r = (char*)malloc(len + 1);
    bool word_start = true;
    for (int i = 0; i < len; i++) {
        if (isspace((unsigned char)s[i])) {
            r[i] = s[i];
            word_start = true;
        } else {
            r[i] = word_start ? (char)toupper((unsigned char)s[i]) : (char)tolower((unsigned char)s[i]);
            word_start = false;
        }
    }
    r[len] = '\0';
    return r;
}`},
	"__btrc_swapCase": {source: `static inline char* __btrc_swapCase(const char* s) {
    int len = (int)strlen(s);
    char* r = (char*)malloc(len + 1);
    for (int i = 0; i < len; i++) {
        unsigned char c = (unsigned char)s[i];
        if (isupper(c)) r[i] = (char)tolower(c);
        else if (islower(c)) r[i] = (char)toupper(c);
        else r[i] = s[i];
    }
    r[len] = '\0';
    return r;
}`},
	"__btrc_padLeft": {source: `static inline char* __btrc_padLeft(const char* s, int width, char fill) {
    int len = (int)strlen(s);
    int pad = width > len ? width - len : 0;
    char* r = (char*)malloc(len + pad + 1);
    memset(r, fill, pad);
    memcpy(r + pad, s, len + 1);
    return r;
}`},
	"__btrc_padRight": {source: `static inline char* __btrc_padRight(const char* s, int width, char fill) {
    int len = (int)strlen(s);
    int pad = width > len ? width - len : 0;
    char* r = (char*)malloc(len + pad + 1);
    memcpy(r, s, len);
    memset(r + len, fill, pad);
    r[len + pad] = '\0';
    return r;
}`},
	"__btrc_center": {source: `static inline char* __btrc_center(const char* s, int width, char fill) {
    int len = (int)strlen(s);
    int pad = width > len ? width - len : 0;
    int left = pad / 2;
    int right = pad - left;
    char* r = (char*)malloc(len + pad + 1);
    memset(r, fill, left);
    memcpy(r + left, s, len);
    memset(r + left + len, fill, right);
    r[len + pad] = '\0';
    return r;
}`},
	"__btrc_zfill": {source: `static inline char* __btrc_zfill(const char* s, int width) {
    int len = (int)strlen(s);
    int pad = width > len ? width - len : 0;
    char* r = (char*)malloc(len + pad + 1);
    int sign = (len > 0 && (s[0] == '-' || s[0] == '+')) ? 1 : 0;
    memcpy(r, s, sign);
    memset(r + sign, '0', pad);
    memcpy(r + sign + pad, s + sign, len - sign + 1);
    return r;
}`},
	"__btrc_reverse": {source: `static inline char* __btrc_reverse(const char* s) {
    int len = (int)strlen(s);
    char* r = (char*)malloc(len + 1);
    for (int i = 0; i < len; i++) r[i] = s[len - 1 - i];
    r[len] = '\0';
    return r;
}`},
	"__btrc_removePrefix": {source: `static inline char* __btrc_removePrefix(const char* s, const char* prefix) {
    int plen = (int)strlen(prefix);
    if (strncmp(s, prefix, plen) == 0) s += plen;
    char* r = (char*)malloc(strlen(s) + 1);
    strcpy(r, s);
    return r;
}`},
	"__btrc_removeSuffix": {source: `static inline char* __btrc_removeSuffix(const char* s, const char* suffix) {
    int len = (int)strlen(s);
    int suflen = (int)strlen(suffix);
    if (suflen <= len && strcmp(s + len - suflen, suffix) == 0) len -= suflen;
    char* r = (char*)malloc(len + 1);
    memcpy(r, s, len);
    r[len] = '\0';
    return r;
}`},
	"__btrc_split": {source: `static inline char** __btrc_split(const char* s, const char* delim) {
    int dlen = (int)strlen(delim);
    int parts = 1;
    if (dlen > 0) {
        for (const char* p = s; (p = strstr(p, delim)) != NULL; p += dlen) parts++;
    }
    char** r = (char**)malloc(sizeof(char*) * (parts + 1));
    int i = 0;
    const char* start = s;
    if (dlen > 0) {
        const char* p;
        while ((p = strstr(start, delim)) != NULL) {
            int len = (int)(p - start);
            r[i] = (char*)malloc(len + 1);
            memcpy(r[i], start, len);
            r[i][len] = '\0';
            i++;
            start = p + dlen;
        }
    }
    int len = (int)strlen(start);
    r[i] = (char*)malloc(len + 1);
    memcpy(r[i], start, len + 1);
    r[i + 1] = NULL;
    return r;
}`},
	"__btrc_join": {source: `static inline char* __btrc_join(char** parts, const char* sep) {
    int total = 0;
    int count = 0;
    int seplen = (int)strlen(sep);
    for (int i = 0; parts[i] != NULL; i++) {
        total += (int)strlen(parts[i]);
        count++;
    }
    if (count > 1) total += seplen * (count - 1);
    char* r = (char*)malloc(total + 1);
    int pos = 0;
    for (int i = 0; i < count; i++) {
        int len = (int)strlen(parts[i]);
        memcpy(r + pos, parts[i], len);
        pos += len;
        if (i < count - 1) { memcpy(r + pos, sep, seplen); pos += seplen; }
    }
    r[pos] = '\0';
    return r;
}`},

	// ---- string conversions ----
	"__btrc_intToString": {source: `static inline char* __btrc_intToString(int n) {
    char* buf = (char*)malloc(32);
    snprintf(buf, 32, "%d", n);
    return buf;
}`},
	"__btrc_longToString": {source: `static inline char* __btrc_longToString(long n) {
    char* buf = (char*)malloc(32);
    snprintf(buf, 32, "%ld", n);
    return buf;
}`},
	"__btrc_floatToString": {source: `static inline char* __btrc_floatToString(float f) {
    char* buf = (char*)malloc(64);
    snprintf(buf, 64, "%g", (double)f);
    return buf;
}`},
	"__btrc_doubleToString": {source: `static inline char* __btrc_doubleToString(double d) {
    char* buf = (char*)malloc(64);
    snprintf(buf, 64, "%g", d);
    return buf;
}`},
	"__btrc_charToString": {source: `static inline char* __btrc_charToString(char c) {
    char* buf = (char*)malloc(2);
    buf[0] = c; buf[1] = '\0';
    return buf;
}`},
	"__btrc_fromInt": {source: `static inline char* __btrc_fromInt(int n) {
    char* r = (char*)malloc(21);
    snprintf(r, 21, "%d", n);
    return r;
}`},
	"__btrc_fromFloat": {source: `static inline char* __btrc_fromFloat(float f) {
    char* r = (char*)malloc(32);
    snprintf(r, 32, "%g", (double)f);
    return r;
}`},

	// ---- temp string pool ----
	"__btrc_str_pool_globals": {source: `/* btrc string temp pool (dynamic) */
static int __btrc_str_pool_cap = 256;
static char** __btrc_str_pool = NULL;
static int __btrc_str_pool_top = 0;`},
	"__btrc_str_track": {deps: []string{"__btrc_str_pool_globals"}, source: `static inline char* __btrc_str_track(char* s) {
    if (!__btrc_str_pool) {
        __btrc_str_pool = (char**)malloc(sizeof(char*) * __btrc_str_pool_cap);
    }
    if (__btrc_str_pool_top >= __btrc_str_pool_cap) {
        __btrc_str_pool_cap *= 2;
        __btrc_str_pool = (char**)realloc(__btrc_str_pool, sizeof(char*) * __btrc_str_pool_cap);
        if (!__btrc_str_pool) { fprintf(stderr, "btrc: string pool OOM\n"); exit(1); }
    }
    __btrc_str_pool[__btrc_str_pool_top++] = s;
    return s;
}`},
	"__btrc_str_flush": {deps: []string{"__btrc_str_pool_globals"}, source: `static inline void __btrc_str_flush(void) {
    for (int i = 0; i < __btrc_str_pool_top; i++) {
        free(__btrc_str_pool[i]);
        __btrc_str_pool[i] = NULL;
    }
    __btrc_str_pool_top = 0;
}`},

	// ---- math ----
	"__btrc_math_factorial": {source: `static inline int __btrc_math_factorial(int n) {
    int r = 1;
    for (int i = 2; i <= n; i++) r *= i;
    return r;
}`},
	"__btrc_math_gcd": {source: `static inline int __btrc_math_gcd(int a, int b) {
    if (a < 0) a = -a;
    if (b < 0) b = -b;
    while (b) { int t = b; b = a % b; a = t; }
    return a;
}`},
	"__btrc_math_lcm": {deps: []string{"__btrc_math_gcd"}, source: `static inline int __btrc_math_lcm(int a, int b) {
    if (a == 0 || b == 0) return 0;
    int g = __btrc_math_gcd(a, b);
    return (a / g) * b;
}`},
	"__btrc_math_fibonacci": {source: `static inline int __btrc_math_fibonacci(int n) {
    if (n <= 0) return 0;
    if (n == 1) return 1;
    int a = 0, b = 1;
    for (int i = 2; i <= n; i++) { int t = a + b; a = b; b = t; }
    return b;
}`},
	"__btrc_math_isPrime": {source: `static inline bool __btrc_math_isPrime(int n) {
    if (n < 2) return false;
    if (n < 4) return true;
    if (n % 2 == 0 || n % 3 == 0) return false;
    for (int i = 5; i * i <= n; i += 6)
        if (n % i == 0 || n % (i + 2) == 0) return false;
    return true;
}`},
	"__btrc_math_sum_int": {source: `static inline int __btrc_math_sum_int(int* data, int size) {
    int s = 0;
    for (int i = 0; i < size; i++) s += data[i];
    return s;
}`},
	"__btrc_math_fsum": {source: `static inline float __btrc_math_fsum(float* data, int size) {
    float s = 0.0f;
    for (int i = 0; i < size; i++) s += data[i];
    return s;
}`},

	// ---- try/catch runtime with cleanup stack ----
	"__btrc_trycatch_globals": {source: `/* btrc try/catch runtime (dynamic) */
static __thread int __btrc_try_cap = 16;
static __thread jmp_buf* __btrc_try_stack = NULL;
static __thread int __btrc_try_top = -1;
static __thread char __btrc_error_msg[1024] = "";
static inline void __btrc_try_push(void) {
    if (!__btrc_try_stack) {
        __btrc_try_stack = (jmp_buf*)malloc(sizeof(jmp_buf) * __btrc_try_cap);
    }
    if (__btrc_try_top + 1 >= __btrc_try_cap) {
        __btrc_try_cap *= 2;
        __btrc_try_stack = (jmp_buf*)realloc(__btrc_try_stack, sizeof(jmp_buf) * __btrc_try_cap);
        if (!__btrc_try_stack) { fprintf(stderr, "btrc: try stack OOM\n"); exit(1); }
    }
    __btrc_try_top++;
}`},
	"__btrc_cleanup_types": {deps: []string{"__btrc_trycatch_globals"}, source: `/* Cleanup stack: tracks heap resources to free on exception */
typedef void (*__btrc_cleanup_fn)(void*);
typedef struct { void** ptr_ref; __btrc_cleanup_fn fn; int try_level; } __btrc_cleanup_entry;
static __thread int __btrc_cleanup_cap = 64;
static __thread __btrc_cleanup_entry* __btrc_cleanup_stack = NULL;
static __thread int __btrc_cleanup_top = -1;`},
	"__btrc_register_cleanup": {deps: []string{"__btrc_cleanup_types"}, source: `static inline void __btrc_register_cleanup(void** ptr_ref, __btrc_cleanup_fn fn) {
    if (!__btrc_cleanup_stack) {
        __btrc_cleanup_stack = (__btrc_cleanup_entry*)malloc(sizeof(__btrc_cleanup_entry) * __btrc_cleanup_cap);
    }
    if (__btrc_cleanup_top + 1 >= __btrc_cleanup_cap) {
        __btrc_cleanup_cap *= 2;
        __btrc_cleanup_stack = (__btrc_cleanup_entry*)realloc(
            __btrc_cleanup_stack, sizeof(__btrc_cleanup_entry) * __btrc_cleanup_cap);
        if (!__btrc_cleanup_stack) { fprintf(stderr, "btrc: cleanup stack OOM\n"); exit(1); }
    }
    __btrc_cleanup_top++;
    __btrc_cleanup_stack[__btrc_cleanup_top].ptr_ref = ptr_ref;
    __btrc_cleanup_stack[__btrc_cleanup_top].fn = fn;
    __btrc_cleanup_stack[__btrc_cleanup_top].try_level = __btrc_try_top;
}`},
	"__btrc_run_cleanups": {deps: []string{"__btrc_cleanup_types"}, source: `static inline void __btrc_run_cleanups(int level) {
    while (__btrc_cleanup_top >= 0 && __btrc_cleanup_stack[__btrc_cleanup_top].try_level >= level) {
        __btrc_cleanup_entry e = __btrc_cleanup_stack[__btrc_cleanup_top--];
        if (e.fn && e.ptr_ref && *e.ptr_ref) { e.fn(*e.ptr_ref); *e.ptr_ref = NULL; }
    }
}`},
	"__btrc_discard_cleanups": {deps: []string{"__btrc_cleanup_types"}, source: `static inline void __btrc_discard_cleanups(int level) {
    while (__btrc_cleanup_top >= 0 &&
           __btrc_cleanup_stack[__btrc_cleanup_top].try_level >= level) {
        __btrc_cleanup_top--;
    }
}`},
	"__btrc_throw": {deps: []string{"__btrc_trycatch_globals", "__btrc_run_cleanups"}, source: `static inline void __btrc_throw(const char* msg) {
    if (__btrc_try_top < 0) {
        fprintf(stderr, "Unhandled exception: %s\n", msg);
        exit(1);
    }
    strncpy(__btrc_error_msg, msg, 1023);
    __btrc_error_msg[1023] = '\0';
    __btrc_run_cleanups(__btrc_try_top);
    longjmp(__btrc_try_stack[__btrc_try_top--], 1);
}`},

	// ---- pthread-backed threads ----
	"__btrc_thread_spawn": {source: `typedef struct {
    void* (*fn)(void*);
    void* arg;
    void* result;
    pthread_t handle;
} __btrc_thread_t;

static void* __btrc_thread_wrapper(void* raw) {
    __btrc_thread_t* t = (__btrc_thread_t*)raw;
    t->result = t->fn(t->arg);
    return NULL;
}

static __btrc_thread_t* __btrc_thread_spawn(void* (*fn)(void*), void* arg) {
    __btrc_thread_t* t = (__btrc_thread_t*)malloc(sizeof(__btrc_thread_t));
    if (!t) { fprintf(stderr, "btrc: thread alloc failed\n"); exit(1); }
    t->fn = fn;
    t->arg = arg;
    t->result = NULL;
    int err = pthread_create(&t->handle, NULL, __btrc_thread_wrapper, t);
    if (err != 0) { fprintf(stderr, "btrc: pthread_create failed\n"); free(t); exit(1); }
    return t;
}`},
	"__btrc_thread_join": {deps: []string{"__btrc_thread_spawn"}, source: `static void* __btrc_thread_join(__btrc_thread_t* t) {
    pthread_join(t->handle, NULL);
    return t->result;
}`},
	"__btrc_thread_free": {deps: []string{"__btrc_thread_spawn"}, source: `static void __btrc_thread_free(__btrc_thread_t* t) {
    free(t);
}`},
	"__btrc_mutex_val_create": {source: `typedef struct {
    pthread_mutex_t lock;
    void* value;
} __btrc_mutex_val_t;

static __btrc_mutex_val_t* __btrc_mutex_val_create(void* initial) {
    __btrc_mutex_val_t* m = (__btrc_mutex_val_t*)malloc(sizeof(__btrc_mutex_val_t));
    if (!m) { fprintf(stderr, "btrc: mutex alloc failed\n"); exit(1); }
    if (pthread_mutex_init(&m->lock, NULL) != 0) { fprintf(stderr, "btrc: mutex init failed\n"); free(m); exit(1); }
    m->value = initial;
    return m;
}`},
	"__btrc_mutex_val_get": {deps: []string{"__btrc_mutex_val_create"}, source: `static void* __btrc_mutex_val_get(__btrc_mutex_val_t* m) {
    pthread_mutex_lock(&m->lock);
    void* v = m->value;
    pthread_mutex_unlock(&m->lock);
    return v;
}`},
	"__btrc_mutex_val_set": {deps: []string{"__btrc_mutex_val_create"}, source: `static void __btrc_mutex_val_set(__btrc_mutex_val_t* m, void* v) {
    pthread_mutex_lock(&m->lock);
    m->value = v;
    pthread_mutex_unlock(&m->lock);
}`},

	// ---- cycle detection (suspect buffer + trial deletion) ----
	"__btrc_suspect_buf": {source: `/* ARC cycle detection: suspect buffer */
static void* __btrc_suspects[256];
static int __btrc_suspect_count = 0;
typedef void (*__btrc_visit_fn)(void*, void (*)(void*));
typedef void (*__btrc_destroy_fn)(void*);
static __btrc_visit_fn __btrc_visit_table[256];
static __btrc_destroy_fn __btrc_destroy_table[256];
static void __btrc_suspect(void* obj, __btrc_visit_fn visit,
                           __btrc_destroy_fn destroy) {
    if (__btrc_suspect_count < 256) {
        __btrc_suspects[__btrc_suspect_count] = obj;
        __btrc_visit_table[__btrc_suspect_count] = visit;
        __btrc_destroy_table[__btrc_suspect_count] = destroy;
        __btrc_suspect_count++;
    }
}`},
	"__btrc_collect_cycles": {deps: []string{"__btrc_suspect_buf"}, source: `/* ARC cycle collector: trial deletion algorithm */
static void __btrc_trial_dec(void* obj) {
    if (obj) { int* rc = (int*)obj; (*rc)--; }
}
static void __btrc_trial_restore(void* obj) {
    if (obj) { int* rc = (int*)obj; (*rc)++; }
}
static void __btrc_collect_cycles(void) {
    int n = __btrc_suspect_count;
    if (n == 0) return;
    /* Phase 1: trial decrement all suspects' children */
    for (int i = 0; i < n; i++) {
        if (__btrc_suspects[i] && __btrc_visit_table[i])
            __btrc_visit_table[i](__btrc_suspects[i], __btrc_trial_dec);
    }
    /* Phase 2: collect objects with trial-rc <= 0 (in a cycle) */
    for (int i = 0; i < n; i++) {
        void* obj = __btrc_suspects[i];
        if (!obj) continue;
        int rc = *(int*)obj;
        if (rc <= 0) {
            /* Restore rc for destroy to work, then destroy */
            *(int*)obj = 1;
            if (__btrc_destroy_table[i])
                __btrc_destroy_table[i](obj);
            __btrc_suspects[i] = NULL;
        } else {
            /* Restore trial decrements for still-live objects */
            if (__btrc_visit_table[i])
                __btrc_visit_table[i](obj, __btrc_trial_restore);
        }
    }
    __btrc_suspect_count = 0;
}`},
}

// emitHelper writes one helper (dependencies first), at most once.
func (g *CodeGen) emitHelper(name string) {
	if g.emittedHelpers[name] {
		return
	}
	def, ok := runtimeHelpers[name]
	if !ok {
		return
	}
	g.emittedHelpers[name] = true
	for _, dep := range def.deps {
		g.emitHelper(dep)
	}
	g.out.writel(def.source)
	g.out.blank()
}

// emitHelperGroup writes every helper of a named catalogue group.
func (g *CodeGen) emitHelperGroup(group string) {
	for _, name := range helperGroups[group] {
		g.emitHelper(name)
	}
}
