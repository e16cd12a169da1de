package btrc

// Config carries the only compile-time knobs the pipeline accepts:
// whether to emit #line directives for C-level source mapping, and the
// source file name those directives reference.
type Config struct {
	Debug      bool
	SourceFile string
}

func NewConfig() *Config {
	return &Config{}
}

// Compile runs the full pipeline — lexer, parser, analyzer, code
// generator — over one fully resolved translation unit and returns the
// generated C source.
//
// Lex and parse errors are fatal and returned as-is. Semantic
// diagnostics accumulate; when any exist, codegen is skipped and they
// come back wrapped in a *SemanticError.
func Compile(source string, cfg *Config) (string, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	tokens, err := Lex(source)
	if err != nil {
		return "", err
	}

	prog, err := NewParser(tokens).Parse()
	if err != nil {
		return "", err
	}

	analyzed := NewAnalyzer().Analyze(prog)
	if len(analyzed.Errors) > 0 {
		return "", &SemanticError{Diagnostics: analyzed.Errors}
	}

	return NewCodeGen(analyzed, cfg).Generate(), nil
}

// Analyze is the analysis half of the pipeline: parse and annotate
// without generating code. Collaborators like the completion-data
// exporter read signatures out of the result.
func Analyze(source string) (*AnalyzedProgram, error) {
	prog, err := ParseSource(source)
	if err != nil {
		return nil, err
	}
	return NewAnalyzer().Analyze(prog), nil
}
