// Package config loads the linkcli TOML configuration: runtime knobs
// plus the declared protocol the tool serves.
package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wasmlink/wasmlink/errors"
	"github.com/wasmlink/wasmlink/protocol"
	"github.com/wasmlink/wasmlink/types"
)

// Config is the root of the TOML file.
type Config struct {
	LogLevel         string   `toml:"log_level"`
	MemoryLimitPages uint32   `toml:"memory_limit_pages"`
	Protocol         Protocol `toml:"protocol"`
}

// Protocol declares both function directions.
type Protocol struct {
	Name    string     `toml:"name"`
	Exports []Function `toml:"exports"`
	Imports []Function `toml:"imports"`
}

// Function declares one interface function. Types use the short spelling
// of the type expression grammar: primitives, "string", "unit", and
// option<T>, list<T>, set<T>, map<K, V>, result<T, E>.
type Function struct {
	Name  string  `toml:"name"`
	Args  []Param `toml:"args"`
	Ret   string  `toml:"ret"`
	Async bool    `toml:"async"`
}

// Param is one named argument.
type Param struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// Load reads and decodes the file at path.
func Load(path string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, errors.Load("decode config", err)
	}
	if c.Protocol.Name == "" {
		c.Protocol.Name = "linkcli"
	}
	return &c, nil
}

// BuildProtocol assembles the declared protocol. The result is not yet
// validated; runtime.New validates on construction.
func (c *Config) BuildProtocol() (*protocol.Protocol, error) {
	p := protocol.New(c.Protocol.Name)
	for _, fn := range c.Protocol.Exports {
		b, err := buildFn(fn)
		if err != nil {
			return nil, err
		}
		p.Export(b)
	}
	for _, fn := range c.Protocol.Imports {
		b, err := buildFn(fn)
		if err != nil {
			return nil, err
		}
		p.Import(b)
	}
	return p, nil
}

// Logger builds the zap logger for the configured level. Empty and
// "off" mean no logging.
func (c *Config) Logger() (*zap.Logger, error) {
	if c.LogLevel == "" || c.LogLevel == "off" {
		return zap.NewNop(), nil
	}
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "log_level: "+err.Error())
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	log, err := cfg.Build()
	if err != nil {
		return nil, errors.Load("build logger", err)
	}
	return log, nil
}

func buildFn(fn Function) (*protocol.FnBuilder, error) {
	b := protocol.Fn(fn.Name)
	for _, arg := range fn.Args {
		t, err := ParseType(arg.Type)
		if err != nil {
			return nil, err
		}
		b.Arg(arg.Name, t)
	}
	if fn.Ret != "" && fn.Ret != "unit" {
		t, err := ParseType(fn.Ret)
		if err != nil {
			return nil, err
		}
		b.Ret(t)
	}
	if fn.Async {
		b.Async()
	}
	return b, nil
}

var primitives = map[string]types.Primitive{
	"bool": types.Bool,
	"u8":   types.U8,
	"u16":  types.U16,
	"u32":  types.U32,
	"u64":  types.U64,
	"i8":   types.I8,
	"i16":  types.I16,
	"i32":  types.I32,
	"i64":  types.I64,
	"f32":  types.F32,
	"f64":  types.F64,
}

// ParseType parses a type expression from the config grammar.
func ParseType(s string) (types.Serializable, error) {
	s = strings.TrimSpace(s)
	if p, ok := primitives[s]; ok {
		return p, nil
	}
	switch s {
	case "string":
		return types.String{}, nil
	case "unit":
		return types.Unit{}, nil
	}

	open := strings.IndexByte(s, '<')
	if open < 0 || !strings.HasSuffix(s, ">") {
		return nil, errors.InvalidInput(errors.PhaseLoad, "unknown type "+s)
	}
	ctor := s[:open]
	args, err := splitTypeArgs(s[open+1 : len(s)-1])
	if err != nil {
		return nil, err
	}

	inner := make([]types.Serializable, len(args))
	for i, a := range args {
		if inner[i], err = ParseType(a); err != nil {
			return nil, err
		}
	}

	switch {
	case ctor == "option" && len(inner) == 1:
		return types.Option(inner[0]), nil
	case ctor == "list" && len(inner) == 1:
		return types.ListOf(inner[0]), nil
	case ctor == "set" && len(inner) == 1:
		return types.SetOf(inner[0]), nil
	case ctor == "map" && len(inner) == 2:
		return types.MapOf(inner[0], inner[1]), nil
	case ctor == "result" && len(inner) == 2:
		return types.ResultOf(inner[0], inner[1]), nil
	}
	return nil, errors.InvalidInput(errors.PhaseLoad, "unknown type "+s)
}

// splitTypeArgs splits a comma-separated argument list at the top
// nesting level only.
func splitTypeArgs(s string) ([]string, error) {
	var args []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth < 0 {
				return nil, errors.InvalidInput(errors.PhaseLoad, "unbalanced type expression "+s)
			}
		case ',':
			if depth == 0 {
				args = append(args, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "unbalanced type expression "+s)
	}
	args = append(args, s[start:])
	return args, nil
}
