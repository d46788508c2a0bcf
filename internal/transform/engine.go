package transform

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
	"github.com/tuncerburak97/gizli/internal/config"
	"github.com/tuncerburak97/gizli/internal/model"
)

const scriptTimeout = 100 * time.Millisecond

// Engine runs entry scripts against masked trace entries.
// Programs are compiled once; every run gets its own runtime.
type Engine struct {
	bindings []binding
}

type binding struct {
	name    string
	host    string
	program *goja.Program
}

// NewEngine compiles every configured script. A missing or invalid script is an error.
func NewEngine(cfg config.TransformConfig) (*Engine, error) {
	names := make([]string, 0, len(cfg.Scripts))
	for name := range cfg.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	engine := &Engine{}
	for _, name := range names {
		b := cfg.Scripts[name]
		script := b.Script
		if script == "" {
			script = name + ".js"
		}
		program, err := compileScript(filepath.Join(cfg.ScriptsDir, script))
		if err != nil {
			return nil, fmt.Errorf("failed to compile script %s: %w", name, err)
		}
		engine.bindings = append(engine.bindings, binding{
			name:    name,
			host:    strings.ToLower(b.Host),
			program: program,
		})
	}
	return engine, nil
}

// compileScript compiles a JavaScript file into a program
func compileScript(path string) (*goja.Program, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return goja.Compile(path, string(content), true)
}

// Apply runs the scripts bound to the entry's URL host in name order.
// It reports false when a script set entry.drop.
func (e *Engine) Apply(entry model.TraceEntry) (model.TraceEntry, bool) {
	if e == nil || len(e.bindings) == 0 {
		return entry, true
	}

	host := entryHost(entry)
	for _, b := range e.bindings {
		if !matchHost(b.host, host) {
			continue
		}
		out, keep, err := b.run(entry)
		if err != nil {
			log.Warn().
				Err(err).
				Str("script", b.name).
				Str("request_id", entry.RequestID).
				Msg("Entry script failed, entry left unchanged")
			continue
		}
		if !keep {
			return out, false
		}
		entry = out
	}
	return entry, true
}

func (b binding) run(entry model.TraceEntry) (model.TraceEntry, bool, error) {
	method, rawURL := entry.Endpoint()
	headers := make(map[string]interface{}, len(entry.Headers))
	for k, v := range entry.Headers {
		headers[k] = v
	}
	obj := map[string]interface{}{
		"kind":      entry.KindName(),
		"method":    method,
		"url":       rawURL,
		"headers":   headers,
		"requestId": entry.RequestID,
		"drop":      false,
	}
	if code, ok := entry.StatusCode(); ok {
		obj["statusCode"] = code
	}
	if entry.OperationName != nil {
		obj["operationName"] = *entry.OperationName
	}

	vm := goja.New()
	vm.Set("entry", obj)
	vm.Set("log", func(msg string) {
		log.Debug().Str("script", b.name).Msg(msg)
	})

	timer := time.AfterFunc(scriptTimeout, func() {
		vm.Interrupt("script timeout")
	})
	defer timer.Stop()

	if _, err := vm.RunProgram(b.program); err != nil {
		return entry, true, err
	}

	if drop, _ := obj["drop"].(bool); drop {
		return entry, false, nil
	}

	switch h := obj["headers"].(type) {
	case map[string]interface{}:
		out := make(map[string]string, len(h))
		for k, v := range h {
			out[k] = fmt.Sprint(v)
		}
		entry.Headers = out
	case nil:
		entry.Headers = nil
	default:
		return entry, true, fmt.Errorf("entry.headers must be an object, got %T", h)
	}
	return entry, true, nil
}

func entryHost(entry model.TraceEntry) string {
	_, rawURL := entry.Endpoint()
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// matchHost matches an exact host or, with a "*." prefix, any subdomain.
func matchHost(pattern, host string) bool {
	if host == "" {
		return false
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok {
		return strings.HasSuffix(host, suffix)
	}
	return pattern == host
}
