// Package waf runs operator Lua rules in front of the generation API. A
// rule sees the request and what it asks to generate, and may stop it with
// ngx.exit(status).
package waf

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// DefaultTimeout bounds one rule evaluation
const DefaultTimeout = 50 * time.Millisecond

// Generation describes what a request asks to produce
type Generation struct {
	Kind          string // obfuscate, captcha, challenge, validate, inject
	Dialect       string
	Cloak         bool
	Entropy       int
	SpeedBump     bool
	PayloadLength int
}

type Verdict struct {
	Blocked    bool
	StatusCode int
	Body       string
	Headers    map[string]string
}

// LuaWAF evaluates one compiled rule script on pooled Lua states
type LuaWAF struct {
	proto   *lua.FunctionProto
	pool    *sync.Pool
	cache   *sharedCache
	timeout time.Duration
}

// NewLuaWAF compiles code once; every evaluation reuses the bytecode
func NewLuaWAF(name, code string) (*LuaWAF, error) {
	chunk, err := parse.Parse(strings.NewReader(code), name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}

	return &LuaWAF{
		proto: proto,
		pool: &sync.Pool{
			New: func() interface{} {
				return lua.NewState()
			},
		},
		cache:   &sharedCache{values: make(map[string]lua.LValue)},
		timeout: DefaultTimeout,
	}, nil
}

// LoadLuaWAF reads and compiles a rule file
func LoadLuaWAF(path string) (*LuaWAF, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lua rules: %w", err)
	}
	return NewLuaWAF(path, string(code))
}

// Execute runs the rule for r. Script errors are logged and let the request
// through.
func (w *LuaWAF) Execute(r *http.Request, gen Generation) Verdict {
	L := w.pool.Get().(*lua.LState)
	defer w.pool.Put(L)

	ctx, cancel := context.WithTimeout(r.Context(), w.timeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	L.SetGlobal("_blocked", lua.LFalse)
	L.SetGlobal("_status_code", lua.LNumber(http.StatusForbidden))
	L.SetGlobal("_body", lua.LString(""))

	L.SetGlobal("request", requestTable(L, r))
	L.SetGlobal("generation", generationTable(L, gen))
	headers := L.NewTable()
	w.setupNginxAPI(L, r, headers)

	L.Push(L.NewFunctionFromProto(w.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		log.Printf("[WAF] Lua execution error: %v", err)
		L.SetTop(0)
		return Verdict{}
	}
	L.SetTop(0)

	if !lua.LVAsBool(L.GetGlobal("_blocked")) {
		return Verdict{}
	}

	v := Verdict{
		Blocked:    true,
		StatusCode: http.StatusForbidden,
		Body:       lua.LVAsString(L.GetGlobal("_body")),
		Headers:    make(map[string]string),
	}
	if n, ok := L.GetGlobal("_status_code").(lua.LNumber); ok && n >= 100 && n <= 599 {
		v.StatusCode = int(n)
	}
	if v.Body == "" {
		v.Body = "Blocked by rule"
	}
	headers.ForEach(func(k, val lua.LValue) {
		v.Headers[lua.LVAsString(k)] = lua.LVAsString(val)
	})
	return v
}

func requestTable(L *lua.LState, r *http.Request) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "method", lua.LString(r.Method))
	L.SetField(t, "uri", lua.LString(r.URL.RequestURI()))
	L.SetField(t, "path", lua.LString(r.URL.Path))
	L.SetField(t, "host", lua.LString(r.Host))
	L.SetField(t, "remote_addr", lua.LString(r.RemoteAddr))
	L.SetField(t, "user_agent", lua.LString(r.UserAgent()))

	headers := L.NewTable()
	for key, values := range r.Header {
		if len(values) > 0 {
			L.SetField(headers, key, lua.LString(values[0]))
		}
	}
	L.SetField(t, "headers", headers)
	return t
}

func generationTable(L *lua.LState, gen Generation) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "kind", lua.LString(gen.Kind))
	L.SetField(t, "dialect", lua.LString(gen.Dialect))
	L.SetField(t, "cloak", lua.LBool(gen.Cloak))
	L.SetField(t, "entropy", lua.LNumber(gen.Entropy))
	L.SetField(t, "speed_bump", lua.LBool(gen.SpeedBump))
	L.SetField(t, "payload_length", lua.LNumber(gen.PayloadLength))
	return t
}

func (w *LuaWAF) setupNginxAPI(L *lua.LState, r *http.Request, headers *lua.LTable) {
	ngx := L.NewTable()

	L.SetField(ngx, "exit", L.NewFunction(func(L *lua.LState) int {
		L.SetGlobal("_blocked", lua.LTrue)
		L.SetGlobal("_status_code", lua.LNumber(L.CheckInt(1)))
		return 0
	}))
	L.SetField(ngx, "say", L.NewFunction(func(L *lua.LState) int {
		body := lua.LVAsString(L.GetGlobal("_body"))
		L.SetGlobal("_body", lua.LString(body+L.CheckString(1)+"\n"))
		return 0
	}))

	vars := L.NewTable()
	L.SetField(vars, "remote_addr", lua.LString(r.RemoteAddr))
	L.SetField(vars, "uri", lua.LString(r.URL.Path))
	L.SetField(vars, "request_uri", lua.LString(r.URL.RequestURI()))
	L.SetField(vars, "host", lua.LString(r.Host))
	L.SetField(ngx, "var", vars)

	shared := L.NewTable()
	L.SetField(shared, "cache", w.cache.table(L))
	L.SetField(ngx, "shared", shared)

	L.SetField(ngx, "header", headers)
	L.SetGlobal("ngx", ngx)
}

// sharedCache backs ngx.shared.cache. It outlives single evaluations and
// is shared by every pooled state.
type sharedCache struct {
	mu     sync.Mutex
	values map[string]lua.LValue
}

func (c *sharedCache) table(L *lua.LState) *lua.LTable {
	t := L.NewTable()

	L.SetField(t, "get", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(2)
		c.mu.Lock()
		value, ok := c.values[key]
		c.mu.Unlock()
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(value)
		return 1
	}))

	L.SetField(t, "set", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(2)
		value := L.Get(3)
		c.mu.Lock()
		defer c.mu.Unlock()
		switch value.Type() {
		case lua.LTNumber, lua.LTString, lua.LTBool:
			c.values[key] = value
		case lua.LTNil:
			delete(c.values, key)
		}
		L.Push(lua.LTrue)
		return 1
	}))

	L.SetField(t, "incr", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(2)
		delta := L.CheckNumber(3)
		initial := L.OptNumber(4, 0)

		c.mu.Lock()
		defer c.mu.Unlock()
		current, ok := c.values[key]
		if !ok {
			c.values[key] = initial + delta
			L.Push(initial + delta)
			return 1
		}
		n, isNumber := current.(lua.LNumber)
		if !isNumber {
			L.Push(lua.LNil)
			return 1
		}
		c.values[key] = n + delta
		L.Push(n + delta)
		return 1
	}))

	return t
}
