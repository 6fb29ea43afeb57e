package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/ppiankov/callreward/internal/model"
	"github.com/ppiankov/callreward/internal/syntax"
)

// CallParser turns one code block into call records. Results are memoized
// per block when a memo TTL is configured.
type CallParser struct {
	memo *gocache.Cache
}

// NewCallParser creates a parser; memoTTL <= 0 disables memoization
func NewCallParser(memoTTL time.Duration) *CallParser {
	p := &CallParser{}
	if memoTTL > 0 {
		p.memo = gocache.New(memoTTL, 2*memoTTL)
	}
	return p
}

// Parse returns the call statements of code in walk order. Invalid code
// yields no calls. The returned records must be treated as read-only.
func (p *CallParser) Parse(code string) []model.CallRecord {
	if p.memo == nil {
		return ParseCalls(code)
	}

	key := memoKey(code)
	if cached, found := p.memo.Get(key); found {
		return cached.([]model.CallRecord)
	}

	calls := ParseCalls(code)
	p.memo.SetDefault(key, calls)
	return calls
}

// Flush drops all memoized results
func (p *CallParser) Flush() {
	if p.memo != nil {
		p.memo.Flush()
	}
}

func memoKey(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// UnpackedKey holds the value of a literal "**{...}" argument. No keyword
// can be spelled this way, so such a call never matches an expected call.
const UnpackedKey = "**"

// ParseCalls parses code and collects every call statement whose target is
// a plain name. Keyword values that are not literals are dropped and a
// repeated keyword keeps its last literal value.
func ParseCalls(code string) []model.CallRecord {
	mod, err := syntax.Parse(code)
	if err != nil {
		return nil
	}
	return callsFromModule(mod)
}

func callsFromModule(mod *syntax.Module) []model.CallRecord {
	var calls []model.CallRecord

	syntax.Walk(mod, func(stmt syntax.Stmt) {
		call := callOf(stmt)
		if call == nil {
			return
		}

		name, ok := call.Func.(*syntax.Name)
		if !ok {
			return
		}

		args := make(model.Arguments, len(call.Keywords))
		for _, kw := range call.Keywords {
			value, err := syntax.Literal(kw.Value)
			if err != nil {
				continue
			}
			key := kw.Arg
			if key == "" {
				key = UnpackedKey
			}
			args[key] = value
		}

		calls = append(calls, model.CallRecord{Function: name.ID, Arguments: args})
	})

	return calls
}

// callOf returns the call of an expression statement or assignment
func callOf(stmt syntax.Stmt) *syntax.Call {
	switch s := stmt.(type) {
	case *syntax.ExprStmt:
		call, _ := s.X.(*syntax.Call)
		return call
	case *syntax.AssignStmt:
		call, _ := s.Value.(*syntax.Call)
		return call
	}
	return nil
}
