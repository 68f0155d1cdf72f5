package symcanon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ============================================================
// MCP Tool Interface
// ============================================================

type ToolRequest struct {
	Tool   string                 `json:"tool" yaml:"tool" binding:"required"`
	Params map[string]interface{} `json:"params" yaml:"params"`
}

type ToolResponse struct {
	Result interface{} `json:"result,omitempty"`
	LaTeX  string      `json:"latex,omitempty"`
	String string      `json:"string,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// HandleToolCall executes one tool request. It never panics: invalid
// expressions and misuse are reported in ToolResponse.Error. All expressions
// of one request share a Scope, so equal names denote the same variable.
func HandleToolCall(req ToolRequest) (resp ToolResponse) {
	if err := Catch(func() { resp = dispatch(req) }); err != nil {
		logger().Debug("tool call rejected", zap.String("tool", req.Tool), zap.Error(err))
		return ToolResponse{Error: err.Error()}
	}
	return resp
}

func dispatch(req ToolRequest) ToolResponse {
	scope := NewScope()

	getExpr := func(key string) (*Node, error) {
		v, ok := req.Params[key]
		if !ok {
			return nil, errors.Errorf("missing param: %s", key)
		}
		val, ok := v.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("invalid type for param %s", key)
		}
		n, err := FromJSON(val, scope)
		if err != nil {
			return nil, errors.Wrapf(err, "param %s", key)
		}
		return n, nil
	}
	getString := func(key string) (string, error) {
		v, ok := req.Params[key]
		if !ok {
			return "", errors.Errorf("missing param: %s", key)
		}
		s, ok := v.(string)
		if !ok || s == "" {
			return "", errors.Errorf("param %s must be a non-empty string", key)
		}
		return s, nil
	}
	getStrings := func(key string) ([]string, error) {
		v, ok := req.Params[key]
		if !ok {
			return nil, errors.Errorf("missing param: %s", key)
		}
		raw, ok := v.([]interface{})
		if !ok {
			return nil, errors.Errorf("param %s must be array", key)
		}
		result := make([]string, len(raw))
		for i, r := range raw {
			s, ok := r.(string)
			if !ok {
				return nil, errors.Errorf("param %s[%d] must be string", key, i)
			}
			result[i] = s
		}
		return result, nil
	}
	getBindings := func(key string) (map[string]float64, error) {
		v, ok := req.Params[key]
		if !ok {
			return nil, nil
		}
		raw, ok := v.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("param %s must be an object of numbers", key)
		}
		out := make(map[string]float64, len(raw))
		for name, r := range raw {
			f, ok := r.(float64)
			if !ok {
				return nil, errors.Errorf("param %s.%s must be a number", key, name)
			}
			out[name] = f
		}
		return out, nil
	}
	respond := func(n *Node) ToolResponse {
		return ToolResponse{Result: MarshalTree(n), LaTeX: n.LaTeX(), String: n.String()}
	}
	respondValue := func(v float64) ToolResponse {
		return ToolResponse{Result: v, String: strconv.FormatFloat(v, 'g', -1, 64)}
	}

	switch req.Tool {
	case "simplify":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		return respond(Simplify(e))

	case "to_latex":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		s := Simplify(e)
		return ToolResponse{Result: s.LaTeX(), LaTeX: s.LaTeX(), String: s.String()}

	case "diff":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		v, err := getString("var")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		return respond(Differentiate(e, scope.Var(v)))

	case "diffn":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		v, err := getString("var")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		nAny, ok := req.Params["n"]
		if !ok {
			return ToolResponse{Error: "missing param: n"}
		}
		nF, ok := nAny.(float64)
		if !ok {
			return ToolResponse{Error: "param n must be a number"}
		}
		n := int(nF)
		if n < 0 {
			return ToolResponse{Error: "param n must be >= 0"}
		}
		return respond(DiffN(e, scope.Var(v), n))

	case "gradient":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		names, err := getStrings("vars")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		xs := make([]*Node, len(names))
		for i, name := range names {
			xs[i] = scope.Var(name)
		}
		grad := Gradient(e, xs...)
		trees := make([]map[string]interface{}, len(grad))
		strs := make([]string, len(grad))
		for i, g := range grad {
			trees[i] = MarshalTree(g)
			strs[i] = g.String()
		}
		return ToolResponse{Result: trees, String: "[" + strings.Join(strs, ", ") + "]"}

	case "evaluate":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		b, err := getBindings("bindings")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		scope.Bind(b)
		return respondValue(e.Evaluate())

	case "equal":
		a, err := getExpr("a")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		b, err := getExpr("b")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		eq := Simplify(a).Equal(Simplify(b))
		return ToolResponse{Result: eq, String: strconv.FormatBool(eq)}

	case "free_symbols":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		names := FreeVariables(e)
		return ToolResponse{Result: names, String: strings.Join(names, ", ")}

	case "check_derivative":
		e, err := getExpr("expr")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		v, err := getString("var")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		b, err := getBindings("bindings")
		if err != nil {
			return ToolResponse{Error: err.Error()}
		}
		scope.Bind(b)
		if _, ok := b[v]; !ok {
			return ToolResponse{Error: fmt.Sprintf("bindings must include %s", v)}
		}
		tol := 0.0
		if t, ok := req.Params["tol"].(float64); ok {
			tol = t
		}
		check := CheckDerivative(e, scope.Var(v), tol)
		return ToolResponse{Result: check, String: strconv.FormatBool(check.Agrees)}

	case "stats":
		st := Default().Stats()
		return ToolResponse{Result: st, String: fmt.Sprintf("%d passes, %d cache hits", st.Passes, st.CacheHits)}

	case "mcp_spec":
		return ToolResponse{Result: MCPToolSpec(), String: "MCP tool specification"}
	}

	return ToolResponse{Error: fmt.Sprintf("unknown tool: %s", req.Tool)}
}

// ============================================================
// MCP spec
// ============================================================

func MCPToolSpec() string {
	tools := []map[string]interface{}{
		ts("simplify", "Canonicalize an expression tree", []string{"expr"}, map[string]string{"expr": "object"}),
		ts("to_latex", "Canonicalize and render as LaTeX", []string{"expr"}, map[string]string{"expr": "object"}),
		ts("diff", "First derivative d/dvar", []string{"expr", "var"}, map[string]string{"expr": "object", "var": "string"}),
		ts("diffn", "nth derivative. Requires n (int)", []string{"expr", "var", "n"}, map[string]string{"expr": "object", "var": "string", "n": "integer"}),
		ts("gradient", "Partial derivatives. Requires vars (string[])", []string{"expr", "vars"}, map[string]string{"expr": "object", "vars": "array"}),
		ts("evaluate", "Evaluate with bindings {name: number}", []string{"expr"}, map[string]string{"expr": "object", "bindings": "object"}),
		ts("equal", "Semantic equality: a - b canonicalizes to 0", []string{"a", "b"}, map[string]string{"a": "object", "b": "object"}),
		ts("free_symbols", "Return variable names", []string{"expr"}, map[string]string{"expr": "object"}),
		ts("check_derivative", "Compare symbolic derivative with a central finite difference", []string{"expr", "var", "bindings"}, map[string]string{"expr": "object", "var": "string", "bindings": "object", "tol": "number"}),
		ts("stats", "Canonicalizer counters", []string{}, map[string]string{}),
		ts("mcp_spec", "Return this tool schema", []string{}, map[string]string{}),
	}
	spec := map[string]interface{}{"tools": tools}
	b, _ := sonic.ConfigStd.MarshalIndent(spec, "", "  ")
	return string(b)
}

func ts(name, description string, required []string, props map[string]string) map[string]interface{} {
	properties := map[string]interface{}{}
	for k, typ := range props {
		properties[k] = map[string]interface{}{"type": typ}
	}
	return map[string]interface{}{
		"name":        name,
		"description": description,
		"inputSchema": map[string]interface{}{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
