package skillvm

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// errTerminated signals an explicit top-level return: the interpreter
// stops walking statements and Execute reports success.
var errTerminated = fmt.Errorf("skillvm: terminated")

type interpreter struct {
	vm        *VM
	globals   map[string]Value
	steps     int
	maxSteps  int
	callDepth int
	maxDepth  int

	returnValue Value
	returning   bool
}

func (in *interpreter) run(ctx context.Context, program *Program) (Value, error) {
	val, err := in.execBlock(ctx, program.Statements)
	if in.returning {
		return val, errTerminated
	}
	return val, err
}

func (in *interpreter) tick() error {
	in.steps++
	if in.steps > in.maxSteps {
		return fmt.Errorf("skillvm: exceeded step limit (%d)", in.maxSteps)
	}
	return nil
}

// execBlock runs stmts in a shared scope (this language has no nested
// lexical scoping; let/assign both write to in.globals), returning the
// value of the last statement evaluated, whatever its kind.
func (in *interpreter) execBlock(ctx context.Context, stmts []Stmt) (Value, error) {
	var last Value
	for _, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return Nil(), err
		}
		if err := in.tick(); err != nil {
			return Nil(), err
		}
		val, err := in.execStmt(ctx, stmt)
		if err != nil {
			return Nil(), err
		}
		last = val
		if in.returning {
			return last, nil
		}
	}
	return last, nil
}

func (in *interpreter) execStmt(ctx context.Context, stmt Stmt) (Value, error) {
	switch s := stmt.(type) {
	case LetStmt:
		val, err := in.eval(ctx, s.Value, 0)
		if err != nil {
			return Nil(), err
		}
		in.globals[s.Name] = val
		return val, nil

	case AssignStmt:
		val, err := in.eval(ctx, s.Value, 0)
		if err != nil {
			return Nil(), err
		}
		if _, ok := in.globals[s.Name]; !ok {
			return Nil(), fmt.Errorf("skillvm: assignment to undeclared variable %q", s.Name)
		}
		in.globals[s.Name] = val
		return val, nil

	case ExprStmt:
		return in.eval(ctx, s.Value, 0)

	case IfStmt:
		cond, err := in.eval(ctx, s.Cond, 0)
		if err != nil {
			return Nil(), err
		}
		if cond.Truthy() {
			return in.execBlock(ctx, s.Then)
		}
		if s.Else != nil {
			return in.execBlock(ctx, s.Else)
		}
		return Nil(), nil

	case ForStmt:
		return in.execFor(ctx, s)

	case ReturnStmt:
		val, err := in.eval(ctx, s.Value, 0)
		if err != nil {
			return Nil(), err
		}
		in.returnValue = val
		in.returning = true
		return val, nil

	default:
		return Nil(), fmt.Errorf("skillvm: unknown statement type %T", stmt)
	}
}

func (in *interpreter) execFor(ctx context.Context, s ForStmt) (Value, error) {
	iterable, err := in.eval(ctx, s.Iterable, 0)
	if err != nil {
		return Nil(), err
	}

	var items []Value
	switch iterable.Kind {
	case KindArray:
		items = iterable.Arr
	case KindMap:
		keys := make([]string, 0, len(iterable.Map))
		for k := range iterable.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			items = append(items, StringValue(k))
		}
	case KindString:
		for _, r := range iterable.Str {
			items = append(items, StringValue(string(r)))
		}
	default:
		return Nil(), fmt.Errorf("skillvm: cannot iterate over %s", kindName(iterable.Kind))
	}

	var last Value
	for _, item := range items {
		if err := in.tick(); err != nil {
			return Nil(), err
		}
		in.globals[s.Var] = item
		val, err := in.execBlock(ctx, s.Body)
		if err != nil {
			return Nil(), err
		}
		last = val
		if in.returning {
			return last, nil
		}
	}
	return last, nil
}

func (in *interpreter) eval(ctx context.Context, expr Expr, depth int) (Value, error) {
	if depth > in.maxDepth {
		return Nil(), fmt.Errorf("skillvm: exceeded expression depth limit (%d)", in.maxDepth)
	}
	if err := in.tick(); err != nil {
		return Nil(), err
	}

	switch e := expr.(type) {
	case LiteralExpr:
		return e.Value, nil

	case IdentExpr:
		val, ok := in.globals[e.Name]
		if !ok {
			return Nil(), fmt.Errorf("skillvm: undefined variable %q", e.Name)
		}
		return val, nil

	case UnaryExpr:
		operand, err := in.eval(ctx, e.Expr, depth+1)
		if err != nil {
			return Nil(), err
		}
		return evalUnary(e.Op, operand)

	case BinaryExpr:
		return in.evalBinary(ctx, e, depth)

	case IndexExpr:
		target, err := in.eval(ctx, e.Target, depth+1)
		if err != nil {
			return Nil(), err
		}
		idx, err := in.eval(ctx, e.Index, depth+1)
		if err != nil {
			return Nil(), err
		}
		return evalIndex(target, idx)

	case ArrayExpr:
		if len(e.Elements) > in.vm.limits.MaxArraySize {
			return Nil(), fmt.Errorf("skillvm: array literal exceeds limit (%d)", in.vm.limits.MaxArraySize)
		}
		vals := make([]Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := in.eval(ctx, el, depth+1)
			if err != nil {
				return Nil(), err
			}
			vals[i] = v
		}
		return ArrayValue(vals), nil

	case MapExpr:
		if len(e.Keys) > in.vm.limits.MaxMapSize {
			return Nil(), fmt.Errorf("skillvm: map literal exceeds limit (%d)", in.vm.limits.MaxMapSize)
		}
		m := make(map[string]Value, len(e.Keys))
		for i, k := range e.Keys {
			v, err := in.eval(ctx, e.Values[i], depth+1)
			if err != nil {
				return Nil(), err
			}
			m[k] = v
		}
		return MapValue(m), nil

	case CallExpr:
		return in.evalCall(ctx, e, depth)

	default:
		return Nil(), fmt.Errorf("skillvm: unknown expression type %T", expr)
	}
}

func (in *interpreter) evalBinary(ctx context.Context, e BinaryExpr, depth int) (Value, error) {
	if e.Op == "&&" {
		left, err := in.eval(ctx, e.Left, depth+1)
		if err != nil {
			return Nil(), err
		}
		if !left.Truthy() {
			return BoolValue(false), nil
		}
		right, err := in.eval(ctx, e.Right, depth+1)
		if err != nil {
			return Nil(), err
		}
		return BoolValue(right.Truthy()), nil
	}
	if e.Op == "||" {
		left, err := in.eval(ctx, e.Left, depth+1)
		if err != nil {
			return Nil(), err
		}
		if left.Truthy() {
			return BoolValue(true), nil
		}
		right, err := in.eval(ctx, e.Right, depth+1)
		if err != nil {
			return Nil(), err
		}
		return BoolValue(right.Truthy()), nil
	}

	left, err := in.eval(ctx, e.Left, depth+1)
	if err != nil {
		return Nil(), err
	}
	right, err := in.eval(ctx, e.Right, depth+1)
	if err != nil {
		return Nil(), err
	}
	return evalBinaryOp(e.Op, left, right)
}

func evalUnary(op string, v Value) (Value, error) {
	switch op {
	case "-":
		if v.Kind != KindNumber {
			return Nil(), fmt.Errorf("skillvm: unary - requires a number, got %s", kindName(v.Kind))
		}
		return NumberValue(-v.Num), nil
	case "!":
		return BoolValue(!v.Truthy()), nil
	default:
		return Nil(), fmt.Errorf("skillvm: unknown unary operator %q", op)
	}
}

func evalBinaryOp(op string, left, right Value) (Value, error) {
	switch op {
	case "==":
		return BoolValue(valuesEqual(left, right)), nil
	case "!=":
		return BoolValue(!valuesEqual(left, right)), nil
	case "+":
		if left.Kind == KindString || right.Kind == KindString {
			return StringValue(stringify(left) + stringify(right)), nil
		}
		if left.Kind == KindArray && right.Kind == KindArray {
			combined := make([]Value, 0, len(left.Arr)+len(right.Arr))
			combined = append(combined, left.Arr...)
			combined = append(combined, right.Arr...)
			return ArrayValue(combined), nil
		}
		if left.Kind != KindNumber || right.Kind != KindNumber {
			return Nil(), fmt.Errorf("skillvm: + requires numbers or strings, got %s and %s", kindName(left.Kind), kindName(right.Kind))
		}
		return NumberValue(left.Num + right.Num), nil
	case "-", "*", "/", "%":
		if left.Kind != KindNumber || right.Kind != KindNumber {
			return Nil(), fmt.Errorf("skillvm: %s requires numbers, got %s and %s", op, kindName(left.Kind), kindName(right.Kind))
		}
		switch op {
		case "-":
			return NumberValue(left.Num - right.Num), nil
		case "*":
			return NumberValue(left.Num * right.Num), nil
		case "/":
			if right.Num == 0 {
				return Nil(), fmt.Errorf("skillvm: division by zero")
			}
			return NumberValue(left.Num / right.Num), nil
		case "%":
			if right.Num == 0 {
				return Nil(), fmt.Errorf("skillvm: modulo by zero")
			}
			return NumberValue(math.Mod(left.Num, right.Num)), nil
		}
	case "<", ">", "<=", ">=":
		if left.Kind != KindNumber || right.Kind != KindNumber {
			return Nil(), fmt.Errorf("skillvm: %s requires numbers, got %s and %s", op, kindName(left.Kind), kindName(right.Kind))
		}
		switch op {
		case "<":
			return BoolValue(left.Num < right.Num), nil
		case ">":
			return BoolValue(left.Num > right.Num), nil
		case "<=":
			return BoolValue(left.Num <= right.Num), nil
		case ">=":
			return BoolValue(left.Num >= right.Num), nil
		}
	}
	return Nil(), fmt.Errorf("skillvm: unknown binary operator %q", op)
}

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindNumber:
		return a.Num == b.Num
	case KindString:
		return a.Str == b.Str
	case KindArray:
		if len(a.Arr) != len(b.Arr) {
			return false
		}
		for i := range a.Arr {
			if !valuesEqual(a.Arr[i], b.Arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.Map) != len(b.Map) {
			return false
		}
		for k, v := range a.Map {
			ov, ok := b.Map[k]
			if !ok || !valuesEqual(v, ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func evalIndex(target, idx Value) (Value, error) {
	switch target.Kind {
	case KindArray:
		if idx.Kind != KindNumber {
			return Nil(), fmt.Errorf("skillvm: array index must be a number")
		}
		i := int(idx.Num)
		if i < 0 || i >= len(target.Arr) {
			return Nil(), fmt.Errorf("skillvm: array index %d out of range (len %d)", i, len(target.Arr))
		}
		return target.Arr[i], nil
	case KindMap:
		if idx.Kind != KindString {
			return Nil(), fmt.Errorf("skillvm: map index must be a string")
		}
		v, ok := target.Map[idx.Str]
		if !ok {
			return Nil(), nil
		}
		return v, nil
	case KindString:
		if idx.Kind != KindNumber {
			return Nil(), fmt.Errorf("skillvm: string index must be a number")
		}
		runes := []rune(target.Str)
		i := int(idx.Num)
		if i < 0 || i >= len(runes) {
			return Nil(), fmt.Errorf("skillvm: string index %d out of range", i)
		}
		return StringValue(string(runes[i])), nil
	default:
		return Nil(), fmt.Errorf("skillvm: cannot index %s", kindName(target.Kind))
	}
}

func kindName(k Kind) string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

func (in *interpreter) evalCall(ctx context.Context, e CallExpr, depth int) (Value, error) {
	args := make([]Value, len(e.Args))
	for i, a := range e.Args {
		v, err := in.eval(ctx, a, depth+1)
		if err != nil {
			return Nil(), err
		}
		args[i] = v
	}

	if fn, ok := stdlibFuncs[e.Callee]; ok {
		return fn(args)
	}

	hostFn, ok := in.vm.host[e.Callee]
	if !ok {
		return Nil(), fmt.Errorf("%w: %q", ErrPermissionDenied, e.Callee)
	}
	in.callDepth++
	defer func() { in.callDepth-- }()
	if in.callDepth > in.vm.limits.MaxFunctionCount {
		return Nil(), fmt.Errorf("skillvm: exceeded call depth limit (%d)", in.vm.limits.MaxFunctionCount)
	}
	return hostFn(ctx, args)
}

// stdlibFuncs is the tiny built-in function set every script gets
// regardless of granted permissions: string/array/math/type helpers.
var stdlibFuncs = map[string]func(args []Value) (Value, error){
	"len": func(args []Value) (Value, error) {
		if len(args) != 1 {
			return Nil(), fmt.Errorf("skillvm: len() takes exactly 1 argument")
		}
		switch args[0].Kind {
		case KindString:
			return NumberValue(float64(len([]rune(args[0].Str)))), nil
		case KindArray:
			return NumberValue(float64(len(args[0].Arr))), nil
		case KindMap:
			return NumberValue(float64(len(args[0].Map))), nil
		default:
			return Nil(), fmt.Errorf("skillvm: len() requires string, array, or map")
		}
	},
	"upper": func(args []Value) (Value, error) { return stringUnary(args, strings.ToUpper) },
	"lower": func(args []Value) (Value, error) { return stringUnary(args, strings.ToLower) },
	"trim":  func(args []Value) (Value, error) { return stringUnary(args, strings.TrimSpace) },
	"contains": func(args []Value) (Value, error) {
		if len(args) != 2 || args[0].Kind != KindString || args[1].Kind != KindString {
			return Nil(), fmt.Errorf("skillvm: contains(string, string) expected")
		}
		return BoolValue(strings.Contains(args[0].Str, args[1].Str)), nil
	},
	"split": func(args []Value) (Value, error) {
		if len(args) != 2 || args[0].Kind != KindString || args[1].Kind != KindString {
			return Nil(), fmt.Errorf("skillvm: split(string, string) expected")
		}
		parts := strings.Split(args[0].Str, args[1].Str)
		vals := make([]Value, len(parts))
		for i, p := range parts {
			vals[i] = StringValue(p)
		}
		return ArrayValue(vals), nil
	},
	"join": func(args []Value) (Value, error) {
		if len(args) != 2 || args[0].Kind != KindArray || args[1].Kind != KindString {
			return Nil(), fmt.Errorf("skillvm: join(array, string) expected")
		}
		parts := make([]string, len(args[0].Arr))
		for i, v := range args[0].Arr {
			parts[i] = stringify(v)
		}
		return StringValue(strings.Join(parts, args[1].Str)), nil
	},
	"str": func(args []Value) (Value, error) {
		if len(args) != 1 {
			return Nil(), fmt.Errorf("skillvm: str() takes exactly 1 argument")
		}
		return StringValue(stringify(args[0])), nil
	},
	"num": func(args []Value) (Value, error) {
		if len(args) != 1 || args[0].Kind != KindString {
			return Nil(), fmt.Errorf("skillvm: num(string) expected")
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(args[0].Str), 64)
		if err != nil {
			return Nil(), fmt.Errorf("skillvm: cannot convert %q to number", args[0].Str)
		}
		return NumberValue(n), nil
	},
	"abs": func(args []Value) (Value, error) {
		if len(args) != 1 || args[0].Kind != KindNumber {
			return Nil(), fmt.Errorf("skillvm: abs(number) expected")
		}
		return NumberValue(math.Abs(args[0].Num)), nil
	},
}

func stringUnary(args []Value, f func(string) string) (Value, error) {
	if len(args) != 1 || args[0].Kind != KindString {
		return Nil(), fmt.Errorf("skillvm: expected a single string argument")
	}
	return StringValue(f(args[0].Str)), nil
}
