package tools

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/expr-lang/expr"
)

// ===================================
// Calculator Tool
// ===================================

const maxExpressionLength = 512

type CalculatorInput struct {
	Expression string `json:"expression"`
}

type CalculatorOutput struct {
	Status
	Expression string `json:"expression"`
	Result     any    `json:"result"`
}

// mathEnv is the complete namespace visible to expressions.
var mathEnv = map[string]any{
	"pi":    math.Pi,
	"e":     math.E,
	"tau":   2 * math.Pi,
	"sqrt":  math.Sqrt,
	"cbrt":  math.Cbrt,
	"pow":   math.Pow,
	"exp":   math.Exp,
	"log":   math.Log,
	"log2":  math.Log2,
	"log10": math.Log10,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"atan2": math.Atan2,
	"sinh":  math.Sinh,
	"cosh":  math.Cosh,
	"tanh":  math.Tanh,
	"hypot": math.Hypot,
	"abs":   math.Abs,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
	"trunc": math.Trunc,
	"mod":   math.Mod,
	"max":   math.Max,
	"min":   math.Min,
	"degrees": func(x float64) float64 {
		return x * 180 / math.Pi
	},
	"radians": func(x float64) float64 {
		return x * math.Pi / 180
	},
}

// Evaluate computes an arithmetic expression restricted to mathEnv.
func Evaluate(expression string) (any, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("expression is required")
	}
	if len(expression) > maxExpressionLength {
		return nil, fmt.Errorf("expression is longer than %d characters", maxExpressionLength)
	}

	program, err := expr.Compile(expression, expr.Env(mathEnv), expr.DisableAllBuiltins())
	if err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}
	out, err := expr.Run(program, mathEnv)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression: %w", err)
	}

	switch v := out.(type) {
	case int:
		return v, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("result of %q is not a finite number", expression)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("expression must evaluate to a number, got %T", out)
	}
}

func createCalculatorTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolCalculator,
			Desc: "Evaluate a mathematical expression. Supports + - * / % ** and parentheses, the constants pi, e, tau and the functions sqrt, pow, exp, log, log2, log10, sin, cos, tan, asin, acos, atan, atan2, abs, floor, ceil, round, trunc, mod, min, max, hypot, degrees, radians.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"expression": {
					Type:     schema.String,
					Desc:     "Expression to evaluate, e.g. 2 * (3 + 4) or sqrt(16) + pi",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *CalculatorInput) (*CalculatorOutput, error) {
			result, err := Evaluate(in.Expression)
			if err != nil {
				return nil, err
			}
			return &CalculatorOutput{Status: succeeded, Expression: in.Expression, Result: result}, nil
		},
	)
}
