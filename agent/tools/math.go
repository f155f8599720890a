// Package tools provides built-in ToolProvider implementations.
// This file implements MathTool - mathematical operations powered by professional libraries.
package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/taipm/go-agent-runtime/agent"
	"gonum.org/v1/gonum/stat"
)

// MathTool performs mathematical operations: expression evaluation,
// statistics, equation solving, unit conversion, and random generation.
// Powered by govaluate (expression evaluation) and gonum (statistics).
type MathTool struct{}

// NewMathTool creates the math tool.
func NewMathTool() *MathTool { return &MathTool{} }

func (t *MathTool) Name() string  { return "math" }
func (t *MathTool) Brief() string { return "Perform mathematical operations: expression evaluation, statistics, equation solving, unit conversion, random generation" }

func (t *MathTool) FullDescription() string {
	return "Operations:\n" +
		"  - evaluate: evaluate an expression, e.g. '2 * (3 + 4) + sqrt(16)'\n" +
		"  - statistics: mean, median, stdev, variance, min, max, sum over a numbers array\n" +
		"  - solve: solve a linear equation, e.g. 'x+5=10'\n" +
		"  - convert: convert a value between units (distance, weight, temperature, time)\n" +
		"  - random: generate a random integer, float, or choice from a list"
}

func (t *MathTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"operation":   map[string]interface{}{"type": "string", "description": "evaluate, statistics, solve, convert, random"},
			"expression":  map[string]interface{}{"type": "string", "description": "math expression for evaluate"},
			"numbers":     map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "number"}, "description": "numbers for statistics"},
			"stat_type":   map[string]interface{}{"type": "string", "description": "mean, median, stdev, variance, min, max, sum"},
			"equation":    map[string]interface{}{"type": "string", "description": "equation to solve, e.g. 'x+5=10'"},
			"value":       map[string]interface{}{"type": "number", "description": "value to convert"},
			"from_unit":   map[string]interface{}{"type": "string", "description": "source unit"},
			"to_unit":     map[string]interface{}{"type": "string", "description": "target unit"},
			"random_type": map[string]interface{}{"type": "string", "description": "integer, float, choice"},
			"min":         map[string]interface{}{"type": "number"},
			"max":         map[string]interface{}{"type": "number"},
			"choices":     map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		},
		"required": []string{"operation"},
	}
}

func (t *MathTool) Execute(call agent.ToolCall) (string, error) {
	var params struct {
		Operation  string    `json:"operation"`
		Expression string    `json:"expression"`
		Numbers    []float64 `json:"numbers"`
		StatType   string    `json:"stat_type"`
		Equation   string    `json:"equation"`
		Value      float64   `json:"value"`
		FromUnit   string    `json:"from_unit"`
		ToUnit     string    `json:"to_unit"`
		RandomType string    `json:"random_type"`
		Min        float64   `json:"min"`
		Max        float64   `json:"max"`
		Choices    []string  `json:"choices"`
	}

	if err := json.Unmarshal(call.Arguments, &params); err != nil {
		return "", fmt.Errorf("%w: invalid JSON parameters", agent.ErrInvalidInput)
	}

	switch params.Operation {
	case "evaluate":
		return evaluate(params.Expression)
	case "statistics":
		return statistics(params.Numbers, params.StatType)
	case "solve":
		return solve(params.Equation)
	case "convert":
		return convert(params.Value, params.FromUnit, params.ToUnit)
	case "random":
		return randomOp(params.RandomType, params.Min, params.Max, params.Choices)
	default:
		return "", fmt.Errorf("%w: unknown operation '%s'", agent.ErrInvalidInput, params.Operation)
	}
}

// evaluate evaluates mathematical expressions using govaluate
func evaluate(expression string) (string, error) {
	if expression == "" {
		return "", fmt.Errorf("%w: expression is required", agent.ErrInvalidInput)
	}

	expr, err := govaluate.NewEvaluableExpressionWithFunctions(expression, map[string]govaluate.ExpressionFunction{
		"sqrt": func(args ...interface{}) (interface{}, error) { return math.Sqrt(args[0].(float64)), nil },
		"pow":  func(args ...interface{}) (interface{}, error) { return math.Pow(args[0].(float64), args[1].(float64)), nil },
		"sin":  func(args ...interface{}) (interface{}, error) { return math.Sin(args[0].(float64)), nil },
		"cos":  func(args ...interface{}) (interface{}, error) { return math.Cos(args[0].(float64)), nil },
		"tan":  func(args ...interface{}) (interface{}, error) { return math.Tan(args[0].(float64)), nil },
		"log":  func(args ...interface{}) (interface{}, error) { return math.Log10(args[0].(float64)), nil },
		"ln":   func(args ...interface{}) (interface{}, error) { return math.Log(args[0].(float64)), nil },
		"abs":  func(args ...interface{}) (interface{}, error) { return math.Abs(args[0].(float64)), nil },
		"ceil": func(args ...interface{}) (interface{}, error) { return math.Ceil(args[0].(float64)), nil },
		"floor": func(args ...interface{}) (interface{}, error) { return math.Floor(args[0].(float64)), nil },
		"round": func(args ...interface{}) (interface{}, error) { return math.Round(args[0].(float64)), nil },
	})
	if err != nil {
		return "", fmt.Errorf("%w: invalid expression: %v", agent.ErrInvalidInput, err)
	}

	result, err := expr.Evaluate(nil)
	if err != nil {
		return "", fmt.Errorf("%w: evaluation failed: %v", agent.ErrOperationFailed, err)
	}

	var resultFloat float64
	switch v := result.(type) {
	case float64:
		resultFloat = v
	case int:
		resultFloat = float64(v)
	default:
		return "", fmt.Errorf("%w: unexpected result type", agent.ErrOperationFailed)
	}

	return fmt.Sprintf("%.6f", resultFloat), nil
}

// statistics calculates statistical measures using gonum
func statistics(numbers []float64, statType string) (string, error) {
	if len(numbers) == 0 {
		return "", fmt.Errorf("%w: numbers array is required", agent.ErrInvalidInput)
	}
	if statType == "" {
		return "", fmt.Errorf("%w: stat_type is required", agent.ErrInvalidInput)
	}

	var result float64
	switch statType {
	case "mean":
		result = stat.Mean(numbers, nil)
	case "median":
		sorted := make([]float64, len(numbers))
		copy(sorted, numbers)
		result = median(sorted)
	case "stdev":
		result = stat.StdDev(numbers, nil)
	case "variance":
		result = stat.Variance(numbers, nil)
	case "min":
		result = minOf(numbers)
	case "max":
		result = maxOf(numbers)
	case "sum":
		for _, n := range numbers {
			result += n
		}
	default:
		return "", fmt.Errorf("%w: unknown stat_type '%s'", agent.ErrInvalidInput, statType)
	}

	return fmt.Sprintf("%.6f", result), nil
}

// solve solves linear equations; quadratic support is not implemented yet.
func solve(equation string) (string, error) {
	if equation == "" {
		return "", fmt.Errorf("%w: equation is required", agent.ErrInvalidInput)
	}

	parts := strings.Split(equation, "=")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: equation must contain '='", agent.ErrInvalidInput)
	}

	left := strings.TrimSpace(parts[0])
	right := strings.TrimSpace(parts[1])

	if strings.Contains(left, "x") && !strings.Contains(left, "x^2") && !strings.Contains(left, "*") {
		return solveLinear(left, right)
	}
	if strings.Contains(left, "x^2") {
		return "", fmt.Errorf("%w: quadratic solver not yet implemented", agent.ErrOperationFailed)
	}

	return "", fmt.Errorf("%w: unsupported equation format", agent.ErrInvalidInput)
}

func solveLinear(left, right string) (string, error) {
	rightVal, err := strconv.ParseFloat(right, 64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid right side value", agent.ErrInvalidInput)
	}

	left = strings.ReplaceAll(left, " ", "")

	if strings.HasPrefix(left, "x+") {
		b, _ := strconv.ParseFloat(left[2:], 64)
		return fmt.Sprintf("x = %.6f", rightVal-b), nil
	}
	if strings.HasPrefix(left, "x-") {
		b, _ := strconv.ParseFloat(left[2:], 64)
		return fmt.Sprintf("x = %.6f", rightVal+b), nil
	}
	if left == "x" {
		return fmt.Sprintf("x = %.6f", rightVal), nil
	}

	return "", fmt.Errorf("%w: unsupported linear equation format", agent.ErrInvalidInput)
}

// convert converts between units
func convert(value float64, fromUnit, toUnit string) (string, error) {
	if fromUnit == "" || toUnit == "" {
		return "", fmt.Errorf("%w: from_unit and to_unit are required", agent.ErrInvalidInput)
	}

	fromUnit = strings.ToLower(fromUnit)
	toUnit = strings.ToLower(toUnit)

	distanceUnits := map[string]float64{"km": 1000.0, "m": 1.0, "cm": 0.01, "mm": 0.001}
	weightUnits := map[string]float64{"kg": 1000.0, "g": 1.0, "mg": 0.001}
	timeUnits := map[string]float64{"hours": 3600.0, "minutes": 60.0, "seconds": 1.0}

	if fromUnit == "celsius" && toUnit == "fahrenheit" {
		return fmt.Sprintf("%.6f %s", (value*9/5)+32, toUnit), nil
	}
	if fromUnit == "fahrenheit" && toUnit == "celsius" {
		return fmt.Sprintf("%.6f %s", (value-32)*5/9, toUnit), nil
	}

	for _, units := range []map[string]float64{distanceUnits, weightUnits, timeUnits} {
		if fromFactor, ok := units[fromUnit]; ok {
			if toFactor, ok := units[toUnit]; ok {
				return fmt.Sprintf("%.6f %s", (value*fromFactor)/toFactor, toUnit), nil
			}
		}
	}

	return "", fmt.Errorf("%w: unsupported unit conversion from '%s' to '%s'", agent.ErrInvalidInput, fromUnit, toUnit)
}

// randomOp generates random numbers
func randomOp(randomType string, minVal, maxVal float64, choices []string) (string, error) {
	if randomType == "" {
		return "", fmt.Errorf("%w: random_type is required", agent.ErrInvalidInput)
	}

	rand.Seed(time.Now().UnixNano())

	switch randomType {
	case "integer":
		if minVal >= maxVal {
			return "", fmt.Errorf("%w: min must be less than max", agent.ErrInvalidInput)
		}
		return fmt.Sprintf("%d", int(minVal)+rand.Intn(int(maxVal-minVal+1))), nil
	case "float":
		if minVal >= maxVal {
			return "", fmt.Errorf("%w: min must be less than max", agent.ErrInvalidInput)
		}
		return fmt.Sprintf("%.6f", minVal+rand.Float64()*(maxVal-minVal)), nil
	case "choice":
		if len(choices) == 0 {
			return "", fmt.Errorf("%w: choices array is required", agent.ErrInvalidInput)
		}
		return choices[rand.Intn(len(choices))], nil
	default:
		return "", fmt.Errorf("%w: unknown random_type '%s'", agent.ErrInvalidInput, randomType)
	}
}

func median(numbers []float64) float64 {
	n := len(numbers)
	if n == 0 {
		return 0
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if numbers[i] > numbers[j] {
				numbers[i], numbers[j] = numbers[j], numbers[i]
			}
		}
	}
	if n%2 == 0 {
		return (numbers[n/2-1] + numbers[n/2]) / 2
	}
	return numbers[n/2]
}

func minOf(numbers []float64) float64 {
	m := numbers[0]
	for _, n := range numbers {
		if n < m {
			m = n
		}
	}
	return m
}

func maxOf(numbers []float64) float64 {
	m := numbers[0]
	for _, n := range numbers {
		if n > m {
			m = n
		}
	}
	return m
}
