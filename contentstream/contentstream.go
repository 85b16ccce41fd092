// Package contentstream turns drawing primitives into PDF content stream
// operators and reads such streams back.
package contentstream

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/wudi/rosterpdf/coords"
)

// Operand is a parsed operator argument.
type Operand interface {
	Type() string
}

type NumberOperand struct{ Value float64 }

type NameOperand struct{ Value string }

type StringOperand struct {
	Value []byte
	Hex   bool
}

type ArrayOperand struct{ Values []Operand }

func (NumberOperand) Type() string { return "number" }
func (NameOperand) Type() string   { return "name" }
func (StringOperand) Type() string { return "string" }
func (ArrayOperand) Type() string  { return "array" }

type Processor interface {
	Process(ctx Context, stream []byte, state *GraphicsState) error
	RegisterHandler(op string, h OperatorHandler)
}

type OperatorHandler interface {
	Handle(ctx *ExecutionContext, operands []Operand) error
}

// HandlerFunc adapts a function to OperatorHandler.
type HandlerFunc func(ctx *ExecutionContext, operands []Operand) error

func (f HandlerFunc) Handle(ctx *ExecutionContext, operands []Operand) error { return f(ctx, operands) }

type ExecutionContext struct {
	GraphicsState *GraphicsState
	TextState     *TextState
}

type GraphicsState struct {
	CTM       coords.Matrix
	LineWidth float64
	stack     []*GraphicsState
}

func (gs *GraphicsState) Save() { clone := *gs; gs.stack = append(gs.stack, &clone) }
func (gs *GraphicsState) Restore() error {
	n := len(gs.stack)
	if n == 0 {
		return errors.New("state stack empty")
	}
	*gs = *gs.stack[n-1]
	gs.stack = gs.stack[:n-1]
	return nil
}

type TextState struct {
	Font           string
	FontSize       float64
	TextMatrix     coords.Matrix
	TextLineMatrix coords.Matrix
	InText         bool
}

type simpleProcessor struct{ handlers map[string]OperatorHandler }

func NewProcessor() Processor                                           { return &simpleProcessor{handlers: make(map[string]OperatorHandler)} }
func (p *simpleProcessor) RegisterHandler(op string, h OperatorHandler) { p.handlers[op] = h }

// Process tokenizes stream and dispatches each operator with its operands.
// Operators without a handler are skipped along with their operands.
func (p *simpleProcessor) Process(ctx Context, stream []byte, state *GraphicsState) error {
	tokens, err := tokenize(stream)
	if err != nil {
		return err
	}
	ec := &ExecutionContext{
		GraphicsState: state,
		TextState:     &TextState{TextMatrix: coords.Identity(), TextLineMatrix: coords.Identity()},
	}
	var opStack []Operand
	var arrays [][]Operand

	push := func(o Operand) {
		if n := len(arrays); n > 0 {
			arrays[n-1] = append(arrays[n-1], o)
			return
		}
		opStack = append(opStack, o)
	}

	for _, tok := range tokens {
		switch tok.kind {
		case tokNumber:
			num, err := strconv.ParseFloat(tok.text, 64)
			if err != nil {
				return fmt.Errorf("number %q: %w", tok.text, err)
			}
			push(NumberOperand{Value: num})
		case tokName:
			push(NameOperand{Value: tok.text})
		case tokString:
			push(StringOperand{Value: tok.data})
		case tokHexString:
			push(StringOperand{Value: tok.data, Hex: true})
		case tokArrayOpen:
			arrays = append(arrays, nil)
		case tokArrayClose:
			n := len(arrays)
			if n == 0 {
				return errors.New("unbalanced ]")
			}
			arr := ArrayOperand{Values: arrays[n-1]}
			arrays = arrays[:n-1]
			push(arr)
		case tokOperator:
			if len(arrays) > 0 {
				return fmt.Errorf("operator %s inside array", tok.text)
			}
			if ctx != nil {
				select {
				case <-ctx.Done():
					return errors.New("content stream processing cancelled")
				default:
				}
			}
			if h, ok := p.handlers[tok.text]; ok {
				if err := h.Handle(ec, opStack); err != nil {
					return fmt.Errorf("%s: %w", tok.text, err)
				}
			}
			opStack = opStack[:0]
		}
	}

	if len(opStack) > 0 || len(arrays) > 0 {
		return fmt.Errorf("dangling operands: %d", len(opStack)+len(arrays))
	}
	return nil
}

type Context interface{ Done() <-chan struct{} }
